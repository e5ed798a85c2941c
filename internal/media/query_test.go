package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// fakeTool writes an executable shell script standing in for the metadata binary.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures need a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "yt-dlp")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("writing fake tool: %v", err)
	}
	return path
}

const sampleJSON = `{"id":"abc","title":"Sample","formats":[` +
	`{"format_id":"136","ext":"mp4","vcodec":"avc1","acodec":"none","height":720},` +
	`{"format_id":"137","ext":"mp4","vcodec":"avc1","acodec":"none","height":1080},` +
	`{"format_id":"140","ext":"m4a","vcodec":"none","acodec":"mp4a","abr":128,"asr":44100}]}`

func TestQuerier_Args(t *testing.T) {
	q := NewQuerier("yt-dlp", WithQueryArgs("--cookies", "c.txt"))
	got := strings.Join(q.Args("https://example.com/v"), " ")
	want := "-j --no-playlist --cookies c.txt -- https://example.com/v"
	if got != want {
		t.Errorf("Args() = %q, want %q", got, want)
	}
}

func TestQuerier_Query(t *testing.T) {
	bin := fakeTool(t, "cat <<'JSON'\n"+sampleJSON+"\nJSON")
	q := NewQuerier(bin)

	video, err := q.Query(context.Background(), "https://example.com/v", ModeVideo)
	if err != nil {
		t.Fatalf("Query(video) error = %v", err)
	}
	if len(video) != 2 || video[0].Label != "1080p" || video[1].Selector != "136" {
		t.Errorf("Query(video) = %v", video)
	}

	audio, err := q.Query(context.Background(), "https://example.com/v", ModeAudio)
	if err != nil {
		t.Fatalf("Query(audio) error = %v", err)
	}
	if len(audio) != 1 || audio[0].Label != "128kbps" {
		t.Errorf("Query(audio) = %v", audio)
	}
}

func TestQuerier_NonJSON(t *testing.T) {
	bin := fakeTool(t, `echo "this is not json"`)
	q := NewQuerier(bin)

	result := q.Result(context.Background(), "https://example.com/v", ModeVideo)
	if !result.Failed() {
		t.Fatal("expected a failed result for non-JSON output")
	}
	if !strings.Contains(result.Message(), "parsing metadata") {
		t.Errorf("Message() = %q", result.Message())
	}
}

func TestQuerier_ExitWithoutOutput(t *testing.T) {
	bin := fakeTool(t, `echo "ERROR: Unsupported URL" >&2; exit 1`)
	q := NewQuerier(bin)

	_, err := q.Query(context.Background(), "https://example.com/v", ModeVideo)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Unsupported URL") {
		t.Errorf("error = %v, want stderr text included", err)
	}
}

func TestQuerier_EmptyOutput(t *testing.T) {
	bin := fakeTool(t, `exit 0`)
	q := NewQuerier(bin)

	_, err := q.Query(context.Background(), "https://example.com/v", ModeVideo)
	if !errors.Is(err, ErrNoJSON) {
		t.Errorf("error = %v, want ErrNoJSON", err)
	}
}

func TestQuerier_MissingBinary(t *testing.T) {
	q := NewQuerier(filepath.Join(t.TempDir(), "does-not-exist"))

	result := q.Result(context.Background(), "https://example.com/v", ModeVideo)
	if !result.Failed() {
		t.Error("expected failure for a missing binary")
	}
}

func TestSpawn_DeliversOnce(t *testing.T) {
	bin := fakeTool(t, "cat <<'JSON'\n"+sampleJSON+"\nJSON")
	q := NewQuerier(bin)

	box := Spawn("https://example.com/v", ModeVideo, func() QueryResult {
		return q.Result(context.Background(), "https://example.com/v", ModeVideo)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := box.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if result.Failed() || len(result.Entries) != 2 {
		t.Errorf("result = %+v", result)
	}
	if !box.Empty() {
		t.Error("mailbox should be empty after the single result was taken")
	}
}

func TestSpawn_RecoversPanic(t *testing.T) {
	box := Spawn("u", ModeAudio, func() QueryResult {
		panic("boom")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := box.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if !result.Failed() || !strings.Contains(result.Message(), "boom") {
		t.Errorf("result = %+v, want failure mentioning the panic", result)
	}
	if result.Mode != ModeAudio || result.URL != "u" {
		t.Errorf("result not tagged with its query: %+v", result)
	}
}
