package download

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kilimcininkoroglu/dogan/internal/media"
)

func TestNewQueue(t *testing.T) {
	q := NewQueue(media.ModeVideo)

	if q == nil {
		t.Fatal("NewQueue returned nil")
	}
	if q.Count() != 0 {
		t.Errorf("Count() = %d, want 0", q.Count())
	}
	if !q.IsComplete() {
		t.Error("empty queue should be complete")
	}
}

func TestQueue_Add(t *testing.T) {
	q := NewQueue(media.ModeVideo)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid http", "http://example.com/watch?v=1", false},
		{"valid https", "https://example.com/watch?v=2", false},
		{"surrounding space", "  https://example.com/v/3  ", false},
		{"empty", "", true},
		{"no scheme", "example.com/watch", true},
		{"ftp scheme", "ftp://example.com/a.mp4", true},
		{"invalid url", "://invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := q.Add(tt.url, media.ModeVideo, "")
			if (err != nil) != tt.wantErr {
				t.Errorf("Add(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}

	if q.Count() != 3 {
		t.Errorf("Count() = %d, want 3", q.Count())
	}
	if got := q.Items()[2].URL; got != "https://example.com/v/3" {
		t.Errorf("URL not trimmed: %q", got)
	}
}

func TestQueue_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	filename := filepath.Join(tmpDir, "urls.txt")

	content := `# Comment line
https://example.com/a
https://example.com/b audio
https://example.com/c video 720p
https://example.com/d 137

# Pipe-separated format
https://example.com/e|audio|128kbps
https://example.com/f||22
`
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	q := NewQueue(media.ModeAudio)
	if err := q.LoadFromFile(filename); err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	want := []struct {
		url     string
		mode    media.Mode
		quality string
		line    int
	}{
		{"https://example.com/a", media.ModeAudio, "", 2},
		{"https://example.com/b", media.ModeAudio, "", 3},
		{"https://example.com/c", media.ModeVideo, "720p", 4},
		{"https://example.com/d", media.ModeAudio, "137", 5},
		{"https://example.com/e", media.ModeAudio, "128kbps", 8},
		{"https://example.com/f", media.ModeAudio, "22", 9},
	}

	items := q.Items()
	if len(items) != len(want) {
		t.Fatalf("Count() = %d, want %d", len(items), len(want))
	}
	for i, w := range want {
		it := items[i]
		if it.ID != i {
			t.Errorf("item %d: ID = %d", i, it.ID)
		}
		if it.URL != w.url || it.Mode != w.mode || it.Quality != w.quality || it.Line != w.line {
			t.Errorf("item %d = {%s %s %q line %d}, want {%s %s %q line %d}",
				i, it.URL, it.Mode, it.Quality, it.Line, w.url, w.mode, w.quality, w.line)
		}
		if it.Status != QueueStatusPending {
			t.Errorf("item %d: Status = %s, want pending", i, it.Status)
		}
	}
}

func TestQueue_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"bad url", "https://example.com/ok\nnot-a-url\n", "line 2"},
		{"too many fields", "https://example.com/x video 720p extra\n", "too many fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(media.ModeVideo)
			err := q.Load(strings.NewReader(tt.content))
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestQueue_LoadFromFile_NotFound(t *testing.T) {
	q := NewQueue(media.ModeVideo)
	if err := q.LoadFromFile("/nonexistent/file.txt"); err == nil {
		t.Error("LoadFromFile() should return error for nonexistent file")
	}
}

func TestQueue_Lifecycle(t *testing.T) {
	q := NewQueue(media.ModeVideo)
	_ = q.Add("https://example.com/1", media.ModeVideo, "")
	_ = q.Add("https://example.com/2", media.ModeVideo, "")
	_ = q.Add("https://example.com/3", media.ModeVideo, "")

	item, ok := q.NextPending()
	if !ok || item.ID != 0 {
		t.Fatalf("NextPending() = %d, %v; want 0, true", item.ID, ok)
	}

	q.Start(0)
	item, _ = q.NextPending()
	if item.ID != 1 {
		t.Errorf("NextPending() after Start = %d, want 1", item.ID)
	}

	q.Complete(0, "/out/first.mp4")
	q.Start(1)
	boom := errors.New("boom")
	q.Fail(1, boom)

	items := q.Items()
	if items[0].Status != QueueStatusCompleted || items[0].OutputPath != "/out/first.mp4" {
		t.Errorf("item 0 = %+v", items[0])
	}
	if items[0].Duration() < 0 {
		t.Error("Duration() should not be negative")
	}
	if items[1].Status != QueueStatusFailed || !errors.Is(items[1].Error, boom) {
		t.Errorf("item 1 = %+v", items[1])
	}
	if q.IsComplete() {
		t.Error("queue with a pending item should not be complete")
	}

	q.SkipPending()
	stats := q.Stats()
	want := QueueStats{Total: 3, Completed: 1, Failed: 1, Skipped: 1}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
	if !q.IsComplete() {
		t.Error("queue should be complete")
	}
	if _, ok := q.NextPending(); ok {
		t.Error("NextPending() should report nothing left")
	}
}

func TestQueue_UpdateOutOfRange(t *testing.T) {
	q := NewQueue(media.ModeVideo)
	q.Start(5)
	q.Fail(-1, errors.New("x"))
	if q.Count() != 0 {
		t.Error("out of range updates must be ignored")
	}
}

func TestQueueItem_Duration(t *testing.T) {
	var it QueueItem
	if it.Duration() != 0 {
		t.Error("zero item should have zero duration")
	}
}

func TestQueueStatus_String(t *testing.T) {
	tests := []struct {
		status QueueStatus
		want   string
	}{
		{QueueStatusPending, "pending"},
		{QueueStatusRunning, "running"},
		{QueueStatusCompleted, "completed"},
		{QueueStatusFailed, "failed"},
		{QueueStatusSkipped, "skipped"},
		{QueueStatus(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("QueueStatus(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
