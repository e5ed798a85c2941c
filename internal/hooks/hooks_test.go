package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingHook struct {
	calls atomic.Int32
	err   error
}

func (h *countingHook) Name() string { return "counting" }

func (h *countingHook) Execute(ctx context.Context, p *Payload) error {
	h.calls.Add(1)
	return h.err
}

func TestNewCommandHook(t *testing.T) {
	hook := NewCommandHook("echo test")

	if hook.Name() != "command:echo test" {
		t.Errorf("Name() = %q", hook.Name())
	}
	if len(hook.Events) != 2 {
		t.Errorf("default events = %v, want complete and error", hook.Events)
	}
}

func TestCommandHook_Execute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}

	out := filepath.Join(t.TempDir(), "env.txt")
	hook := NewCommandHook(`echo "$DOGAN_EVENT $DOGAN_MODE $DOGAN_OUTPUT" > `+out, EventComplete)

	payload := NewPayload(EventComplete, "job-1", "https://example.com/v", "audio").WithOutput("/tmp/song.m4a")
	if err := hook.Execute(context.Background(), payload); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != "complete audio /tmp/song.m4a" {
		t.Errorf("hook saw %q", got)
	}
}

func TestCommandHook_WrongEvent(t *testing.T) {
	hook := NewCommandHook("exit 1", EventComplete)

	if err := hook.Execute(context.Background(), &Payload{Event: EventError}); err != nil {
		t.Errorf("Execute() should skip non-matching events, got %v", err)
	}
}

func TestCommandHook_Failure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}

	hook := NewCommandHook("echo nope >&2; exit 3", EventError)
	err := hook.Execute(context.Background(), &Payload{Event: EventError})
	if err == nil || !strings.Contains(err.Error(), "nope") {
		t.Errorf("Execute() error = %v, want stderr in message", err)
	}
}

func TestEnv(t *testing.T) {
	p := NewPayload(EventProgress, "job-1", "https://example.com/v", "video").
		WithSelector("136").
		WithPercent(42.5).
		WithError(errors.New("boom"))

	env := strings.Join(Env(p), "\n")
	for _, want := range []string{
		"DOGAN_EVENT=progress",
		"DOGAN_JOB_ID=job-1",
		"DOGAN_SELECTOR=136",
		"DOGAN_PERCENT=42.5",
		"DOGAN_ERROR=boom",
	} {
		if !strings.Contains(env, want) {
			t.Errorf("Env() missing %s", want)
		}
	}
}

func TestWebhookHook_Execute(t *testing.T) {
	var mu sync.Mutex
	var received Payload
	var auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	hook, err := NewWebhookHook(server.URL, WithHeader("Authorization", "Bearer t"), WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewWebhookHook() error = %v", err)
	}

	payload := NewPayload(EventComplete, "job-9", "https://example.com/v", "video").
		WithOutput("/tmp/clip.mp4").
		WithChecksum("blake3:abcd").
		WithDuration(1500 * time.Millisecond)

	if err := hook.Execute(context.Background(), payload); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Event != EventComplete || received.JobID != "job-9" || received.Checksum != "blake3:abcd" {
		t.Errorf("received = %+v", received)
	}
	if received.Duration != 1.5 {
		t.Errorf("Duration = %v, want 1.5", received.Duration)
	}
	if auth != "Bearer t" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestWebhookHook_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	hook, _ := NewWebhookHook(server.URL)
	err := hook.Execute(context.Background(), NewPayload(EventError, "j", "u", "video"))
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("Execute() error = %v, want status 502", err)
	}
}

func TestWebhookHook_EventFilter(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	hook, _ := NewWebhookHook(server.URL, WithEvents(EventComplete))
	hook.Execute(context.Background(), NewPayload(EventProgress, "j", "u", "video"))
	hook.Execute(context.Background(), NewPayload(EventComplete, "j", "u", "video"))

	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestWithProxy(t *testing.T) {
	if _, err := NewWebhookHook("http://example.com", WithProxy("socks5://127.0.0.1:1080")); err != nil {
		t.Errorf("socks5 proxy rejected: %v", err)
	}
	if _, err := NewWebhookHook("http://example.com", WithProxy("gopher://127.0.0.1:70")); err == nil {
		t.Error("unknown proxy scheme should be rejected")
	}
}

func TestManager_Execute(t *testing.T) {
	ok := &countingHook{}
	bad := &countingHook{err: errors.New("down")}

	m := NewManager()
	m.Add(ok)
	m.Add(bad)

	err := m.Execute(context.Background(), NewPayload(EventStart, "j", "u", "video"))
	if err == nil || !strings.Contains(err.Error(), "counting: down") {
		t.Errorf("Execute() error = %v", err)
	}
	if ok.calls.Load() != 1 || bad.calls.Load() != 1 {
		t.Error("every hook should run even when one fails")
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d", m.Count())
	}
}

func TestManager_ExecuteAsyncWait(t *testing.T) {
	h := &countingHook{}
	m := NewManager()
	m.Add(h)

	for i := 0; i < 5; i++ {
		m.ExecuteAsync(context.Background(), NewPayload(EventComplete, "j", "u", "video"))
	}
	m.Wait()

	if h.calls.Load() != 5 {
		t.Errorf("calls = %d, want 5", h.calls.Load())
	}
}

func TestManager_ProgressThrottled(t *testing.T) {
	h := &countingHook{}
	m := NewManager(WithProgressInterval(time.Hour))
	m.Add(h)

	for i := 0; i < 50; i++ {
		m.Progress(context.Background(), NewPayload(EventProgress, "j", "u", "video").WithPercent(float64(i)))
	}
	m.Wait()

	if h.calls.Load() != 1 {
		t.Errorf("progress calls = %d, want 1", h.calls.Load())
	}
}

func TestManager_ProgressThrottledPerJob(t *testing.T) {
	h := &countingHook{}
	m := NewManager(WithProgressInterval(time.Hour))
	m.Add(h)

	m.Progress(context.Background(), NewPayload(EventProgress, "first", "u", "video").WithPercent(10))
	m.Progress(context.Background(), NewPayload(EventProgress, "first", "u", "video").WithPercent(20))
	m.ExecuteAsync(context.Background(), NewPayload(EventComplete, "first", "u", "video"))
	m.Progress(context.Background(), NewPayload(EventProgress, "second", "u", "video").WithPercent(5))
	m.Wait()

	// one progress per job plus the completion
	if h.calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", h.calls.Load())
	}
	if len(m.progress) != 1 {
		t.Errorf("throttles kept = %d, want 1", len(m.progress))
	}
}

func TestManager_Nil(t *testing.T) {
	var m *Manager
	if m.Count() != 0 {
		t.Error("nil manager should have no hooks")
	}
	if err := m.Execute(context.Background(), &Payload{}); err != nil {
		t.Errorf("nil manager Execute() = %v", err)
	}
	m.Wait()
}
