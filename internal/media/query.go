package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/kilimcininkoroglu/dogan/internal/mailbox"
)

// ErrNoJSON is returned when the metadata command printed nothing.
var ErrNoJSON = errors.New("metadata command produced no JSON")

// QueryResult is the single outcome of one format query.
type QueryResult struct {
	URL     string
	Mode    Mode
	Entries []FormatEntry
	Err     error
}

// Failed reports whether the query did not produce a format list.
func (r QueryResult) Failed() bool {
	return r.Err != nil
}

// Message returns the failure text, or "" on success.
func (r QueryResult) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Querier runs the metadata command and reduces its output.
type Querier struct {
	binary    string
	extraArgs []string
	container string
	logger    *zap.Logger
}

// QuerierOption configures a Querier.
type QuerierOption func(*Querier)

// WithQueryArgs appends extra arguments before the URL.
func WithQueryArgs(args ...string) QuerierOption {
	return func(q *Querier) {
		q.extraArgs = append(q.extraArgs, args...)
	}
}

// WithContainer sets the container kept in video mode.
func WithContainer(ext string) QuerierOption {
	return func(q *Querier) {
		if ext != "" {
			q.container = ext
		}
	}
}

// WithQueryLogger sets the logger.
func WithQueryLogger(l *zap.Logger) QuerierOption {
	return func(q *Querier) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewQuerier creates a Querier for the given metadata binary.
func NewQuerier(binary string, opts ...QuerierOption) *Querier {
	q := &Querier{
		binary:    binary,
		container: DefaultContainer,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Args returns the metadata command line for url, without the binary.
func (q *Querier) Args(url string) []string {
	args := []string{"-j", "--no-playlist"}
	args = append(args, q.extraArgs...)
	return append(args, "--", url)
}

// Fetch runs the metadata command and decodes its JSON document.
func (q *Querier) Fetch(ctx context.Context, url string) (*Info, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, q.binary, q.Args(url)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	data := bytes.TrimSpace(stdout.Bytes())

	if len(data) == 0 {
		if runErr != nil {
			return nil, fmt.Errorf("running %s: %w%s", q.binary, runErr, stderrSuffix(stderr.String()))
		}
		return nil, ErrNoJSON
	}

	var info Info
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&info); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	if runErr != nil {
		q.logger.Warn("metadata command exited with error after printing JSON",
			zap.String("url", url), zap.Error(runErr))
	}
	return &info, nil
}

// Query fetches the metadata for url and reduces it for mode.
// A panic during reduction is returned as an error.
func (q *Querier) Query(ctx context.Context, url string, mode Mode) (entries []FormatEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entries = nil
			err = fmt.Errorf("reading formats: %v", r)
		}
	}()

	info, err := q.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	entries = Reduce(info.Formats, mode, q.container)
	q.logger.Debug("formats reduced",
		zap.String("url", url),
		zap.Stringer("mode", mode),
		zap.Int("raw", len(info.Formats)),
		zap.Int("kept", len(entries)))
	return entries, nil
}

// Result runs Query and wraps its outcome.
func (q *Querier) Result(ctx context.Context, url string, mode Mode) QueryResult {
	entries, err := q.Query(ctx, url, mode)
	return QueryResult{URL: url, Mode: mode, Entries: entries, Err: err}
}

// Spawn runs fn on a new goroutine and deposits its result in a fresh
// mailbox. A panic in fn is delivered as a failed result.
func Spawn(url string, mode Mode, fn func() QueryResult) *mailbox.Mailbox[QueryResult] {
	box := mailbox.New[QueryResult]()
	go func() {
		var result QueryResult
		defer func() {
			if r := recover(); r != nil {
				result = QueryResult{URL: url, Mode: mode, Err: fmt.Errorf("format query panicked: %v", r)}
			}
			box.Put(result)
		}()
		result = fn()
	}()
	return box
}

func stderrSuffix(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	return ": " + strings.TrimSpace(lines[len(lines)-1])
}
