package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kilimcininkoroglu/dogan/internal/media"
)

// LineFunc receives every output line of the transfer tool.
type LineFunc func(line string)

// ProgressFunc receives each parsed progress percentage.
type ProgressFunc func(percent float64)

// Outcome summarises a finished run.
type Outcome struct {
	JobID      string
	OutputPath string
	Percent    float64
	Lines      int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took.
func (o Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// Runner launches the transfer tool.
type Runner struct {
	binary    string
	ffmpeg    string
	maxHeight int
	rateLimit int64
	proxy     string
	extraArgs []string
	logger    *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxHeight caps the automatic video selection.
func WithMaxHeight(h int) RunnerOption {
	return func(r *Runner) {
		if h > 0 {
			r.maxHeight = h
		}
	}
}

// WithRateLimit passes a bandwidth cap in bytes per second.
func WithRateLimit(bytesPerSec int64) RunnerOption {
	return func(r *Runner) {
		r.rateLimit = bytesPerSec
	}
}

// WithProxy passes a proxy URL to the tool.
func WithProxy(proxyURL string) RunnerOption {
	return func(r *Runner) {
		r.proxy = proxyURL
	}
}

// WithFFmpeg points the tool at a specific muxer binary.
func WithFFmpeg(path string) RunnerOption {
	return func(r *Runner) {
		r.ffmpeg = path
	}
}

// WithExtraArgs appends arguments before the URL.
func WithExtraArgs(args ...string) RunnerOption {
	return func(r *Runner) {
		r.extraArgs = append(r.extraArgs, args...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a Runner for the given transfer binary.
func NewRunner(binary string, opts ...RunnerOption) *Runner {
	r := &Runner{
		binary:    binary,
		maxHeight: media.DefaultMaxHeight,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes job and blocks until the tool exits.
//
// Every stdout line is passed to onLine as it arrives; lines carrying a
// percentage also reach onProgress first. Both callbacks run on the calling
// goroutine, in output order. Stderr is forwarded to onLine after the process
// exits. Failures are reported to onLine as an error line and returned as
// *ProcessError or *RuntimeError.
func (r *Runner) Run(ctx context.Context, job Job, onLine LineFunc, onProgress ProgressFunc) (out Outcome, err error) {
	if onLine == nil {
		onLine = func(string) {}
	}
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	out = Outcome{JobID: job.ID, StartedAt: time.Now()}
	logger := r.logger.With(zap.String("job", job.ShortID()), zap.String("url", job.URL))

	fail := func(e error) (Outcome, error) {
		out.FinishedAt = time.Now()
		notify(onLine, "Error downloading: "+e.Error())
		logger.Warn("transfer failed", zap.Error(e))
		return out, e
	}

	args := r.Args(job)
	logger.Debug("starting transfer", zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, pipeErr := cmd.StdoutPipe()
	if pipeErr != nil {
		return fail(&RuntimeError{Op: "opening output pipe", Err: pipeErr})
	}
	if startErr := cmd.Start(); startErr != nil {
		return fail(&RuntimeError{Op: "starting " + r.binary, Err: startErr})
	}

	defer func() {
		if p := recover(); p != nil {
			_ = cmd.Process.Kill()
			_, _ = io.Copy(io.Discard, stdout)
			_ = cmd.Wait()
			out, err = fail(&RuntimeError{Op: "reading transfer output", Err: fmt.Errorf("panic: %v", p)})
		}
	}()

	// Grandchildren may hold the pipe open after the tool is killed.
	stop := context.AfterFunc(ctx, func() { _ = stdout.Close() })
	defer stop()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(ScanOutputLines)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		out.Lines++
		if pct, ok := ParseProgress(line); ok {
			out.Percent = pct
			onProgress(pct)
		}
		if dest := ParseDestination(line); dest != "" {
			out.OutputPath = dest
		}
		onLine(line)
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// Keep the child from blocking on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	lastStderr := forwardStderr(stderr.String(), onLine)
	out.FinishedAt = time.Now()

	switch {
	case ctx.Err() != nil:
		return fail(&RuntimeError{Op: "transfer cancelled", Err: ctx.Err()})
	case waitErr != nil:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return fail(&ProcessError{ExitCode: exitErr.ExitCode(), Stderr: lastStderr})
		}
		return fail(&RuntimeError{Op: "waiting for " + r.binary, Err: waitErr})
	case scanErr != nil:
		return fail(&RuntimeError{Op: "reading transfer output", Err: scanErr})
	}

	logger.Info("transfer finished",
		zap.String("output", out.OutputPath),
		zap.Duration("duration", out.Duration()))
	return out, nil
}

// forwardStderr sends each non-empty stderr line to onLine and returns the
// last one.
func forwardStderr(text string, onLine LineFunc) string {
	var last string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r ")
		if line == "" {
			continue
		}
		onLine(line)
		last = line
	}
	return last
}

// notify delivers a final line to onLine. The sink may be the callback that
// just panicked, so a second panic is swallowed here and the error is still
// returned to the caller.
func notify(onLine LineFunc, line string) {
	defer func() { _ = recover() }()
	onLine(line)
}
