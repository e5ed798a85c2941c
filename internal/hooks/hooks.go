// Package hooks notifies external programs about transfer lifecycle events.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Event names a point in a transfer's life
type Event string

const (
	EventStart    Event = "start"
	EventProgress Event = "progress"
	EventComplete Event = "complete"
	EventError    Event = "error"
)

// Payload describes one event
type Payload struct {
	Event      Event     `json:"event"`
	JobID      string    `json:"job_id"`
	URL        string    `json:"url"`
	Mode       string    `json:"mode"`
	Selector   string    `json:"selector,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
	Percent    float64   `json:"percent"`
	Checksum   string    `json:"checksum,omitempty"`
	Published  string    `json:"published,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Duration   float64   `json:"duration_seconds,omitempty"`
}

// NewPayload creates a payload stamped with the current time
func NewPayload(event Event, jobID, url, mode string) *Payload {
	return &Payload{
		Event:     event,
		JobID:     jobID,
		URL:       url,
		Mode:      mode,
		Timestamp: time.Now(),
	}
}

// WithSelector records the format selector
func (p *Payload) WithSelector(selector string) *Payload {
	p.Selector = selector
	return p
}

// WithOutput records the finished file
func (p *Payload) WithOutput(path string) *Payload {
	p.OutputPath = path
	return p
}

// WithPercent records transfer progress
func (p *Payload) WithPercent(percent float64) *Payload {
	p.Percent = percent
	return p
}

// WithChecksum records the digest of the output
func (p *Payload) WithChecksum(sum string) *Payload {
	p.Checksum = sum
	return p
}

// WithPublished records where the output was copied to
func (p *Payload) WithPublished(location string) *Payload {
	p.Published = location
	return p
}

// WithError records a failure
func (p *Payload) WithError(err error) *Payload {
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

// WithDuration records how long the transfer ran
func (p *Payload) WithDuration(d time.Duration) *Payload {
	p.Duration = d.Seconds()
	return p
}

// Hook is implemented by every notification target
type Hook interface {
	Execute(ctx context.Context, payload *Payload) error
	Name() string
}

// eventSet is the subset of events a hook reacts to
type eventSet []Event

func (s eventSet) has(e Event) bool {
	for _, x := range s {
		if x == e {
			return true
		}
	}
	return false
}

// Manager fans events out to registered hooks
type Manager struct {
	hooks    []Hook
	logger   *zap.Logger
	interval time.Duration
	wg       sync.WaitGroup

	mu       sync.Mutex
	progress map[string]*rate.Sometimes // by job ID
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithLogger sets where hook failures are logged
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithProgressInterval limits progress events to one per interval
func WithProgressInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.interval = d
	}
}

// NewManager creates an empty manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		logger:   zap.NewNop(),
		interval: 5 * time.Second,
		progress: make(map[string]*rate.Sometimes),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add registers a hook
func (m *Manager) Add(hook Hook) {
	m.hooks = append(m.hooks, hook)
}

// Count returns the number of registered hooks
func (m *Manager) Count() int {
	if m == nil {
		return 0
	}
	return len(m.hooks)
}

// Execute runs every hook in turn and joins their errors
func (m *Manager) Execute(ctx context.Context, payload *Payload) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, hook := range m.hooks {
		if err := hook.Execute(ctx, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ExecuteAsync runs the hooks on a separate goroutine. Failures are logged.
// Wait blocks until all pending runs are done.
func (m *Manager) ExecuteAsync(ctx context.Context, payload *Payload) {
	if m.Count() == 0 {
		return
	}
	if payload.Event == EventComplete || payload.Event == EventError {
		m.mu.Lock()
		delete(m.progress, payload.JobID)
		m.mu.Unlock()
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.Execute(context.WithoutCancel(ctx), payload); err != nil {
			m.logger.Warn("hook failed",
				zap.String("event", string(payload.Event)),
				zap.String("job", payload.JobID),
				zap.Error(err))
		}
	}()
}

// Progress forwards a progress event unless one for the same job was sent
// within the configured interval.
func (m *Manager) Progress(ctx context.Context, payload *Payload) {
	if m.Count() == 0 {
		return
	}
	m.mu.Lock()
	throttle, ok := m.progress[payload.JobID]
	if !ok {
		throttle = &rate.Sometimes{First: 1, Interval: m.interval}
		m.progress[payload.JobID] = throttle
	}
	m.mu.Unlock()
	throttle.Do(func() {
		m.ExecuteAsync(ctx, payload)
	})
}

// Wait blocks until every ExecuteAsync call has finished
func (m *Manager) Wait() {
	if m == nil {
		return
	}
	m.wg.Wait()
}
