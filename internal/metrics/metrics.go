// Package metrics exposes query and transfer counters in the Prometheus
// text format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// durationBounds are the histogram upper bounds in seconds
var durationBounds = []float64{5, 30, 60, 300, 900, 3600}

// Metrics holds all counters. The zero value is not usable; call New.
type Metrics struct {
	queriesTotal  atomic.Int64
	queriesFailed atomic.Int64

	downloadsTotal     atomic.Int64
	downloadsCompleted atomic.Int64
	downloadsFailed    atomic.Int64
	downloadsCancelled atomic.Int64
	publishedTotal     atomic.Int64

	activeDownloads atomic.Int64
	lastProgress    atomic.Uint64 // float64 bits

	mu          sync.Mutex
	buckets     []int64 // cumulative, one per bound plus +Inf
	durationSum float64

	startTime time.Time
}

// New creates an empty Metrics
func New() *Metrics {
	return &Metrics{
		buckets:   make([]int64, len(durationBounds)+1),
		startTime: time.Now(),
	}
}

// ObserveQuery counts a finished format query
func (m *Metrics) ObserveQuery(failed bool) {
	if m == nil {
		return
	}
	m.queriesTotal.Add(1)
	if failed {
		m.queriesFailed.Add(1)
	}
}

// DownloadStarted counts a new transfer and marks it active
func (m *Metrics) DownloadStarted() {
	if m == nil {
		return
	}
	m.downloadsTotal.Add(1)
	m.activeDownloads.Add(1)
	m.SetProgress(0)
}

// Outcome classifies a finished transfer
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

// DownloadFinished records the outcome and duration of a transfer
func (m *Metrics) DownloadFinished(outcome Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.activeDownloads.Add(-1)
	switch outcome {
	case OutcomeCompleted:
		m.downloadsCompleted.Add(1)
	case OutcomeCancelled:
		m.downloadsCancelled.Add(1)
	default:
		m.downloadsFailed.Add(1)
	}
	m.observeDuration(d)
}

// Published counts a file copied to the publish target
func (m *Metrics) Published() {
	if m == nil {
		return
	}
	m.publishedTotal.Add(1)
}

// SetProgress records the latest progress percentage
func (m *Metrics) SetProgress(percent float64) {
	if m == nil {
		return
	}
	m.lastProgress.Store(math.Float64bits(percent))
}

func (m *Metrics) observeDuration(d time.Duration) {
	secs := d.Seconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.durationSum += secs
	for i, bound := range durationBounds {
		if secs <= bound {
			m.buckets[i]++
		}
	}
	m.buckets[len(durationBounds)]++
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	QueriesTotal       int64
	QueriesFailed      int64
	DownloadsTotal     int64
	DownloadsCompleted int64
	DownloadsFailed    int64
	DownloadsCancelled int64
	PublishedTotal     int64
	ActiveDownloads    int64
	LastProgress       float64
	Buckets            []int64
	DurationSum        float64
	Uptime             time.Duration
}

// Snapshot copies the current values
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	buckets := append([]int64(nil), m.buckets...)
	sum := m.durationSum
	m.mu.Unlock()

	return Snapshot{
		QueriesTotal:       m.queriesTotal.Load(),
		QueriesFailed:      m.queriesFailed.Load(),
		DownloadsTotal:     m.downloadsTotal.Load(),
		DownloadsCompleted: m.downloadsCompleted.Load(),
		DownloadsFailed:    m.downloadsFailed.Load(),
		DownloadsCancelled: m.downloadsCancelled.Load(),
		PublishedTotal:     m.publishedTotal.Load(),
		ActiveDownloads:    m.activeDownloads.Load(),
		LastProgress:       math.Float64frombits(m.lastProgress.Load()),
		Buckets:            buckets,
		DurationSum:        sum,
		Uptime:             time.Since(m.startTime),
	}
}

// WriteText writes the snapshot in the Prometheus text exposition format
func (s Snapshot) WriteText(w io.Writer) {
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP dogan_%s %s\n# TYPE dogan_%s %s\ndogan_%s %v\n", name, help, name, kind, name, value)
	}

	metric("queries_total", "counter", "Format queries run", s.QueriesTotal)
	metric("queries_failed_total", "counter", "Format queries that failed", s.QueriesFailed)
	metric("downloads_total", "counter", "Transfers started", s.DownloadsTotal)
	metric("downloads_completed_total", "counter", "Transfers that finished successfully", s.DownloadsCompleted)
	metric("downloads_failed_total", "counter", "Transfers that failed", s.DownloadsFailed)
	metric("downloads_cancelled_total", "counter", "Transfers cancelled by the user", s.DownloadsCancelled)
	metric("published_total", "counter", "Files copied to the publish target", s.PublishedTotal)
	metric("active_downloads", "gauge", "Transfers currently running", s.ActiveDownloads)
	metric("download_progress_percent", "gauge", "Progress of the most recent transfer", s.LastProgress)
	metric("uptime_seconds", "gauge", "Seconds since start", int64(s.Uptime.Seconds()))

	fmt.Fprintln(w, "# HELP dogan_download_duration_seconds Transfer duration")
	fmt.Fprintln(w, "# TYPE dogan_download_duration_seconds histogram")
	for i, bound := range durationBounds {
		fmt.Fprintf(w, "dogan_download_duration_seconds_bucket{le=\"%g\"} %d\n", bound, s.Buckets[i])
	}
	count := s.Buckets[len(durationBounds)]
	fmt.Fprintf(w, "dogan_download_duration_seconds_bucket{le=\"+Inf\"} %d\n", count)
	fmt.Fprintf(w, "dogan_download_duration_seconds_sum %g\n", s.DurationSum)
	fmt.Fprintf(w, "dogan_download_duration_seconds_count %d\n", count)
}

// Handler serves the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		m.Snapshot().WriteText(w)
	})
}

// Server serves /metrics and /health
type Server struct {
	server   *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// NewServer creates a server for addr
func NewServer(addr string, m *Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start binds the address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("metrics endpoint listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}
