// Package pipeline ties format queries and transfers to the optional
// collaborators around them: metrics, hooks, digests and publishing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/kilimcininkoroglu/dogan/internal/engine"
	"github.com/kilimcininkoroglu/dogan/internal/hooks"
	"github.com/kilimcininkoroglu/dogan/internal/mailbox"
	"github.com/kilimcininkoroglu/dogan/internal/media"
	"github.com/kilimcininkoroglu/dogan/internal/metrics"
	"github.com/kilimcininkoroglu/dogan/internal/publish"
)

// ErrUnknownQuality is returned when a quality label is not offered for a URL.
var ErrUnknownQuality = errors.New("quality not available")

// ErrNoOutput is returned when a digest was requested but the tool never
// reported where it wrote the file.
var ErrNoOutput = errors.New("output path unknown")

// Result is a finished transfer with its post-processing outcome
type Result struct {
	engine.Outcome
	Checksum  *engine.Checksum
	Published string
}

// Service runs queries and transfers
type Service struct {
	querier   *media.Querier
	runner    *engine.Runner
	maxHeight int
	hooks     *hooks.Manager
	metrics   *metrics.Metrics
	publisher publish.Publisher
	digest    engine.ChecksumAlgorithm
	logger    *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithHooks fires lifecycle events on m
func WithHooks(m *hooks.Manager) Option {
	return func(s *Service) {
		s.hooks = m
	}
}

// WithMetrics records counters in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher copies every finished file to p
func WithPublisher(p publish.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithDigest hashes every finished file with alg
func WithDigest(alg engine.ChecksumAlgorithm) Option {
	return func(s *Service) {
		s.digest = alg
	}
}

// WithMaxHeight sets the cap shown in the video Auto label
func WithMaxHeight(h int) Option {
	return func(s *Service) {
		if h > 0 {
			s.maxHeight = h
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a service around a querier and a runner
func New(querier *media.Querier, runner *engine.Runner, opts ...Option) *Service {
	s := &Service{
		querier:   querier,
		runner:    runner,
		maxHeight: media.DefaultMaxHeight,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartQuery runs a format query in the background. The mailbox receives
// exactly one result.
func (s *Service) StartQuery(ctx context.Context, url string, mode media.Mode) *mailbox.Mailbox[media.QueryResult] {
	return media.Spawn(url, mode, func() media.QueryResult {
		return s.Query(ctx, url, mode)
	})
}

// Query runs a format query on the calling goroutine
func (s *Service) Query(ctx context.Context, url string, mode media.Mode) media.QueryResult {
	result := s.querier.Result(ctx, url, mode)
	s.metrics.ObserveQuery(result.Failed())
	if result.Failed() {
		s.logger.Warn("format query failed", zap.String("url", url), zap.Error(result.Err))
	}
	return result
}

// QualityList queries url and returns the list a user picks from. The query
// runs on its own goroutine like an interactive one; a panic in it comes back
// as an error.
func (s *Service) QualityList(ctx context.Context, url string, mode media.Mode) (media.QualityList, error) {
	result, err := s.StartQuery(ctx, url, mode).Wait(ctx)
	if err != nil {
		return media.Placeholder(mode, s.maxHeight), err
	}
	if result.Failed() {
		return media.Placeholder(mode, s.maxHeight), result.Err
	}
	return media.NewQualityList(media.AutoLabel(mode, s.maxHeight), result.Entries), nil
}

var labelPattern = regexp.MustCompile(`^\d+(p|kbps|kHz)$`)

// ResolveQuality turns a quality label or format id into a selector.
//
// An empty choice selects Auto without querying. Labels such as "720p" are
// looked up through a format query; anything else that the query does not
// know is passed through as a raw format id.
func (s *Service) ResolveQuality(ctx context.Context, url string, mode media.Mode, choice string) (string, error) {
	if choice == "" {
		return "", nil
	}
	isLabel := labelPattern.MatchString(choice)

	list, err := s.QualityList(ctx, url, mode)
	if err != nil {
		if isLabel {
			return "", fmt.Errorf("resolving %s: %w", choice, err)
		}
		return choice, nil
	}
	if sel, ok := list.Resolve(choice); ok {
		return sel, nil
	}
	if isLabel {
		return "", fmt.Errorf("%w: %s", ErrUnknownQuality, choice)
	}
	return choice, nil
}

// Run executes job, then digests and publishes the output.
//
// onLine and onProgress receive the same events as engine.Runner.Run, plus
// one line per post-processing step.
func (s *Service) Run(ctx context.Context, job engine.Job, onLine engine.LineFunc, onProgress engine.ProgressFunc) (res Result, err error) {
	if onLine == nil {
		onLine = func(string) {}
	}
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	mode := job.Mode.String()
	start := time.Now()
	s.metrics.DownloadStarted()
	s.hooks.ExecuteAsync(ctx, hooks.NewPayload(hooks.EventStart, job.ID, job.URL, mode).
		WithSelector(job.Selector))

	defer func() {
		elapsed := time.Since(start)
		if err != nil {
			outcome := metrics.OutcomeFailed
			if errors.Is(err, context.Canceled) {
				outcome = metrics.OutcomeCancelled
			}
			s.metrics.DownloadFinished(outcome, elapsed)
			s.hooks.ExecuteAsync(ctx, hooks.NewPayload(hooks.EventError, job.ID, job.URL, mode).
				WithSelector(job.Selector).
				WithOutput(res.OutputPath).
				WithPercent(res.Percent).
				WithError(err).
				WithDuration(elapsed))
			return
		}
		s.metrics.DownloadFinished(metrics.OutcomeCompleted, elapsed)
		payload := hooks.NewPayload(hooks.EventComplete, job.ID, job.URL, mode).
			WithSelector(job.Selector).
			WithOutput(res.OutputPath).
			WithPercent(res.Percent).
			WithPublished(res.Published).
			WithDuration(elapsed)
		if res.Checksum != nil {
			payload.WithChecksum(res.Checksum.String())
		}
		s.hooks.ExecuteAsync(ctx, payload)
	}()

	progress := func(pct float64) {
		s.metrics.SetProgress(pct)
		s.hooks.Progress(ctx, hooks.NewPayload(hooks.EventProgress, job.ID, job.URL, mode).WithPercent(pct))
		onProgress(pct)
	}

	res.Outcome, err = s.runner.Run(ctx, job, onLine, progress)
	if err != nil {
		return res, err
	}

	if res.Checksum, err = s.fingerprint(job, res.OutputPath); err != nil {
		onLine("Error verifying: " + err.Error())
		return res, err
	}
	if res.Checksum != nil {
		onLine("Checksum: " + res.Checksum.String())
	}

	if s.publisher != nil && res.OutputPath != "" {
		res.Published, err = s.publisher.Publish(ctx, res.OutputPath)
		if err != nil {
			err = fmt.Errorf("publishing to %s: %w", s.publisher.Name(), err)
			onLine("Error publishing: " + err.Error())
			return res, err
		}
		s.metrics.Published()
		onLine("Published: " + res.Published)
	}

	return res, nil
}

// fingerprint verifies the output against job.Expect, or hashes it with the
// configured digest when no expectation is set.
func (s *Service) fingerprint(job engine.Job, outputPath string) (*engine.Checksum, error) {
	if job.Expect == nil && s.digest == "" {
		return nil, nil
	}
	if outputPath == "" {
		if job.Expect != nil {
			return nil, ErrNoOutput
		}
		s.logger.Warn("skipping digest, output path unknown", zap.String("job", job.ShortID()))
		return nil, nil
	}
	if job.Expect != nil {
		return engine.VerifyFile(outputPath, job.Expect)
	}
	return engine.HashFile(outputPath, s.digest)
}
