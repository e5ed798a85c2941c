package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kilimcininkoroglu/dogan/internal/config"
	"github.com/kilimcininkoroglu/dogan/internal/engine"
	"github.com/kilimcininkoroglu/dogan/internal/hooks"
	"github.com/kilimcininkoroglu/dogan/internal/logging"
	"github.com/kilimcininkoroglu/dogan/internal/media"
	"github.com/kilimcininkoroglu/dogan/internal/metrics"
	"github.com/kilimcininkoroglu/dogan/internal/pipeline"
	"github.com/kilimcininkoroglu/dogan/internal/publish"
)

// app holds everything a command needs once config is loaded
type app struct {
	cfg         *config.Config
	mode        media.Mode
	destination string
	logger      *zap.Logger
	closeLog    func()
	hooks       *hooks.Manager
	metrics     *metrics.Metrics
	server      *metrics.Server
	service     *pipeline.Service
	toolWarning string
}

// loadConfig reads the config file and applies profile and flag overrides
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadPath(config.ExpandPath(flags.configPath))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flags.profile != "" {
		if err := cfg.ApplyProfile(flags.profile); err != nil {
			return nil, err
		}
	}

	if flags.audio {
		cfg.Download.Mode = media.ModeAudio.String()
	}
	if flags.outputDir != "" {
		cfg.Download.Directory = flags.outputDir
	}
	if flags.verbose {
		cfg.Logging.Level = "debug"
	}
	if flags.metricsAddr != "" {
		cfg.Metrics.Address = flags.metricsAddr
	}
	if flags.onComplete != "" {
		cfg.Hooks.OnComplete = flags.onComplete
	}
	if flags.onError != "" {
		cfg.Hooks.OnError = flags.onError
	}
	if flags.webhook != "" {
		cfg.Hooks.Webhook = flags.webhook
	}
	if flags.publish != "" {
		cfg.Publish.Target = flags.publish
	}
	if flags.digest != "" {
		cfg.Download.Checksum = flags.digest
	}
	if flags.noColor {
		cfg.UI.Colors = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp wires the configured collaborators. interactive silences stderr
// logging so the terminal UI stays intact.
func newApp(flags *globalFlags, interactive bool) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, exitErr(ExitParseError, fmt.Errorf("loading config: %w", err))
	}

	logger, closeLog, err := logging.New(cfg.Logging, interactive)
	if err != nil {
		return nil, exitErr(ExitParseError, err)
	}

	a := &app{
		cfg:         cfg,
		destination: config.ExpandPath(cfg.Download.Directory),
		logger:      logger,
		closeLog:    closeLog,
		metrics:     metrics.New(),
	}
	a.mode, _ = media.ParseMode(cfg.Download.Mode)

	if st := engine.LookupTool(cfg.Tools.YtDlp); !st.Found() {
		a.Close()
		return nil, exitErr(ExitToolError, st.Err)
	}
	a.toolWarning = engine.MuxerWarning(cfg.Tools.FFmpeg)
	if a.toolWarning != "" {
		logger.Warn("muxer missing", zap.String("ffmpeg", cfg.Tools.FFmpeg))
	}

	if a.hooks, err = buildHooks(cfg.Hooks, logger); err != nil {
		a.Close()
		return nil, exitErr(ExitParseError, err)
	}

	opts := []pipeline.Option{
		pipeline.WithHooks(a.hooks),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithMaxHeight(cfg.Download.MaxHeight),
		pipeline.WithDigest(engine.ChecksumAlgorithm(cfg.Download.Checksum)),
		pipeline.WithLogger(logger),
	}
	if cfg.Publish.Target != "" {
		pub, err := buildPublisher(cfg.Publish, logger)
		if err != nil {
			a.Close()
			return nil, exitErr(ExitParseError, err)
		}
		opts = append(opts, pipeline.WithPublisher(pub))
	}

	querier, runner, err := buildTools(cfg, logger)
	if err != nil {
		a.Close()
		return nil, exitErr(ExitParseError, err)
	}
	a.service = pipeline.New(querier, runner, opts...)

	if cfg.Metrics.Address != "" {
		a.server = metrics.NewServer(cfg.Metrics.Address, a.metrics, logger)
		if err := a.server.Start(); err != nil {
			a.server = nil
			a.Close()
			return nil, fmt.Errorf("starting metrics server: %w", err)
		}
	}

	return a, nil
}

func buildTools(cfg *config.Config, logger *zap.Logger) (*media.Querier, *engine.Runner, error) {
	rate, err := config.ParseBandwidth(cfg.Download.RateLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("rate limit: %w", err)
	}

	queryArgs := append([]string(nil), cfg.Tools.ExtraArgs...)
	if cfg.Download.Proxy != "" {
		queryArgs = append(queryArgs, "--proxy", cfg.Download.Proxy)
	}
	querier := media.NewQuerier(cfg.Tools.YtDlp,
		media.WithQueryArgs(queryArgs...),
		media.WithContainer(cfg.Download.Container),
		media.WithQueryLogger(logger))

	runnerOpts := []engine.RunnerOption{
		engine.WithMaxHeight(cfg.Download.MaxHeight),
		engine.WithRateLimit(rate),
		engine.WithProxy(cfg.Download.Proxy),
		engine.WithExtraArgs(cfg.Tools.ExtraArgs...),
		engine.WithLogger(logger),
	}
	if st := engine.LookupTool(cfg.Tools.FFmpeg); st.Found() {
		runnerOpts = append(runnerOpts, engine.WithFFmpeg(st.Path))
	}

	return querier, engine.NewRunner(cfg.Tools.YtDlp, runnerOpts...), nil
}

func buildHooks(cfg config.HooksConfig, logger *zap.Logger) (*hooks.Manager, error) {
	opts := []hooks.ManagerOption{hooks.WithLogger(logger)}
	if cfg.ProgressInterval > 0 {
		opts = append(opts, hooks.WithProgressInterval(cfg.ProgressInterval))
	}
	manager := hooks.NewManager(opts...)

	if cfg.OnStart != "" {
		manager.Add(hooks.NewCommandHook(cfg.OnStart, hooks.EventStart))
	}
	if cfg.OnComplete != "" {
		manager.Add(hooks.NewCommandHook(cfg.OnComplete, hooks.EventComplete))
	}
	if cfg.OnError != "" {
		manager.Add(hooks.NewCommandHook(cfg.OnError, hooks.EventError))
	}
	if cfg.Webhook != "" {
		wh, err := hooks.NewWebhookHook(cfg.Webhook, hooks.WithProxy(cfg.WebhookProxy))
		if err != nil {
			return nil, err
		}
		manager.Add(wh)
	}
	return manager, nil
}

func buildPublisher(cfg config.PublishConfig, logger *zap.Logger) (publish.Publisher, error) {
	opts := []publish.Option{
		publish.WithTimeout(cfg.Timeout),
		publish.WithPrivateKey(config.ExpandPath(cfg.PrivateKey)),
		publish.WithKnownHosts(config.ExpandPath(cfg.KnownHosts)),
		publish.WithInsecureHostKey(cfg.InsecureHostKey),
		publish.WithLogger(logger),
	}

	netrc, err := config.LoadNetrc()
	if err != nil {
		logger.Warn("ignoring netrc", zap.Error(err))
	} else if netrc.Len() > 0 {
		opts = append(opts, publish.WithCredentials(netrc.Lookup))
	}

	return publish.New(cfg.Target, opts...)
}

// Close waits for pending hooks and stops the metrics server
func (a *app) Close() {
	if a.hooks != nil {
		a.hooks.Wait()
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.server.Stop(ctx); err != nil {
			a.logger.Warn("stopping metrics server", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
	a.closeLog()
}
