// Package logging builds the zap logger shared by all components.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kilimcininkoroglu/dogan/internal/config"
)

// New returns a logger for cfg and a function that flushes and closes it.
//
// With interactive set and no log file configured the logger discards
// everything, since stderr belongs to the terminal UI.
func New(cfg config.LoggingConfig, interactive bool) (*zap.Logger, func(), error) {
	noop := func() {}

	if interactive && cfg.File == "" {
		return zap.NewNop(), noop, nil
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, noop, fmt.Errorf("logging.level: %w", err)
		}
		level = parsed
	}

	var encoder zapcore.Encoder
	switch cfg.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "", "text":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, noop, fmt.Errorf("logging.format: unknown format %q", cfg.Format)
	}

	sink := zapcore.Lock(os.Stderr)
	closer := noop
	if cfg.File != "" {
		f, err := os.OpenFile(config.ExpandPath(cfg.File), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, noop, fmt.Errorf("opening log file: %w", err)
		}
		sink = zapcore.Lock(f)
		closer = func() { _ = f.Close() }
	}

	logger := zap.New(zapcore.NewCore(encoder, sink, level))
	return logger, func() {
		_ = logger.Sync()
		closer()
	}, nil
}
