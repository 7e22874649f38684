// Package logutil builds the zap loggers shared by the tree, the
// reclamation schemes and the server.
package logutil

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Adjust returns logger, or a no-op logger when logger is nil.
// Components call it in their constructors so a nil logger is always safe.
func Adjust(logger *zap.Logger, names ...string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	for _, n := range names {
		logger = logger.Named(n)
	}
	return logger
}

// New creates a production JSON logger at the given level
// ("debug", "info", "warn", "error").
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "parse log level %q", level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = lvl > zapcore.DebugLevel
	logger, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}
