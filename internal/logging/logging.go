// Package logging builds the zap logger shared by the host and the worker.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelEnvVar carries the host's log level into the worker process.
const LevelEnvVar = "GENWIZ_LOG_LEVEL"

// Options selects the level and destination of diagnostic logs.
type Options struct {
	Level string // zap level name; empty means warn
	File  string // JSON log file; empty means console on stderr
}

// New builds a logger. File output uses the production JSON encoder;
// stderr output uses the console encoder without stack traces.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}

	var cfg zap.Config
	if opts.File != "" {
		cfg = zap.NewProductionConfig()
		cfg.OutputPaths = []string{opts.File}
		cfg.ErrorOutputPaths = []string{opts.File}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
		cfg.DisableStacktrace = true
		cfg.DisableCaller = true
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
