// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service is attached to every log line.
const Service = "carsnbids-loader"

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.InitialFields = map[string]any{"service": Service}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger (development=%t): %w", development, err)
	}
	return logger, nil
}

// ForRun scopes a logger to a single run.
func ForRun(logger *zap.Logger, runID string, runDate time.Time) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(
		zap.String("run_id", runID),
		zap.String("run_date", runDate.Format(time.DateOnly)),
	)
}
