// Package logging builds the zap.Logger shared by the CLI and the
// coordinator.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger configured for development or production, named
// "rqueue" so a process embedding the coordinator alongside other
// components can filter logs by origin.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger.Named("rqueue"), nil
	}

	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	// zap samples per level and message each second. These values log the
	// first 20 entries of a message per second and then every 200th, which
	// is stricter than zap's stock 100/100, so bursts of repeated
	// backoff-retry or consistency-wait lines are thinned out sooner.
	cfg.Sampling = &zap.SamplingConfig{
		Initial:    20,
		Thereafter: 200,
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger.Named("rqueue"), nil
}
