// Package logger builds the application's zap logger. Services receive
// named sub-loggers (orchestrator, store, ai, sync) from the one returned
// here rather than constructing their own.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a zap logger appropriate for the environment: console encoder
// with debug level in development, JSON with info level otherwise.
func New(environment string) (*zap.Logger, error) {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return log, nil
}
