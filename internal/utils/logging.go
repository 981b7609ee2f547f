package utils

import (
	"go.uber.org/zap"
)

// NewLogger builds the production zap logger. A failure here means the process
// cannot report anything, so it panics like the other services do.
func NewLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	return logger
}

// OrNop lets components accept a nil logger in tests.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
