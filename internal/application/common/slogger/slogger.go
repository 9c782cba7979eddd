// Package slogger is a process-wide facade over logging.ApplicationLogger.
package slogger

import (
	"bh/internal/application/common/logging"
	"context"
	"sync"
	"time"
)

// Fields is an alias for logging.Fields for convenience.
type Fields = logging.Fields

// LoggerManager manages the process-wide logger instance.
type LoggerManager struct {
	mu     sync.RWMutex
	logger logging.ApplicationLogger
}

var defaultManager = &LoggerManager{} //nolint:gochecknoglobals // Required for singleton logging infrastructure

// DefaultConfig is used until Configure is called. Logs go to stderr so
// stdout stays reserved for command output.
func DefaultConfig() logging.Config {
	return logging.Config{
		Level:  "WARN",
		Format: "text",
		Output: "stderr",
	}
}

func (lm *LoggerManager) getLogger() logging.ApplicationLogger {
	lm.mu.RLock()
	logger := lm.logger
	lm.mu.RUnlock()
	if logger != nil {
		return logger
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.logger == nil {
		l, err := logging.NewApplicationLogger(DefaultConfig())
		if err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
		lm.logger = l
	}
	return lm.logger
}

// SetLogger replaces the managed logger.
func (lm *LoggerManager) SetLogger(logger logging.ApplicationLogger) {
	lm.mu.Lock()
	lm.logger = logger
	lm.mu.Unlock()
}

func getLogger() logging.ApplicationLogger {
	return defaultManager.getLogger()
}

// Configure builds a logger from config and installs it globally.
func Configure(config logging.Config) error {
	logger, err := logging.NewApplicationLogger(config)
	if err != nil {
		return err
	}
	defaultManager.SetLogger(logger)
	return nil
}

// Debug logs a debug message with context.
func Debug(ctx context.Context, msg string, fields Fields) {
	getLogger().Debug(ctx, msg, fields)
}

// Info logs an info message with context.
func Info(ctx context.Context, msg string, fields Fields) {
	getLogger().Info(ctx, msg, fields)
}

// Warn logs a warning message with context.
func Warn(ctx context.Context, msg string, fields Fields) {
	getLogger().Warn(ctx, msg, fields)
}

// ErrorWithError logs an error message with an error object and context.
func ErrorWithError(ctx context.Context, err error, msg string, fields Fields) {
	getLogger().ErrorWithError(ctx, err, msg, fields)
}

// LogPerformance logs how long operation took, at info level.
func LogPerformance(ctx context.Context, operation string, duration time.Duration, fields Fields) {
	getLogger().LogPerformance(ctx, operation, duration, fields)
}

// Field creates a single-field Fields map.
func Field(key string, value interface{}) Fields {
	return Fields{key: value}
}

// Fields3 creates a Fields map with three key-value pairs.
func Fields3(k1 string, v1 interface{}, k2 string, v2 interface{}, k3 string, v3 interface{}) Fields {
	return Fields{k1: v1, k2: v2, k3: v3}
}

// WithComponent returns a logger with a specific component name.
func WithComponent(component string) logging.ApplicationLogger {
	return getLogger().WithComponent(component)
}
