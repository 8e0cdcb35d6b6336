package zaplog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/common-repository/trust-payments-gateway-3ds2/internal/domain/ports"
)

// Logger adapts zap.Logger to the ports.Logger interface
type Logger struct {
	logger *zap.Logger
}

// New wraps an existing zap logger
func New(logger *zap.Logger) *Logger {
	return &Logger{logger: logger}
}

// NewFromLevel builds a logger for the configured level. Development mode
// switches to the human-readable console encoder.
func NewFromLevel(level string, development bool) (*Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parsed)

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{logger: logger}, nil
}

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	return l.logger.Sync()
}

// Zap exposes the underlying zap logger for packages that are not written
// against the ports interface.
func (l *Logger) Zap() *zap.Logger {
	return l.logger
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...ports.Field) {
	l.logger.Info(msg, convertFields(fields)...)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...ports.Field) {
	l.logger.Error(msg, convertFields(fields)...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...ports.Field) {
	l.logger.Warn(msg, convertFields(fields)...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...ports.Field) {
	l.logger.Debug(msg, convertFields(fields)...)
}

// convertFields converts our Field type to zap.Field
func convertFields(fields []ports.Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		zapFields[i] = zap.Any(f.Key, f.Value)
	}
	return zapFields
}
