package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Logger wraps zap.SugaredLogger to provide logging functionality
type Logger struct {
	*zap.SugaredLogger
}

// L is the default global logger, kept for scripts and init paths. Everywhere
// else the logger should come in through dependency injection.
var L *Logger

func init() {
	L, _ = NewLogger("info")
}

// NewLogger creates and returns a new Logger instance
func NewLogger(level string) (*Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	zapLogger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &Logger{
		SugaredLogger: zapLogger.Sugar(),
	}, nil
}

// WithContext returns a logger annotated with the request and organization
// identifiers stored in the context
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := []interface{}{}
	if orgID := types.GetOrganizationID(ctx); orgID != "" {
		fields = append(fields, "organization_id", orgID)
	}
	if requestID := types.GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	return &Logger{SugaredLogger: l.SugaredLogger.With(fields...)}
}

// With returns a logger with the given structured fields attached
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...)}
}
