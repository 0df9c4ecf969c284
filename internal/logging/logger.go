package logging

import (
	"context"
	"log"
	"strings"
	"sync/atomic"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	requestIDKey
)

// Levels
const (
	LevelDebug int32 = iota
	LevelInfo
	LevelWarn
	LevelError
)

var minLevel atomic.Int32

func init() {
	minLevel.Store(LevelInfo)
}

// SetLevel sets the minimum level from its name (debug, info, warn, error).
func SetLevel(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		minLevel.Store(LevelDebug)
	case "warn", "warning":
		minLevel.Store(LevelWarn)
	case "error":
		minLevel.Store(LevelError)
	default:
		minLevel.Store(LevelInfo)
	}
}

// WithRunID stores the synchronization run ID in the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID extracts the run ID from the context.
func RunID(ctx context.Context) string {
	if rid, ok := ctx.Value(runIDKey).(string); ok {
		return rid
	}
	return ""
}

// WithRequestID stores the HTTP request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID extracts the HTTP request ID from the context.
func RequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey).(string); ok {
		return rid
	}
	return ""
}

// Logger provides structured logging for services
type Logger struct {
	prefix string
}

// NewLogger creates a logger carrying the run and request IDs found in ctx
func NewLogger(ctx context.Context) *Logger {
	var b strings.Builder
	if rid := RunID(ctx); rid != "" {
		b.WriteString("run_id=" + rid + " ")
	}
	if rid := RequestID(ctx); rid != "" {
		b.WriteString("request_id=" + rid + " ")
	}
	if b.Len() == 0 {
		b.WriteString("run_id=none ")
	}
	return &Logger{prefix: b.String()}
}

func (l *Logger) printf(level int32, tag, operation, format string, args ...interface{}) {
	if level < minLevel.Load() {
		return
	}
	log.Printf("["+tag+"] "+l.prefix+"operation="+operation+" "+format, args...)
}

// LogError logs an error with context
func (l *Logger) LogError(operation string, err error) {
	l.printf(LevelError, "error", operation, "error=%v", err)
}

// LogErrorf logs a formatted error with context
func (l *Logger) LogErrorf(operation string, format string, args ...interface{}) {
	l.printf(LevelError, "error", operation, format, args...)
}

// LogInfo logs an info message with context
func (l *Logger) LogInfo(operation string, message string) {
	l.printf(LevelInfo, "info", operation, "message=%s", message)
}

// LogInfof logs a formatted info message with context
func (l *Logger) LogInfof(operation string, format string, args ...interface{}) {
	l.printf(LevelInfo, "info", operation, format, args...)
}

// LogWarn logs a warning with context
func (l *Logger) LogWarn(operation string, message string) {
	l.printf(LevelWarn, "warn", operation, "message=%s", message)
}

// LogWarnf logs a formatted warning with context
func (l *Logger) LogWarnf(operation string, format string, args ...interface{}) {
	l.printf(LevelWarn, "warn", operation, format, args...)
}

// LogDebugf logs a formatted debug message with context
func (l *Logger) LogDebugf(operation string, format string, args ...interface{}) {
	l.printf(LevelDebug, "debug", operation, format, args...)
}
