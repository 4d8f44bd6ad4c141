// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// JobIDKey is the context key for a batch job run ID
	JobIDKey contextKey = "job_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if jobID, ok := ctx.Value(JobIDKey).(string); ok && jobID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("job_id", jobID))}
	}

	return newLogger
}

// WithJob returns a logger tagged with the batch job name.
func (l *Logger) WithJob(job string) *Logger {
	return &Logger{Logger: l.With(slog.String("job", job))}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// SOAPCall logs an outbound SOAP call with timing.
func (l *Logger) SOAPCall(system, operation string, latency time.Duration, err error) {
	if err != nil {
		l.Warn("soap_call",
			slog.String("system", system),
			slog.String("operation", operation),
			slog.Float64("latency_ms", float64(latency.Milliseconds())),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Debug("soap_call",
		slog.String("system", system),
		slog.String("operation", operation),
		slog.Float64("latency_ms", float64(latency.Milliseconds())),
	)
}

// JobSummary logs the outcome of a batch job run.
func (l *Logger) JobSummary(job string, total, updated, failed int, elapsed time.Duration) {
	l.Info("job_summary",
		slog.String("job", job),
		slog.Int("total", total),
		slog.Int("updated", updated),
		slog.Int("failed", failed),
		slog.Float64("elapsed_ms", float64(elapsed.Milliseconds())),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
