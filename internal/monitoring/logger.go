package monitoring

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog with domain helpers.
type Logger struct {
	*slog.Logger
}

func replaceTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{
			Key:   "timestamp",
			Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
		}
	}
	return a
}

// NewLogger creates the service JSON logger on stdout.
func NewLogger() *Logger {
	return NewJSONLogger(os.Stdout, slog.LevelInfo)
}

// NewJSONLogger writes JSON records at or above level to w.
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   true,
		ReplaceAttr: replaceTime,
	})
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger is the human-readable variant used by the CLI.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceTime,
	})
	return &Logger{Logger: slog.New(handler)}
}

// NopLogger discards everything. Handy in tests.
func NopLogger() *Logger {
	return NewJSONLogger(io.Discard, slog.LevelError+1)
}

// RequestLogger logs HTTP request details.
func (l *Logger) RequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// AnalysisLogger logs a finished analysis.
func (l *Logger) AnalysisLogger(applicationID, source, category string, confidence float64, duration time.Duration, cacheHit bool) {
	l.Info("Analysis Completed",
		"application_id", applicationID,
		"source", source,
		"risk_category", category,
		"confidence", confidence,
		"duration_ms", duration.Milliseconds(),
		"cache_hit", cacheHit,
	)
}

// FallbackLogger logs why an analysis left the model path.
func (l *Logger) FallbackLogger(applicationID, stage string, err error) {
	l.Warn("Analysis Fallback",
		"application_id", applicationID,
		"stage", stage,
		"error", err.Error(),
	)
}

// TrainingLogger logs the outcome of a training pass.
func (l *Logger) TrainingLogger(version string, rows int, distribution map[string]int, duration time.Duration, err error) {
	if err != nil {
		l.Error("Training Failed",
			"rows", rows,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	l.Info("Training Completed",
		"version", version,
		"rows", rows,
		"class_distribution", distribution,
		"duration_ms", duration.Milliseconds(),
	)
}

// CacheLogger logs cache maintenance.
func (l *Logger) CacheLogger(operation, key string, size int) {
	l.Debug("Cache Operation",
		"operation", operation,
		"key", key,
		"cache_size", size,
	)
}

// APIErrorLogger logs a handler error.
func (l *Logger) APIErrorLogger(err error, method, path string, statusCode int) {
	level := slog.LevelWarn
	if statusCode >= 500 {
		level = slog.LevelError
	}
	l.Log(context.Background(), level, "API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"status_code", statusCode,
	)
}

// SystemLogger logs lifecycle events.
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

var startTime = time.Now()
