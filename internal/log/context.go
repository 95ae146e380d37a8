package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the request-scoped logger, or one over the slog
// default when none was attached.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: ComponentApp}
}

// StructuredLogger writes the fixed-shape records for requests and item
// changes.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPStart logs an incoming request at debug level.
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithClientIP(clientIP)
	sl.logger.DebugContext(ctx, "HTTP request started", fields.Args()...)
}

// LogHTTPEnd logs a finished request; 4xx is a warning and 5xx an error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, status int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	fields := NewFields().
		WithRequest(r.Method, r.URL.Path, "", "").
		WithResponse(status, durationMs).
		WithClientIP(clientIP)
	sl.logger.Log(ctx, level, "HTTP request completed", fields.Args()...)
}

// LogItemCreated logs a row promoted from the unsaved sentinel.
func (sl *StructuredLogger) LogItemCreated(ctx context.Context, id, category, item, subtotal string) {
	fields := NewFields().
		WithItem(id, category, item, subtotal).
		WithOperation(OpCreate)
	sl.logger.InfoContext(ctx, "Budget item created", fields.Args()...)
}

// LogFieldSaved logs a single field persisted on blur.
func (sl *StructuredLogger) LogFieldSaved(ctx context.Context, id, field string) {
	sl.logger.DebugContext(ctx, "Budget item field saved",
		FieldItemID, id, FieldItemField, field, FieldOperation, OpUpdate)
}

// LogFailure logs a failed operation on an item.
func (sl *StructuredLogger) LogFailure(ctx context.Context, msg, operation, id string, err error) {
	fields := NewFields().
		WithOperation(operation).
		WithError(err)
	fields[FieldItemID] = id
	sl.logger.WarnContext(ctx, msg, fields.Args()...)
}
