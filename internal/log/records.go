package log

import (
	"context"
	"log/slog"
	"net/http"
)

// The methods below write the records shared across packages. They log
// through the untagged base because the fields name the component.

func (l *Logger) record(ctx context.Context, level slog.Level, msg string, f *Fields) {
	l.base.Log(ctx, level, msg, f.Attrs()...)
}

// HTTPStart logs an incoming request at debug level.
func (l *Logger) HTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	l.record(ctx, slog.LevelDebug, "HTTP request started", NewFields().
		WithComponent(ComponentHTTP).
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP))
}

// HTTPEnd logs a finished request: warn for 4xx, error for 5xx.
func (l *Logger) HTTPEnd(ctx context.Context, r *http.Request, status int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	l.record(ctx, level, "HTTP request completed", NewFields().
		WithComponent(ComponentHTTP).
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPStatus(status, durationMs).
		WithClientIP(clientIP))
}

// MutationAccepted logs a ledger action whose write is now in flight.
func (l *Logger) MutationAccepted(ctx context.Context, id, kind, amount string) {
	l.record(ctx, slog.LevelInfo, "Mutation accepted", NewFields().
		WithComponent(ComponentLedger).
		WithMutation(id, kind, amount))
}

// Failure logs err under component and op. extra may be nil.
func (l *Logger) Failure(ctx context.Context, msg string, err error, component, op string, extra *Fields) {
	if extra == nil {
		extra = NewFields()
	}
	l.record(ctx, slog.LevelError, msg, extra.
		WithComponent(component).
		WithOperation(op).
		WithError(err))
}
