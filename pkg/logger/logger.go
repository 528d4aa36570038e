// Package logger builds the JSON slog loggers used across the service and
// carries per-request log fields through context.Context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type fieldsKey struct{}

// requestFields are the values attached to every record logged with a
// request context.
type requestFields struct {
	correlationID string
	userID        string
}

func fieldsFrom(ctx context.Context) requestFields {
	f, _ := ctx.Value(fieldsKey{}).(requestFields)
	return f
}

// New creates a JSON logger on stdout tagged with service.
func New(service, level string) *slog.Logger {
	return NewWithWriter(service, level, os.Stdout)
}

// NewWithWriter creates a JSON logger on w tagged with service. Records logged
// through the *Context methods pick up the request fields automatically.
func NewWithWriter(service, level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	})
	return slog.New(&ContextHandler{Handler: base}).With(slog.String("service", service))
}

// ParseLevel accepts the slog level names (any case, with optional offsets
// such as "warn+2") and "warning". Anything else yields Info.
func ParseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// WithCorrelationID returns a context carrying the request correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	f := fieldsFrom(ctx)
	f.correlationID = id
	return context.WithValue(ctx, fieldsKey{}, f)
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return fieldsFrom(ctx).correlationID
}

// WithUserID returns a context carrying the authenticated user ID.
func WithUserID(ctx context.Context, id string) context.Context {
	f := fieldsFrom(ctx)
	f.userID = id
	return context.WithValue(ctx, fieldsKey{}, f)
}

// UserIDFromContext returns the user ID stored by WithUserID, or "".
func UserIDFromContext(ctx context.Context) string {
	return fieldsFrom(ctx).userID
}

func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	f := fieldsFrom(ctx)
	if f.correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", f.correlationID))
	}
	if f.userID != "" {
		attrs = append(attrs, slog.String("user_id", f.userID))
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}

// ContextHandler adds the request fields and the active span to each record.
type ContextHandler struct {
	slog.Handler
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(contextAttrs(ctx)...)
	return h.Handler.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// WithContext binds the request fields of ctx to l. Loggers built by New
// already do this per record and are returned unchanged.
func WithContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	if _, ok := l.Handler().(*ContextHandler); ok {
		return l
	}
	attrs := contextAttrs(ctx)
	if len(attrs) == 0 {
		return l
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return l.With(args...)
}
