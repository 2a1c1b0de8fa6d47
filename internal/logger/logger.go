// Package logger provides the structured logger shared by services and HTTP middleware.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/maremotors/backoffice/internal/requestid"
	"go.opentelemetry.io/otel/trace"
)

// Logger wraps slog.Logger with a few domain helpers.
type Logger struct {
	*slog.Logger
}

// New returns a text logger at debug level in development and a JSON logger otherwise.
func New(env string) *Logger {
	return newWithWriter(env, os.Stdout)
}

func newWithWriter(env string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Nop discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext adds the request id and trace id found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	out := l.Logger
	if id := requestid.FromContext(ctx); id != "" {
		out = out.With(slog.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		out = out.With(slog.String("trace_id", sc.TraceID().String()))
	}
	return &Logger{Logger: out}
}

// WithUserID returns a logger tagged with the acting user.
func (l *Logger) WithUserID(userID uint) *Logger {
	return &Logger{Logger: l.With(slog.Uint64("user_id", uint64(userID)))}
}

func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// AuthEvent logs a login or logout attempt. Failures go to warn.
func (l *Logger) AuthEvent(event, email string, success bool, reason string) {
	if success {
		l.Info("auth_event", slog.String("event", event), slog.String("email", email), slog.Bool("success", true))
		return
	}
	l.Warn("auth_event",
		slog.String("event", event),
		slog.String("email", email),
		slog.Bool("success", false),
		slog.String("reason", reason),
	)
}

func (l *Logger) RateLimitExceeded(ip, path string) {
	l.Warn("rate_limit_exceeded", slog.String("ip", ip), slog.String("path", path))
}
