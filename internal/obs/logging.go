package obs

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/lumina-dealer/internal/common"
)

// NewLogger configures a zerolog logger using the provided format and level.
// "console" or "text" selects the human-readable writer; anything else is JSON.
func NewLogger(format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// RequestLogger writes one access log line per request. A child logger
// carrying request_id and trace ids is stored on the context; later
// middleware can add fields to it with UpdateContext and they appear on the
// access line too.
type RequestLogger struct {
	Logger zerolog.Logger
}

// Middleware implements chi middleware for structured request logs.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := l.Logger.With().Str("request_id", middleware.GetReqID(r.Context()))
		if span := trace.SpanContextFromContext(r.Context()); span.IsValid() {
			c = c.Str("trace_id", span.TraceID().String()).Str("span_id", span.SpanID().String())
		}
		logger := c.Logger()
		ctx := logger.WithContext(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := statusOf(ww)
		evt := zerolog.Ctx(ctx).Info()
		if status >= http.StatusInternalServerError {
			evt = zerolog.Ctx(ctx).Error()
		}
		evt = evt.
			Str("method", r.Method).
			Str("route", RouteOf(r, r.URL.Path)).
			Str("path", r.URL.Path).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Int("bytes", ww.BytesWritten()).
			Str("remote_ip", common.ClientIP(r))
		if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
			evt = evt.Str("user_agent", ua)
		}
		evt.Msg("http_request")
	})
}

// TagCaller adds the authenticated caller to the request logger and the
// active span.
func TagCaller(ctx context.Context, userID, role string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", userID), attribute.String("enduser.role", role))
	zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("user_id", userID).Str("role", role)
	})
}
