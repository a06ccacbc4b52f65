package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/lumina-dealer/internal/common"
)

// Allower decides whether one more event for key fits within max per window.
type Allower interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Handler throttles a route group. Limiter errors fail open and are passed
// to OnError.
type Handler struct {
	Limiter Allower
	Key     func(*http.Request) string
	Window  time.Duration
	Max     int
	OnError func(error)
	Now     func() time.Time
}

// Middleware sets the X-RateLimit-* headers on every counted request and
// answers 429 RATE_LIMITED once the window is spent. CORS preflights are
// never counted.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Key == nil || h.Limiter == nil || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Key(r), h.Window, h.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Max, 0)))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		wait := h.retryAfter(resetAt)
		headers.Set("Retry-After", strconv.Itoa(wait))
		common.WriteError(w, common.NewAppError("RATE_LIMITED", "rate limit exceeded", http.StatusTooManyRequests, nil).
			WithDetails(map[string]int{"retryAfterSeconds": wait}))
	})
}

// retryAfter rounds up to whole seconds and never advertises zero.
func (h Handler) retryAfter(resetAt time.Time) int {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	secs := int(math.Ceil(resetAt.Sub(now()).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// KeyByUser scopes the limit to the authenticated user, falling back to the
// client IP for anonymous callers.
func KeyByUser(scope string) func(*http.Request) string {
	return func(r *http.Request) string {
		if id, ok := common.UserID(r.Context()); ok && id != "" {
			return scope + ":user:" + id
		}
		return scope + ":ip:" + common.ClientIP(r)
	}
}
