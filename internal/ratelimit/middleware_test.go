package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lumina-dealer/internal/common"
)

type stubAllower struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubAllower) Allow(_ context.Context, key string, _ time.Duration, max int) (bool, int, time.Time, error) {
	s.keys = append(s.keys, key)
	if s.err != nil {
		return false, 0, time.Time{}, s.err
	}
	remaining := max - len(s.keys)
	if remaining < 0 {
		remaining = 0
	}
	return s.allowed, remaining, time.Now().Add(30 * time.Second), nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	limiter, _, _ := newSliding(t)
	handler := Handler{
		Limiter: limiter,
		Key:     func(*http.Request) string { return "static" },
		Window:  time.Minute,
		Max:     1,
	}
	counted := handler.Middleware(okHandler())

	rr := httptest.NewRecorder()
	counted.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/deals/preview", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = httptest.NewRecorder()
	counted.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/deals/preview", nil))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	require.NotEmpty(t, rr.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]int `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "RATE_LIMITED", body.Error.Code)
	require.Equal(t, rr.Header().Get("Retry-After"), strconv.Itoa(body.Error.Details["retryAfterSeconds"]))
}

func TestRetryAfterRoundsUp(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	h := Handler{Now: func() time.Time { return now }}
	require.Equal(t, 3, h.retryAfter(now.Add(2100*time.Millisecond)))
	require.Equal(t, 1, h.retryAfter(now))
	require.Equal(t, 1, h.retryAfter(now.Add(-time.Second)))
}

func TestPreflightNotCounted(t *testing.T) {
	stub := &stubAllower{allowed: false}
	h := Handler{Limiter: stub, Key: func(*http.Request) string { return "k" }, Window: time.Minute, Max: 1}
	rr := httptest.NewRecorder()
	h.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/v1/deals/preview", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Empty(t, stub.keys)
}

func TestHandlerMiddlewareFailsOpen(t *testing.T) {
	var reported error
	handler := Handler{
		Limiter: &stubAllower{err: errors.New("redis down")},
		Key:     func(*http.Request) string { return "k" },
		Window:  time.Second,
		Max:     1,
		OnError: func(err error) { reported = err },
	}

	rr := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualError(t, reported, "redis down")
}

func TestHandlerPassesScopedKey(t *testing.T) {
	stub := &stubAllower{allowed: true}
	handler := Handler{Limiter: stub, Key: KeyByUser("preview"), Window: time.Minute, Max: 10}
	mw := handler.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(common.WithUserID(req.Context(), "u-1"))
	mw.ServeHTTP(httptest.NewRecorder(), req)

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	anon.RemoteAddr = "10.0.0.7:5555"
	mw.ServeHTTP(httptest.NewRecorder(), anon)

	require.Equal(t, []string{"preview:user:u-1", "preview:ip:10.0.0.7"}, stub.keys)
}
