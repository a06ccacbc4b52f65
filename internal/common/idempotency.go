package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	redis "github.com/redis/go-redis/v9"
)

const idemPending = "pending"

// Idem honours the Idempotency-Key header on write endpoints. The first
// successful response is stored and replayed verbatim for repeats within TTL.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

type storedResponse struct {
	Status      int    `json:"status"`
	Location    string `json:"location,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// hashKey scopes the client key to the caller and route so two users cannot
// collide on the same header value.
func hashKey(r *http.Request, key string) string {
	user, _ := UserID(r.Context())
	sum := sha256.Sum256([]byte(user + "|" + r.Method + "|" + r.URL.Path + "|" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware claims the key before calling next. A repeat while the first
// request is running gets 409 IDEMPOTENCY_IN_PROGRESS. Failed responses
// release the key so the client can resubmit.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := hashKey(r, header)
		claimed, err := i.R.SetNX(ctx, key, idemPending, i.TTL).Result()
		if err != nil {
			WriteError(w, NewAppError("INTERNAL", "idempotency store error", http.StatusInternalServerError, err))
			return
		}
		if !claimed {
			i.replay(ctx, w, key)
			return
		}

		var body bytes.Buffer
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(&body)
		bg := context.WithoutCancel(ctx)
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusBadRequest {
				_ = i.R.Del(bg, key).Err()
				return
			}
			data, err := json.Marshal(storedResponse{
				Status:      status,
				Location:    ww.Header().Get("Location"),
				ContentType: ww.Header().Get("Content-Type"),
				Body:        body.Bytes(),
			})
			if err != nil {
				_ = i.R.Del(bg, key).Err()
				return
			}
			_ = i.R.Set(bg, key, data, i.TTL).Err()
		}()
		next.ServeHTTP(ww, r)
	})
}

func (i Idem) replay(ctx context.Context, w http.ResponseWriter, key string) {
	raw, err := i.R.Get(ctx, key).Bytes()
	if err != nil && err != redis.Nil {
		WriteError(w, NewAppError("INTERNAL", "idempotency store error", http.StatusInternalServerError, err))
		return
	}
	var prev storedResponse
	if err != nil || string(raw) == idemPending || json.Unmarshal(raw, &prev) != nil {
		WriteError(w, NewAppError("IDEMPOTENCY_IN_PROGRESS", "a request with this idempotency key is still running", http.StatusConflict, nil))
		return
	}
	if prev.Location != "" {
		w.Header().Set("Location", prev.Location)
	}
	if prev.ContentType != "" {
		w.Header().Set("Content-Type", prev.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(prev.Status)
	_, _ = w.Write(prev.Body)
}
