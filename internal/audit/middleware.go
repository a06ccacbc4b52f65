package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/lumina-dealer/internal/common"
)

// HTTPRecorder writes one audit row per handled request.
type HTTPRecorder struct {
	Service   *Service
	OnError   func(error)
	ActorFunc func(*http.Request) Actor
}

// HTTPConfig customises how the audit entry is produced for a route.
type HTTPConfig struct {
	Action       string
	ResourceType string
	// ResourceIDParam names the chi URL parameter holding the resource id.
	ResourceIDParam string
	// ResourceIDFunc derives the id from the finished response instead, for
	// routes that create the resource they act on. It wins over the param.
	ResourceIDFunc func(req *http.Request, header http.Header) string
	MetadataFunc   func(*http.Request, int) map[string]any
	ActorFunc      func(*http.Request) Actor
}

// Middleware records the request after next has written its response. The
// caller's role and the URL resource id are always added to the metadata.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}

			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			next.ServeHTTP(ww, req)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			actor := r.actor(req)
			if cfg.ActorFunc != nil {
				actor = cfg.ActorFunc(req)
			}

			meta := map[string]any{}
			if role := common.Role(req.Context()); role != "" {
				meta["role"] = role
			}
			resourceID := ""
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			if cfg.ResourceIDFunc != nil {
				if id := cfg.ResourceIDFunc(req, ww.Header()); id != "" {
					if resourceID != "" {
						meta[cfg.ResourceIDParam] = resourceID
					}
					resourceID = id
				}
			}
			if cfg.MetadataFunc != nil {
				for k, v := range cfg.MetadataFunc(req, status) {
					meta[k] = v
				}
			}

			err := r.Service.Record(req.Context(), req, Event{
				Actor:        actor,
				Action:       cfg.Action,
				ResourceType: cfg.ResourceType,
				ResourceID:   resourceID,
				Status:       status,
				Metadata:     meta,
			})
			if err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

func (r HTTPRecorder) actor(req *http.Request) Actor {
	if r.ActorFunc != nil {
		return r.ActorFunc(req)
	}
	if userID, ok := common.UserID(req.Context()); ok && userID != "" {
		return Actor{Kind: ActorKindUser, UserID: userID}
	}
	return Actor{Kind: ActorKindAnonymous}
}
