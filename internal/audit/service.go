package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strings"

	"github.com/noah-isme/lumina-dealer/internal/common"
	"github.com/noah-isme/lumina-dealer/internal/obs"
	"github.com/noah-isme/lumina-dealer/internal/store"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindSystem    ActorKind = "system"
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes who performed the action.
type Actor struct {
	Kind   ActorKind
	UserID string
}

func (a Actor) kind() ActorKind {
	switch a.Kind {
	case ActorKindUser, ActorKindSystem:
		return a.Kind
	default:
		return ActorKindAnonymous
	}
}

// Event is one audited action against a back-office resource.
type Event struct {
	Actor        Actor
	Action       string
	ResourceType string
	ResourceID   string
	Status       int
	Metadata     map[string]any
}

// Store defines the database operations required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, e store.AuditEntry) error
	ListAuditLogs(ctx context.Context, f store.AuditFilter) ([]store.AuditLog, int, error)
}

// Service persists audit logs for deal writes and other sensitive flows.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
	// Sample returns a value in [0,1). Defaults to math/rand.
	Sample func() float64
}

// Record stores ev along with request context: route, client IP, user agent
// and request id. Missing action and resource type are derived from the route.
func (s Service) Record(ctx context.Context, req *http.Request, ev Event) error {
	if !s.Enabled || !s.sampled() {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RouteOf(req, strings.TrimSpace(req.URL.Path))
	action := strings.TrimSpace(ev.Action)
	if action == "" {
		action = req.Method + " " + route
	}
	resourceType := strings.TrimSpace(ev.ResourceType)
	if resourceType == "" {
		resourceType = resourceFromRoute(route)
	}
	status := ev.Status
	if status == 0 {
		status = http.StatusOK
	}
	meta := ev.Metadata
	if len(meta) == 0 && req.URL.RawQuery != "" {
		meta = map[string]any{"query": req.URL.RawQuery}
	}
	var metadata []byte
	if len(meta) > 0 {
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		metadata = data
	}

	return s.Store.InsertAuditLog(ctx, store.AuditEntry{
		ActorKind:    string(ev.Actor.kind()),
		ActorUserID:  optional(ev.Actor.UserID),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   optional(ev.ResourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        optional(route),
		Status:       status,
		IP:           optional(common.ClientIP(req)),
		UserAgent:    optional(req.Header.Get("User-Agent")),
		RequestID:    optional(req.Header.Get("X-Request-ID")),
		Metadata:     metadata,
	})
}

func (s Service) sampled() bool {
	if s.SamplingRate <= 0 || s.SamplingRate >= 1 {
		return true
	}
	sample := s.Sample
	if sample == nil {
		sample = rand.Float64
	}
	return sample() < s.SamplingRate
}

// resourceFromRoute turns /api/v1/deal-drafts/{id}/submit into deal-drafts.submit.
func resourceFromRoute(route string) string {
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 2 && segments[0] == "api" && strings.HasPrefix(segments[1], "v") {
		segments = segments[2:]
	}
	kept := segments[:0]
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{") {
			continue
		}
		kept = append(kept, seg)
	}
	if len(kept) == 0 {
		return "unknown"
	}
	return strings.Join(kept, ".")
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
