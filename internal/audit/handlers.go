package audit

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/lumina-dealer/internal/common"
	"github.com/noah-isme/lumina-dealer/internal/store"
)

// Handler serves the admin audit trail.
type Handler struct {
	Store Store
}

// List handles GET /api/v1/audit-logs. Supported filters: action,
// resourceType, resourceId, actor and since (RFC 3339).
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.WriteError(w, common.NewAppError("AUDIT_NOT_CONFIGURED", "audit store not configured", http.StatusInternalServerError, nil))
		return
	}
	page, perPage := common.ParsePagination(r, 50, 200)
	p := common.Pagination{Page: page, PerPage: perPage}
	q := r.URL.Query()
	filter := store.AuditFilter{
		Action:       strings.TrimSpace(q.Get("action")),
		ResourceType: strings.TrimSpace(q.Get("resourceType")),
		ResourceID:   strings.TrimSpace(q.Get("resourceId")),
		ActorUserID:  strings.TrimSpace(q.Get("actor")),
		Limit:        perPage,
		Offset:       p.Offset(),
	}
	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.WriteError(w, common.NewAppError("VALIDATION_ERROR", "since must be an RFC 3339 timestamp", http.StatusBadRequest, nil).WithDetails(map[string]string{"since": raw}))
			return
		}
		filter.Since = since
	}

	rows, total, err := h.Store.ListAuditLogs(r.Context(), filter)
	if err != nil {
		common.WriteError(w, common.NewAppError("AUDIT_QUERY_FAILED", "unable to fetch audit logs", http.StatusInternalServerError, err))
		return
	}
	if rows == nil {
		rows = []store.AuditLog{}
	}
	p.TotalItems = total
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{"data": rows, "pagination": p})
}
