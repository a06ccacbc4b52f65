package dealer

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/lumina-dealer/internal/common"
	"github.com/noah-isme/lumina-dealer/internal/deal"
	"github.com/noah-isme/lumina-dealer/internal/report"
)

// Handler exposes deal endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "deal service not configured", nil)
		return false
	}
	return true
}

// Preview handles POST /api/v1/deals/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in deal.Inputs
	if err := decodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.service.Preview(in)})
}

// ListDeals handles GET /api/v1/deals.
func (h *Handler) ListDeals(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	page, limit := common.ParsePagination(r, 20, 100)
	result, err := h.service.ListDeals(r.Context(), page, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	items := result.Items
	if items == nil {
		items = []deal.Record{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: result.Total},
	})
}

// GetDeal handles GET /api/v1/deals/{id}.
func (h *Handler) GetDeal(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.service.GetDeal(r.Context(), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Breakdown handles GET /api/v1/deals/{id}/breakdown.
func (h *Handler) Breakdown(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	format, ok := queryFormat(w, r)
	if !ok {
		return
	}
	if format == report.FormatJSON {
		view, err := h.service.Breakdown(r.Context(), id)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"data": view})
		return
	}
	body, err := h.service.RenderBreakdown(r.Context(), id, format)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	writeRendered(w, format, body)
}

// Settlement handles GET /api/v1/deals/{id}/settlement.
func (h *Handler) Settlement(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	format, ok := queryFormat(w, r)
	if !ok {
		return
	}
	body, err := h.service.Settlement(r.Context(), id, format)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if format == report.FormatJSON {
		common.JSON(w, http.StatusOK, map[string]any{"data": json.RawMessage(body)})
		return
	}
	writeRendered(w, format, body)
}

// ListVehicles handles GET /api/v1/vehicles.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	page, limit := common.ParsePagination(r, 50, 200)
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	items, err := h.service.ListVehicles(r.Context(), status, page, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: limit, TotalItems: len(items)},
	})
}

// LedgerCosts handles GET /api/v1/vehicles/{id}/ledger-costs.
func (h *Handler) LedgerCosts(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	res, err := h.service.LedgerCosts(r.Context(), id, refresh)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// ListSalesReps handles GET /api/v1/sales-reps.
func (h *Handler) ListSalesReps(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	reps, err := h.service.ListSalesReps(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": reps})
}

// OpenDraft handles POST /api/v1/deal-drafts.
func (h *Handler) OpenDraft(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req OpenDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	view, err := h.service.OpenDraft(r.Context(), owner(r), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

// GetDraft handles GET /api/v1/deal-drafts/{id}.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	view, err := h.service.GetDraft(owner(r), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

type editRequest struct {
	Ops []EditOp `json:"ops"`
}

// EditDraft handles PATCH /api/v1/deal-drafts/{id}.
func (h *Handler) EditDraft(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if len(req.Ops) == 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "ops is required", nil)
		return
	}
	view, err := h.service.EditDraft(r.Context(), owner(r), id, req.Ops)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// SubmitDraft handles POST /api/v1/deal-drafts/{id}/submit.
func (h *Handler) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.service.SubmitDraft(r.Context(), owner(r), id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/deals/"+rec.ID.String())
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// DiscardDraft handles DELETE /api/v1/deal-drafts/{id}.
func (h *Handler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DiscardDraft(owner(r), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func owner(r *http.Request) string {
	id, _ := common.UserID(r.Context())
	return id
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return common.NewAppError("BAD_REQUEST", "invalid JSON body", http.StatusBadRequest, err)
	}
	return nil
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+param, nil)
		return uuid.Nil, false
	}
	return id, true
}

func queryFormat(w http.ResponseWriter, r *http.Request) (report.Format, bool) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return "", false
	}
	return format, true
}

func writeRendered(w http.ResponseWriter, format report.Format, body []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
