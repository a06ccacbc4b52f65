package dealer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lumina-dealer/internal/common"
	"github.com/noah-isme/lumina-dealer/internal/deal"
)

type draftResponse struct {
	Data DraftView `json:"data"`
}

type errorResponse struct {
	Error common.ErrorBody `json:"error"`
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user := req.Header.Get("X-Test-User"); user != "" {
				req = req.WithContext(common.WithUserID(req.Context(), user))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/api/v1/deals/preview", h.Preview)
	r.Get("/api/v1/deals", h.ListDeals)
	r.Get("/api/v1/deals/{id}", h.GetDeal)
	r.Get("/api/v1/deals/{id}/breakdown", h.Breakdown)
	r.Get("/api/v1/deals/{id}/settlement", h.Settlement)
	r.Get("/api/v1/vehicles", h.ListVehicles)
	r.Get("/api/v1/vehicles/{id}/ledger-costs", h.LedgerCosts)
	r.Get("/api/v1/sales-reps", h.ListSalesReps)
	r.Post("/api/v1/deal-drafts", h.OpenDraft)
	r.Get("/api/v1/deal-drafts/{id}", h.GetDraft)
	r.Patch("/api/v1/deal-drafts/{id}", h.EditDraft)
	r.Delete("/api/v1/deal-drafts/{id}", h.DiscardDraft)
	r.Post("/api/v1/deal-drafts/{id}/submit", h.SubmitDraft)
	return r
}

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPreviewHandler(t *testing.T) {
	f := newFixture(t, nil)
	router := newTestRouter(NewHandler(HandlerConfig{Service: f.svc}))

	rec := do(t, router, http.MethodPost, "/api/v1/deals/preview", "", `{"sellingPrice":500000,"costPrice":400000,"vehicleLedgerCosts":5000,"isSharedCapital":true,"partnerSplitValue":250,"salesRepCommissionPercent":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Data deal.Summary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Data.Breakdown.GrossProfit.Equal(deal.NewMoney(95000)), body.Data.Breakdown.GrossProfit.String())
	require.True(t, body.Data.PartnerPayout.Equal(deal.NewMoney(95000)))
	require.True(t, body.Data.LuminaNetProfit.IsZero())

	rec = do(t, router, http.MethodPost, "/api/v1/deals/preview", "", `{"sellingPrice":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/v1/deals/preview", "", `{"unknown":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDraftHandlersFlow(t *testing.T) {
	f := newFixture(t, nil)
	router := newTestRouter(NewHandler(HandlerConfig{Service: f.svc}))
	v := f.store.addVehicle(500000, 400000)
	rep := f.store.addRep(10)
	f.setLedger(v.ID, 5000)

	rec := do(t, router, http.MethodPost, "/api/v1/deal-drafts", "user-1", `{"vehicleId":"`+v.ID.String()+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var opened draftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opened))
	draftPath := "/api/v1/deal-drafts/" + opened.Data.ID.String()

	rec = do(t, router, http.MethodGet, draftPath, "user-2", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, draftPath+"/submit", "user-1", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var verr errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verr))
	require.Equal(t, "VALIDATION_FAILED", verr.Error.Code)

	patch := `{"ops":[
		{"op":"selectSalesRep","id":"` + rep.ID.String() + `"},
		{"op":"setDelivery","address":"12 Long St","date":"2026-03-01"},
		{"op":"addAddon","name":"Tint","cost":800,"price":2500}
	]}`
	rec = do(t, router, http.MethodPatch, draftPath, "user-1", patch)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var edited draftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &edited))
	require.Empty(t, edited.Data.MissingFields)
	require.Len(t, edited.Data.Inputs.Addons, 1)

	rec = do(t, router, http.MethodPatch, draftPath, "user-1", `{"ops":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, draftPath+"/submit", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved struct {
		Data deal.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.True(t, saved.Data.ReconCost.Equal(deal.NewMoney(5000)))
	require.Len(t, saved.Data.AddonsData, 1)

	rec = do(t, router, http.MethodGet, "/api/v1/deals/"+saved.Data.ID.String(), "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/deals?limit=10", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec = do(t, router, http.MethodDelete, draftPath, "user-1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiscardDraftHandler(t *testing.T) {
	f := newFixture(t, nil)
	router := newTestRouter(NewHandler(HandlerConfig{Service: f.svc}))
	v := f.store.addVehicle(100000, 90000)

	view, err := f.svc.OpenDraft(context.Background(), "u", OpenDraftRequest{VehicleID: &v.ID})
	require.NoError(t, err)
	rec := do(t, router, http.MethodDelete, "/api/v1/deal-drafts/"+view.ID.String(), "u", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Zero(t, f.svc.Drafts().Len())
}

func TestReportHandlers(t *testing.T) {
	f := newFixture(t, nil)
	router := newTestRouter(NewHandler(HandlerConfig{Service: f.svc}))
	saved, err := f.store.InsertDeal(context.Background(), deal.Submission{
		SoldPrice: deal.NewMoney(200000),
		CostPrice: deal.NewMoney(150000),
	}, "u")
	require.NoError(t, err)
	base := "/api/v1/deals/" + saved.ID.String()

	rec := do(t, router, http.MethodGet, base+"/settlement?format=md", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "Not a shared-capital deal.")

	rec = do(t, router, http.MethodGet, base+"/settlement", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data SettlementView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, saved.ID, body.Data.DealID)
	require.True(t, body.Data.Settlement.LuminaKeepsTotal.Equal(deal.NewMoney(50000)), body.Data.Settlement.LuminaKeepsTotal.String())

	rec = do(t, router, http.MethodGet, base+"/breakdown?format=html", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "<table>")

	rec = do(t, router, http.MethodGet, base+"/breakdown", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, base+"/settlement?format=pdf", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/deals/not-a-uuid/settlement", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/deals/"+uuid.NewString()+"/breakdown", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInventoryHandlers(t *testing.T) {
	f := newFixture(t, nil)
	router := newTestRouter(NewHandler(HandlerConfig{Service: f.svc}))
	v := f.store.addVehicle(100000, 90000)
	f.store.addRep(8)
	f.setLedger(v.ID, 700, 300)

	rec := do(t, router, http.MethodGet, "/api/v1/vehicles/"+v.ID.String()+"/ledger-costs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ledgerBody struct {
		Data struct {
			Total    deal.Money `json:"total"`
			Degraded bool       `json:"degraded"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ledgerBody))
	require.True(t, ledgerBody.Data.Total.Equal(deal.NewMoney(1000)))
	require.False(t, ledgerBody.Data.Degraded)

	rec = do(t, router, http.MethodGet, "/api/v1/vehicles", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), v.ID.String())

	rec = do(t, router, http.MethodGet, "/api/v1/sales-reps", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Thabo")
}

func TestHandlerWithoutService(t *testing.T) {
	h := NewHandler(HandlerConfig{})
	rec := httptest.NewRecorder()
	h.ListSalesReps(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sales-reps", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
