package dealer

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/lumina-dealer/internal/cache"
	"github.com/noah-isme/lumina-dealer/internal/common"
	"github.com/noah-isme/lumina-dealer/internal/deal"
	"github.com/noah-isme/lumina-dealer/internal/lock"
	"github.com/noah-isme/lumina-dealer/internal/obs"
	"github.com/noah-isme/lumina-dealer/internal/report"
	"github.com/noah-isme/lumina-dealer/internal/store"
)

// Preview evaluates raw inputs without touching storage.
func (s *Service) Preview(in deal.Inputs) deal.Summary {
	return deal.Evaluate(in)
}

// GetDeal loads a persisted deal.
func (s *Service) GetDeal(ctx context.Context, id uuid.UUID) (deal.Record, error) {
	rec, err := s.store.GetDeal(ctx, id)
	if err != nil {
		return deal.Record{}, notFoundAs(err, errDealNotFound)
	}
	return rec, nil
}

// DealPage is one page of persisted deals.
type DealPage struct {
	Items []deal.Record
	Total int
	Page  int
	Limit int
}

// ListDeals returns persisted deals newest first.
func (s *Service) ListDeals(ctx context.Context, page, limit int) (DealPage, error) {
	p := common.Pagination{Page: page, PerPage: limit}
	items, total, err := s.store.ListDeals(ctx, limit, p.Offset())
	if err != nil {
		return DealPage{}, err
	}
	return DealPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// BreakdownView is the builder breakdown re-derived from a stored deal.
type BreakdownView struct {
	DealID  uuid.UUID    `json:"dealId"`
	Inputs  deal.Inputs  `json:"inputs"`
	Summary deal.Summary `json:"summary"`
}

// Breakdown recomputes the builder figures for a persisted deal.
func (s *Service) Breakdown(ctx context.Context, id uuid.UUID) (BreakdownView, error) {
	_, view, err := s.breakdown(ctx, id)
	return view, err
}

// RenderBreakdown renders the breakdown of a persisted deal in format.
func (s *Service) RenderBreakdown(ctx context.Context, id uuid.UUID, format report.Format) ([]byte, error) {
	rec, view, err := s.breakdown(ctx, id)
	if err != nil {
		return nil, err
	}
	doc := report.BreakdownDocument(s.dealTitle(ctx, rec), view.Inputs, view.Summary)
	return s.renderer.Render(doc, format)
}

func (s *Service) breakdown(ctx context.Context, id uuid.UUID) (deal.Record, BreakdownView, error) {
	rec, err := s.GetDeal(ctx, id)
	if err != nil {
		return deal.Record{}, BreakdownView{}, err
	}
	in := deal.InputsFromRecord(rec)
	return rec, BreakdownView{DealID: rec.ID, Inputs: in, Summary: deal.Evaluate(in)}, nil
}

// save persists sub as a new deal or over dealID. Updates hold the per-deal
// lock so concurrent saves of one deal are serialised.
func (s *Service) save(ctx context.Context, dealID *uuid.UUID, sub deal.Submission, actor string) (deal.Record, error) {
	var (
		rec deal.Record
		err error
		op  = "insert"
	)
	if dealID == nil {
		rec, err = s.store.InsertDeal(ctx, sub, actor)
	} else {
		op = "update"
		id := *dealID
		write := func(ctx context.Context) error {
			var werr error
			rec, werr = s.store.UpdateDeal(ctx, id, sub, actor)
			return werr
		}
		if s.locker != nil {
			err = s.locker.WithLock(ctx, lock.DealKey(id), s.lockTTL, write)
		} else {
			err = write(ctx)
		}
	}
	if err != nil {
		obs.CountDealSubmission(op, "error")
		switch {
		case errors.Is(err, store.ErrNotFound):
			return deal.Record{}, errDealNotFound
		case errors.Is(err, lock.ErrBusy):
			return deal.Record{}, errDealBusy
		case store.IsForeignKeyViolation(err):
			return deal.Record{}, common.NewAppError("REFERENCE_INVALID", "vehicle or sales rep no longer exists", http.StatusUnprocessableEntity, err)
		}
		s.logger.Error().Err(err).Str("op", op).Msg("persist deal")
		return deal.Record{}, internalError("DEAL_SAVE_FAILED", "unable to save deal", err)
	}
	obs.CountDealSubmission(op, "ok")
	s.afterSave(ctx, rec.ID)
	return rec, nil
}

// afterSave drops stale reports and schedules a fresh render. Failures are
// logged only; the deal is already stored.
func (s *Service) afterSave(ctx context.Context, id uuid.UUID) {
	keys := cache.SettlementReportKeys(id, string(report.FormatJSON), string(report.FormatMarkdown), string(report.FormatHTML))
	if err := s.reports.Delete(ctx, keys...); err != nil {
		s.logger.Warn().Err(err).Str("deal_id", id.String()).Msg("drop cached settlement reports")
	}
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueSettlementReport(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("deal_id", id.String()).Msg("enqueue settlement report")
	}
}

func (s *Service) dealTitle(ctx context.Context, rec deal.Record) string {
	if rec.VehicleID != uuid.Nil {
		if v, err := s.store.GetVehicle(ctx, rec.VehicleID); err == nil {
			if title := v.Title(); title != "" {
				return title
			}
		}
	}
	return "Deal " + rec.ID.String()
}
