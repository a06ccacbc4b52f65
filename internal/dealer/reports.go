package dealer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/lumina-dealer/internal/cache"
	"github.com/noah-isme/lumina-dealer/internal/deal"
	"github.com/noah-isme/lumina-dealer/internal/obs"
	"github.com/noah-isme/lumina-dealer/internal/report"
)

// SettlementView is the JSON form of a settlement report.
type SettlementView struct {
	DealID     uuid.UUID       `json:"dealId"`
	Title      string          `json:"title"`
	Settlement deal.Settlement `json:"settlement"`
	Document   report.Document `json:"document"`
}

var reportFormats = []report.Format{report.FormatJSON, report.FormatMarkdown, report.FormatHTML}

// Settlement returns the partner settlement report for a deal in format,
// serving from the report cache when a rendered copy exists.
func (s *Service) Settlement(ctx context.Context, id uuid.UUID, format report.Format) ([]byte, error) {
	key := cache.KeySettlementReport(id, string(format))
	data, hit, err := s.reports.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("deal_id", id.String()).Msg("settlement cache read")
	}
	if hit {
		obs.CountSettlementReport(string(format), "cache")
		return data, nil
	}

	rec, err := s.GetDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	rendered, err := s.renderSettlement(ctx, rec, format)
	if err != nil {
		return nil, internalError("REPORT_RENDER_FAILED", "unable to render settlement report", err)
	}
	if err := s.reports.Set(ctx, key, rendered); err != nil {
		s.logger.Warn().Err(err).Str("deal_id", id.String()).Msg("settlement cache write")
	}
	obs.CountSettlementReport(string(format), "render")
	return rendered, nil
}

// PrerenderSettlement renders every report format for a deal and stores them
// in the report cache.
func (s *Service) PrerenderSettlement(ctx context.Context, id uuid.UUID) error {
	rec, err := s.store.GetDeal(ctx, id)
	if err != nil {
		return fmt.Errorf("load deal %s: %w", id, err)
	}
	for _, format := range reportFormats {
		rendered, err := s.renderSettlement(ctx, rec, format)
		if err != nil {
			return err
		}
		if err := s.reports.Set(ctx, cache.KeySettlementReport(id, string(format)), rendered); err != nil {
			return fmt.Errorf("cache %s settlement: %w", format, err)
		}
		obs.CountSettlementReport(string(format), "prerender")
	}
	return nil
}

func (s *Service) renderSettlement(ctx context.Context, rec deal.Record, format report.Format) ([]byte, error) {
	settlement := deal.ComputeSettlement(rec)
	title := s.dealTitle(ctx, rec)
	doc := report.SettlementDocument(title, settlement)
	if format == report.FormatJSON {
		return json.Marshal(SettlementView{DealID: rec.ID, Title: title, Settlement: settlement, Document: doc})
	}
	return s.renderer.Render(doc, format)
}
