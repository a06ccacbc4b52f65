package dealer

import (
	"context"

	"github.com/google/uuid"

	"github.com/noah-isme/lumina-dealer/internal/common"
	"github.com/noah-isme/lumina-dealer/internal/deal"
	"github.com/noah-isme/lumina-dealer/internal/ledger"
)

// ListVehicles returns vehicles with the given status.
func (s *Service) ListVehicles(ctx context.Context, status string, page, limit int) ([]deal.Vehicle, error) {
	p := common.Pagination{Page: page, PerPage: limit}
	vehicles, err := s.store.ListVehicles(ctx, status, limit, p.Offset())
	if err != nil {
		return nil, err
	}
	if vehicles == nil {
		vehicles = []deal.Vehicle{}
	}
	return vehicles, nil
}

// GetVehicle loads one vehicle.
func (s *Service) GetVehicle(ctx context.Context, id uuid.UUID) (deal.Vehicle, error) {
	v, err := s.store.GetVehicle(ctx, id)
	if err != nil {
		return deal.Vehicle{}, notFoundAs(err, errVehicleNotFound)
	}
	return v, nil
}

// LedgerCosts returns the ledger total and rows for a vehicle. Ledger failures
// degrade to zero; only an unknown vehicle is an error. refresh drops any
// cached rows first.
func (s *Service) LedgerCosts(ctx context.Context, vehicleID uuid.UUID, refresh bool) (ledger.Result, error) {
	if _, err := s.GetVehicle(ctx, vehicleID); err != nil {
		return ledger.Result{}, err
	}
	if refresh && s.ledgerCache != nil {
		if err := s.ledgerCache.Invalidate(ctx, vehicleID); err != nil {
			s.logger.Warn().Err(err).Str("vehicle_id", vehicleID.String()).Msg("ledger cache invalidate")
		}
	}
	res, ok := s.ledger.Fetch(ctx, vehicleID)
	if !ok {
		return ledger.Result{}, ctx.Err()
	}
	return res, nil
}

// ListSalesReps returns active reps with their configured commission rate.
func (s *Service) ListSalesReps(ctx context.Context) ([]deal.SalesRep, error) {
	reps, err := s.store.ListSalesReps(ctx)
	if err != nil {
		return nil, err
	}
	if reps == nil {
		reps = []deal.SalesRep{}
	}
	return reps, nil
}

func (s *Service) getSalesRep(ctx context.Context, id uuid.UUID) (deal.SalesRep, error) {
	rep, err := s.store.GetSalesRep(ctx, id)
	if err != nil {
		return deal.SalesRep{}, notFoundAs(err, errSalesRepNotFound)
	}
	return rep, nil
}
