package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lumina-dealer/internal/cache"
	"github.com/noah-isme/lumina-dealer/internal/deal"
)

// CachedSource serves ledger rows from Redis and falls through to Next on a
// miss. Cache errors are logged and never fail the lookup.
type CachedSource struct {
	Next   Source
	Cache  *cache.Cache
	Logger zerolog.Logger
}

// FetchCosts implements Source.
func (s CachedSource) FetchCosts(ctx context.Context, vehicleID uuid.UUID) ([]deal.LedgerEntry, error) {
	key := cache.KeyLedger(vehicleID)
	var cached []deal.LedgerEntry
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Str("vehicle_id", vehicleID.String()).Msg("ledger cache read")
	}
	if hit {
		return cached, nil
	}
	entries, err := s.Next.FetchCosts(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []deal.LedgerEntry{}
	}
	if err := s.Cache.SetJSON(ctx, key, entries); err != nil {
		s.Logger.Warn().Err(err).Str("vehicle_id", vehicleID.String()).Msg("ledger cache write")
	}
	return entries, nil
}

// Invalidate drops the cached rows for a vehicle.
func (s CachedSource) Invalidate(ctx context.Context, vehicleID uuid.UUID) error {
	return s.Cache.Delete(ctx, cache.KeyLedger(vehicleID))
}
