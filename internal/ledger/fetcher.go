package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/lumina-dealer/internal/deal"
	"github.com/noah-isme/lumina-dealer/internal/obs"
)

// Fetcher resolves ledger costs and degrades to zero when the source fails so
// the calculator stays usable.
type Fetcher struct {
	Source Source
	Logger zerolog.Logger
	now    func() time.Time
}

// Fetch loads the ledger for vehicleID. It never returns an error: failures
// yield a zero total, an empty row list and Degraded set. A cancelled context
// is reported through ok=false so callers can drop the result.
func (f *Fetcher) Fetch(ctx context.Context, vehicleID uuid.UUID) (res Result, ok bool) {
	res = Result{VehicleID: vehicleID, Total: deal.Zero, Entries: []deal.LedgerEntry{}}
	if f == nil || f.Source == nil {
		return res, true
	}
	ctx, span := obs.StartSpan(ctx, "ledger.fetch", attribute.String("vehicle.id", vehicleID.String()))
	defer span.End()

	start := f.clock()
	entries, err := f.Source.FetchCosts(ctx, vehicleID)
	elapsed := obs.DurationMillis(f.clock().Sub(start))
	span.SetAttributes(attribute.Int("ledger.entries", len(entries)), attribute.Bool("ledger.degraded", err != nil))

	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			obs.ObserveLedgerFetch("cancelled", elapsed)
			return res, false
		}
		obs.ObserveLedgerFetch("degraded", elapsed)
		f.Logger.Warn().Err(err).Str("vehicle_id", vehicleID.String()).Msg("ledger fetch failed, using zero costs")
		res.Degraded = true
		return res, true
	}

	obs.ObserveLedgerFetch("ok", elapsed)
	if len(entries) > 0 {
		res.Entries = entries
	}
	res.Total = Sum(entries)
	return res, true
}

func (f *Fetcher) clock() time.Time {
	if f.now != nil {
		return f.now()
	}
	return time.Now()
}
