// Package ledger loads the expense rows booked against a vehicle and turns
// them into the ledger cost figure used by the deal builder.
package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/noah-isme/lumina-dealer/internal/deal"
)

// Source returns the ledger rows recorded for a vehicle.
type Source interface {
	FetchCosts(ctx context.Context, vehicleID uuid.UUID) ([]deal.LedgerEntry, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, vehicleID uuid.UUID) ([]deal.LedgerEntry, error)

// FetchCosts implements Source.
func (f SourceFunc) FetchCosts(ctx context.Context, vehicleID uuid.UUID) ([]deal.LedgerEntry, error) {
	return f(ctx, vehicleID)
}

// Result is the outcome of one ledger lookup. Degraded is set when the lookup
// failed and the zero default was substituted.
type Result struct {
	VehicleID uuid.UUID          `json:"vehicleId"`
	Total     deal.Money         `json:"total"`
	Entries   []deal.LedgerEntry `json:"entries"`
	Degraded  bool               `json:"degraded"`
}

// Sum adds the entry amounts.
func Sum(entries []deal.LedgerEntry) deal.Money {
	total := deal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
	}
	return total
}
