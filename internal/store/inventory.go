package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lumina-dealer/internal/deal"
)

const vehicleColumns = `id, make, model, year, price::text, mileage, cost_price::text`

// GetVehicle loads one vehicle from inventory.
func (s *Store) GetVehicle(ctx context.Context, id uuid.UUID) (deal.Vehicle, error) {
	v, err := scanVehicle(s.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id))
	if err != nil {
		return deal.Vehicle{}, fmt.Errorf("get vehicle %s: %w", id, notFound(err))
	}
	return v, nil
}

// ListVehicles returns vehicles with the given status, newest first. An empty
// status lists every vehicle.
func (s *Store) ListVehicles(ctx context.Context, status string, limit, offset int) ([]deal.Vehicle, error) {
	rows, err := s.db.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	out := make([]deal.Vehicle, 0, limit)
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FetchCosts returns the expense rows booked against a vehicle, oldest first.
func (s *Store) FetchCosts(ctx context.Context, vehicleID uuid.UUID) ([]deal.LedgerEntry, error) {
	rows, err := s.db.Query(ctx, `SELECT amount::text, category, description
		FROM vehicle_expenses
		WHERE vehicle_id = $1
		ORDER BY created_at, id`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("fetch vehicle expenses: %w", err)
	}
	defer rows.Close()

	entries := make([]deal.LedgerEntry, 0)
	for rows.Next() {
		var (
			amount string
			entry  deal.LedgerEntry
		)
		if err := rows.Scan(&amount, &entry.Category, &entry.Description); err != nil {
			return nil, fmt.Errorf("scan vehicle expense: %w", err)
		}
		if entry.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("decode expense amount: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// InsertVehicle adds a vehicle to inventory and returns its id.
func (s *Store) InsertVehicle(ctx context.Context, v deal.Vehicle) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `INSERT INTO vehicles (make, model, year, price, mileage, cost_price)
		VALUES ($1, $2, $3, $4::numeric, $5, $6::numeric)
		RETURNING id`, v.Make, v.Model, v.Year, v.Price.String(), v.Mileage, v.CostPrice.String()).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert vehicle: %w", err)
	}
	return id, nil
}

// InsertVehicleExpense books a ledger row against a vehicle.
func (s *Store) InsertVehicleExpense(ctx context.Context, vehicleID uuid.UUID, e deal.LedgerEntry) error {
	_, err := s.db.Exec(ctx, `INSERT INTO vehicle_expenses (vehicle_id, amount, category, description)
		VALUES ($1, $2::numeric, $3, $4)`, vehicleID, e.Amount.String(), e.Category, e.Description)
	if err != nil {
		return fmt.Errorf("insert vehicle expense: %w", err)
	}
	return nil
}

func scanVehicle(row pgx.Row) (deal.Vehicle, error) {
	var (
		v           deal.Vehicle
		price, cost string
	)
	if err := row.Scan(&v.ID, &v.Make, &v.Model, &v.Year, &price, &v.Mileage, &cost); err != nil {
		return deal.Vehicle{}, err
	}
	var err error
	if v.Price, err = decimal.NewFromString(price); err != nil {
		return deal.Vehicle{}, fmt.Errorf("decode vehicle price: %w", err)
	}
	if v.CostPrice, err = decimal.NewFromString(cost); err != nil {
		return deal.Vehicle{}, fmt.Errorf("decode vehicle cost price: %w", err)
	}
	return v, nil
}
