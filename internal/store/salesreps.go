package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lumina-dealer/internal/deal"
)

// GetSalesRep loads one sales rep.
func (s *Store) GetSalesRep(ctx context.Context, id uuid.UUID) (deal.SalesRep, error) {
	rep, err := scanSalesRep(s.db.QueryRow(ctx, `SELECT id, name, commission_percent::text FROM sales_reps WHERE id = $1`, id))
	if err != nil {
		return deal.SalesRep{}, fmt.Errorf("get sales rep %s: %w", id, notFound(err))
	}
	return rep, nil
}

// ListSalesReps returns active reps ordered by name.
func (s *Store) ListSalesReps(ctx context.Context) ([]deal.SalesRep, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, commission_percent::text FROM sales_reps WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list sales reps: %w", err)
	}
	defer rows.Close()

	var out []deal.SalesRep
	for rows.Next() {
		rep, err := scanSalesRep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sales rep: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// InsertSalesRep adds a sales rep and returns its id.
func (s *Store) InsertSalesRep(ctx context.Context, rep deal.SalesRep) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `INSERT INTO sales_reps (name, commission_percent) VALUES ($1, $2::numeric) RETURNING id`,
		rep.Name, rep.CommissionPercent.String()).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert sales rep: %w", err)
	}
	return id, nil
}

func scanSalesRep(row pgx.Row) (deal.SalesRep, error) {
	var (
		rep  deal.SalesRep
		rate string
	)
	if err := row.Scan(&rep.ID, &rep.Name, &rate); err != nil {
		return deal.SalesRep{}, err
	}
	var err error
	if rep.CommissionPercent, err = decimal.NewFromString(rate); err != nil {
		return deal.SalesRep{}, fmt.Errorf("decode commission percent: %w", err)
	}
	return rep, nil
}
