package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lumina-dealer/internal/deal"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: want %d destinations, got %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		value := reflect.ValueOf(r.values[i])
		if !value.IsValid() {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(value)
	}
	return nil
}

type fakeRows struct {
	rows []fakeRow
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return r.rows[r.idx-1].Scan(dest...)
}

type stubDB struct {
	sql  string
	args []any
	row  fakeRow
	rows *fakeRows
}

func (s *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.sql, s.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (s *stubDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.sql, s.args = sql, args
	return s.rows, nil
}

func (s *stubDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	s.sql, s.args = sql, args
	return s.row
}

func dealRowValues(id uuid.UUID, addons []byte) []any {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	name := "Sipho"
	return []any{
		id, uuid.New(), uuid.New(), "J. Client", "12 Long St", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 42000,
		"500000.00", "10000.00", "7000.00", "1207.00",
		"0.00", "2000.00", "400000.00", "5000.00",
		"0.00", "3000.00", "0.00",
		"0.00", &name,
		addons, []byte(`[]`),
		true, "fixed", "20000.00",
		"200000.00", "25000.00",
		"10.00", "5200.00",
		"52000.00", "508207.00", "506207.00",
		now, now,
	}
}

func TestGetDealScansMoneyColumns(t *testing.T) {
	id := uuid.New()
	db := &stubDB{row: fakeRow{values: dealRowValues(id, []byte(`[{"name":"Tint","cost":"1000","price":"4000"}]`))}}

	rec, err := New(db).GetDeal(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, rec.ID)
	require.Equal(t, deal.SplitFixed, rec.PartnerSplitType)
	require.True(t, rec.SoldPrice.Equal(deal.NewMoney(500000)))
	require.True(t, rec.BankInitiationFee.Equal(deal.NewMoney(1207)))
	require.True(t, rec.PartnerProfitAmount.Equal(deal.NewMoney(25000)))
	require.True(t, rec.TotalFinancedAmount.Equal(deal.NewMoney(506207)))
	require.Equal(t, "Sipho", *rec.ReferralPersonName)
	require.Len(t, rec.AddonsData, 1)
	require.True(t, rec.AddonsData[0].Price.Equal(deal.NewMoney(4000)))
	require.Equal(t, []any{id}, db.args)
}

func TestGetDealNotFound(t *testing.T) {
	db := &stubDB{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := New(db).GetDeal(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsertDealEncodesSubmission(t *testing.T) {
	id := uuid.New()
	db := &stubDB{row: fakeRow{values: dealRowValues(id, []byte(`[]`))}}
	sub := deal.Submission{
		VehicleID:         uuid.New(),
		SalesRepID:        uuid.New(),
		DeliveryAddress:   "12 Long St",
		SoldPrice:         deal.NewMoney(500000),
		PartnerSplitType:  "",
		PartnerSplitValue: deal.NewMoney(50),
	}

	rec, err := New(db).InsertDeal(context.Background(), sub, "user-1")
	require.NoError(t, err)
	require.Equal(t, id, rec.ID)
	require.True(t, strings.HasPrefix(db.sql, "INSERT INTO deals"))
	require.Len(t, db.args, 32)
	require.Equal(t, "500000", db.args[6])
	require.Equal(t, []byte(`[]`), db.args[19])
	require.Equal(t, []byte(`[]`), db.args[20])
	require.Equal(t, string(deal.SplitPercentage), db.args[22])
	actor, ok := db.args[31].(*string)
	require.True(t, ok)
	require.Equal(t, "user-1", *actor)
}

func TestUpdateDealPrependsID(t *testing.T) {
	id := uuid.New()
	db := &stubDB{row: fakeRow{values: dealRowValues(id, nil)}}
	_, err := New(db).UpdateDeal(context.Background(), id, deal.Submission{}, "")
	require.NoError(t, err)
	require.Len(t, db.args, 33)
	require.Equal(t, id, db.args[0])
	require.Nil(t, db.args[32])
}

func TestFetchCostsDecodesEntries(t *testing.T) {
	db := &stubDB{rows: &fakeRows{rows: []fakeRow{
		{values: []any{"3500.00", "recon", "paint"}},
		{values: []any{"1500.50", "tyres", ""}},
	}}}
	entries, err := New(db).FetchCosts(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "recon", entries[0].Category)
	want, err := deal.ParseMoney("1500.5")
	require.NoError(t, err)
	require.True(t, entries[1].Amount.Equal(want))
}

func TestFetchCostsEmptyLedger(t *testing.T) {
	db := &stubDB{rows: &fakeRows{}}
	entries, err := New(db).FetchCosts(context.Background(), uuid.New())
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestInsertAuditLogPassesMetadata(t *testing.T) {
	db := &stubDB{}
	meta, _ := json.Marshal(map[string]string{"dealId": "abc"})
	err := New(db).InsertAuditLog(context.Background(), AuditEntry{ActorKind: "user", Action: "deal.submit", Method: "POST", Path: "/x", Status: 201, Metadata: meta})
	require.NoError(t, err)
	require.Contains(t, db.sql, "INSERT INTO audit_logs")
	require.Equal(t, meta, db.args[12])
}

func TestListAuditLogsBuildsFilter(t *testing.T) {
	db := &stubDB{rows: &fakeRows{}}
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	logs, total, err := New(db).ListAuditLogs(context.Background(), AuditFilter{
		ResourceType: "deal",
		ActorUserID:  "user_1",
		Since:        since,
		Limit:        25,
		Offset:       50,
	})
	require.NoError(t, err)
	require.Empty(t, logs)
	require.Zero(t, total)
	require.Contains(t, db.sql, "WHERE resource_type = $1 AND actor_user_id = $2 AND created_at >= $3")
	require.Contains(t, db.sql, "LIMIT $4 OFFSET $5")
	require.Equal(t, []any{"deal", "user_1", since, 25, 50}, db.args)
}

func TestListAuditLogsWithoutFilter(t *testing.T) {
	db := &stubDB{rows: &fakeRows{}}
	_, _, err := New(db).ListAuditLogs(context.Background(), AuditFilter{})
	require.NoError(t, err)
	require.NotContains(t, db.sql, "WHERE")
	require.Equal(t, []any{50, 0}, db.args)
}

func TestIsForeignKeyViolation(t *testing.T) {
	require.True(t, IsForeignKeyViolation(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: "23503"})))
	require.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, IsForeignKeyViolation(errors.New("boom")))
}
