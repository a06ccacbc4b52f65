package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/lumina-dealer/internal/deal"
)

const dealColumns = `id, vehicle_id, sales_rep_id, client_name, delivery_address, delivery_date, mileage,
	sold_price::text, discount_amount::text, external_admin_fee::text, bank_initiation_fee::text,
	client_deposit::text, dealer_deposit_contribution::text, cost_price::text, recon_cost::text,
	additional_deal_costs::text, dic_amount::text, referral_income_amount::text,
	referral_commission_amount::text, referral_person_name,
	addons_data, aftersales_expenses,
	is_shared_capital, partner_split_type, partner_split_value::text,
	partner_capital_contribution::text, partner_profit_amount::text,
	sales_rep_commission_percent::text, sales_rep_commission_amount::text,
	gross_profit::text, gross_deal_amount::text, total_financed_amount::text,
	created_at, updated_at`

const insertDealSQL = `INSERT INTO deals (
	vehicle_id, sales_rep_id, client_name, delivery_address, delivery_date, mileage,
	sold_price, discount_amount, external_admin_fee, bank_initiation_fee,
	client_deposit, dealer_deposit_contribution, cost_price, recon_cost,
	additional_deal_costs, dic_amount, referral_income_amount,
	referral_commission_amount, referral_person_name,
	addons_data, aftersales_expenses,
	is_shared_capital, partner_split_type, partner_split_value,
	partner_capital_contribution, partner_profit_amount,
	sales_rep_commission_percent, sales_rep_commission_amount,
	gross_profit, gross_deal_amount, total_financed_amount,
	created_by, updated_by
) VALUES (
	$1, $2, $3, $4, $5, $6,
	$7::numeric, $8::numeric, $9::numeric, $10::numeric,
	$11::numeric, $12::numeric, $13::numeric, $14::numeric,
	$15::numeric, $16::numeric, $17::numeric,
	$18::numeric, $19,
	$20::jsonb, $21::jsonb,
	$22, $23, $24::numeric,
	$25::numeric, $26::numeric,
	$27::numeric, $28::numeric,
	$29::numeric, $30::numeric, $31::numeric,
	$32, $32
) RETURNING ` + dealColumns

const updateDealSQL = `UPDATE deals SET
	vehicle_id = $2, sales_rep_id = $3, client_name = $4, delivery_address = $5, delivery_date = $6, mileage = $7,
	sold_price = $8::numeric, discount_amount = $9::numeric, external_admin_fee = $10::numeric,
	bank_initiation_fee = $11::numeric, client_deposit = $12::numeric,
	dealer_deposit_contribution = $13::numeric, cost_price = $14::numeric, recon_cost = $15::numeric,
	additional_deal_costs = $16::numeric, dic_amount = $17::numeric, referral_income_amount = $18::numeric,
	referral_commission_amount = $19::numeric, referral_person_name = $20,
	addons_data = $21::jsonb, aftersales_expenses = $22::jsonb,
	is_shared_capital = $23, partner_split_type = $24, partner_split_value = $25::numeric,
	partner_capital_contribution = $26::numeric, partner_profit_amount = $27::numeric,
	sales_rep_commission_percent = $28::numeric, sales_rep_commission_amount = $29::numeric,
	gross_profit = $30::numeric, gross_deal_amount = $31::numeric, total_financed_amount = $32::numeric,
	updated_by = $33, updated_at = now()
WHERE id = $1
RETURNING ` + dealColumns

// InsertDeal persists a new deal and returns the stored record.
func (s *Store) InsertDeal(ctx context.Context, sub deal.Submission, actor string) (deal.Record, error) {
	args, err := submissionArgs(sub)
	if err != nil {
		return deal.Record{}, err
	}
	args = append(args, nullable(actor))
	rec, err := scanDeal(s.db.QueryRow(ctx, insertDealSQL, args...))
	if err != nil {
		return deal.Record{}, fmt.Errorf("insert deal: %w", err)
	}
	return rec, nil
}

// UpdateDeal overwrites an existing deal.
func (s *Store) UpdateDeal(ctx context.Context, id uuid.UUID, sub deal.Submission, actor string) (deal.Record, error) {
	args, err := submissionArgs(sub)
	if err != nil {
		return deal.Record{}, err
	}
	args = append([]any{id}, args...)
	args = append(args, nullable(actor))
	rec, err := scanDeal(s.db.QueryRow(ctx, updateDealSQL, args...))
	if err != nil {
		return deal.Record{}, fmt.Errorf("update deal %s: %w", id, notFound(err))
	}
	return rec, nil
}

// GetDeal loads one deal.
func (s *Store) GetDeal(ctx context.Context, id uuid.UUID) (deal.Record, error) {
	rec, err := scanDeal(s.db.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id))
	if err != nil {
		return deal.Record{}, fmt.Errorf("get deal %s: %w", id, notFound(err))
	}
	return rec, nil
}

// ListDeals returns deals newest first together with the total count.
func (s *Store) ListDeals(ctx context.Context, limit, offset int) ([]deal.Record, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM deals`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deals: %w", err)
	}
	rows, err := s.db.Query(ctx, `SELECT `+dealColumns+` FROM deals ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	out := make([]deal.Record, 0, limit)
	for rows.Next() {
		rec, err := scanDeal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan deal: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list deals: %w", err)
	}
	return out, total, nil
}

func submissionArgs(sub deal.Submission) ([]any, error) {
	addons := sub.AddonsData
	if addons == nil {
		addons = []deal.AddonData{}
	}
	addonsJSON, err := json.Marshal(addons)
	if err != nil {
		return nil, fmt.Errorf("encode addons: %w", err)
	}
	expenses := sub.AftersalesExpenses
	if expenses == nil {
		expenses = []deal.Expense{}
	}
	expensesJSON, err := json.Marshal(expenses)
	if err != nil {
		return nil, fmt.Errorf("encode aftersales expenses: %w", err)
	}
	return []any{
		sub.VehicleID, sub.SalesRepID, sub.ClientName, sub.DeliveryAddress, sub.DeliveryDate, sub.Mileage,
		sub.SoldPrice.String(), sub.DiscountAmount.String(), sub.ExternalAdminFee.String(), sub.BankInitiationFee.String(),
		sub.ClientDeposit.String(), sub.DealerDepositContribution.String(), sub.CostPrice.String(), sub.ReconCost.String(),
		sub.AdditionalDealCosts.String(), sub.DICAmount.String(), sub.ReferralIncomeAmount.String(),
		sub.ReferralCommissionAmount.String(), sub.ReferralPersonName,
		addonsJSON, expensesJSON,
		sub.IsSharedCapital, string(deal.ParseSplitType(string(sub.PartnerSplitType))), sub.PartnerSplitValue.String(),
		sub.PartnerCapitalContribution.String(), sub.PartnerProfitAmount.String(),
		sub.SalesRepCommissionPercent.String(), sub.SalesRepCommissionAmount.String(),
		sub.GrossProfit.String(), sub.GrossDealAmount.String(), sub.TotalFinancedAmount.String(),
	}, nil
}

func scanDeal(row pgx.Row) (deal.Record, error) {
	var (
		rec          deal.Record
		deliveryDate time.Time
		splitType    string
		addonsJSON   []byte
		expensesJSON []byte
		money        [20]string
	)
	err := row.Scan(
		&rec.ID, &rec.VehicleID, &rec.SalesRepID, &rec.ClientName, &rec.DeliveryAddress, &deliveryDate, &rec.Mileage,
		&money[0], &money[1], &money[2], &money[3],
		&money[4], &money[5], &money[6], &money[7],
		&money[8], &money[9], &money[10],
		&money[11], &rec.ReferralPersonName,
		&addonsJSON, &expensesJSON,
		&rec.IsSharedCapital, &splitType, &money[12],
		&money[13], &money[14],
		&money[15], &money[16],
		&money[17], &money[18], &money[19],
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return deal.Record{}, err
	}
	rec.DeliveryDate = deliveryDate

	targets := []*decimal.Decimal{
		&rec.SoldPrice, &rec.DiscountAmount, &rec.ExternalAdminFee, &rec.BankInitiationFee,
		&rec.ClientDeposit, &rec.DealerDepositContribution, &rec.CostPrice, &rec.ReconCost,
		&rec.AdditionalDealCosts, &rec.DICAmount, &rec.ReferralIncomeAmount,
		&rec.ReferralCommissionAmount,
		&rec.PartnerSplitValue,
		&rec.PartnerCapitalContribution, &rec.PartnerProfitAmount,
		&rec.SalesRepCommissionPercent, &rec.SalesRepCommissionAmount,
		&rec.GrossProfit, &rec.GrossDealAmount, &rec.TotalFinancedAmount,
	}
	for i, dst := range targets {
		v, err := decimal.NewFromString(money[i])
		if err != nil {
			return deal.Record{}, fmt.Errorf("decode money column %d: %w", i, err)
		}
		*dst = v
	}
	rec.PartnerSplitType = deal.ParseSplitType(splitType)

	if len(addonsJSON) > 0 {
		if err := json.Unmarshal(addonsJSON, &rec.AddonsData); err != nil {
			return deal.Record{}, fmt.Errorf("decode addons: %w", err)
		}
	}
	if len(expensesJSON) > 0 {
		if err := json.Unmarshal(expensesJSON, &rec.AftersalesExpenses); err != nil {
			return deal.Record{}, fmt.Errorf("decode aftersales expenses: %w", err)
		}
	}
	return rec, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
