package deal

import (
	"strings"

	"github.com/google/uuid"
)

// SplitType selects how a shared-capital partner is paid.
type SplitType string

const (
	// SplitPercentage pays the partner a percentage of the deal profit.
	SplitPercentage SplitType = "percentage"
	// SplitFixed pays the partner a fixed amount regardless of profit.
	SplitFixed SplitType = "fixed"
)

// ParseSplitType normalises a split mode, defaulting to percentage.
func ParseSplitType(value string) SplitType {
	if strings.EqualFold(strings.TrimSpace(value), string(SplitFixed)) {
		return SplitFixed
	}
	return SplitPercentage
}

// ClampSplitValue restricts percentage splits to [0,100]. Fixed amounts pass through.
func ClampSplitValue(kind SplitType, value Money) Money {
	if kind != SplitPercentage {
		return value
	}
	if value.IsNegative() {
		return Zero
	}
	if value.GreaterThan(hundred) {
		return hundred
	}
	return value
}

// Addon is a value-added product sold with the vehicle. ID is a synthetic row
// identity assigned at creation and never persisted.
type Addon struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Cost  Money     `json:"cost"`
	Price Money     `json:"price"`
}

// Expense is an aftersales cost booked against the deal.
type Expense struct {
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
}

// Inputs holds the commercial fields of a deal. Absent amounts are zero.
type Inputs struct {
	SellingPrice              Money `json:"sellingPrice"`
	DiscountAmount            Money `json:"discountAmount"`
	ExternalAdminFee          Money `json:"externalAdminFee"`
	BankInitiationFee         Money `json:"bankInitiationFee"`
	ClientDeposit             Money `json:"clientDeposit"`
	DealerDepositContribution Money `json:"dealerDepositContribution"`
	CostPrice                 Money `json:"costPrice"`
	VehicleLedgerCosts        Money `json:"vehicleLedgerCosts"`
	AdditionalDealCosts       Money `json:"additionalDealCosts"`
	DICAmount                 Money `json:"dicAmount"`
	ReferralIncomeAmount      Money `json:"referralIncomeAmount"`
	ReferralCommissionAmount  Money `json:"referralCommissionAmount"`

	ReferralPersonName *string `json:"referralPersonName"`

	Addons             []Addon   `json:"addons"`
	AftersalesExpenses []Expense `json:"aftersalesExpenses"`

	IsSharedCapital            bool      `json:"isSharedCapital"`
	PartnerSplitType           SplitType `json:"partnerSplitType"`
	PartnerSplitValue          Money     `json:"partnerSplitValue"`
	PartnerCapitalContribution Money     `json:"partnerCapitalContribution"`

	SalesRepCommissionPercent Money `json:"salesRepCommissionPercent"`
}

// Normalized returns a copy with the split mode defaulted and the split value
// clamped for percentage mode.
func (in Inputs) Normalized() Inputs {
	out := in.clone()
	out.PartnerSplitType = ParseSplitType(string(in.PartnerSplitType))
	out.PartnerSplitValue = ClampSplitValue(out.PartnerSplitType, in.PartnerSplitValue)
	return out
}

func (in Inputs) clone() Inputs {
	out := in
	if in.Addons != nil {
		out.Addons = append([]Addon(nil), in.Addons...)
	}
	if in.AftersalesExpenses != nil {
		out.AftersalesExpenses = append([]Expense(nil), in.AftersalesExpenses...)
	}
	if in.ReferralPersonName != nil {
		name := *in.ReferralPersonName
		out.ReferralPersonName = &name
	}
	return out
}
