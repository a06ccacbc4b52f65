package deal

import (
	"time"

	"github.com/google/uuid"
)

// AddonData is the persisted form of an add-on, without its row identity.
type AddonData struct {
	Name  string `json:"name"`
	Cost  Money  `json:"cost"`
	Price Money  `json:"price"`
}

// Submission is the flat record handed to persistence when a deal is finalized.
// GrossProfit is the house profit after the partner payout and before commission.
type Submission struct {
	VehicleID       uuid.UUID `json:"vehicleId"`
	SalesRepID      uuid.UUID `json:"salesRepId"`
	ClientName      string    `json:"clientName"`
	DeliveryAddress string    `json:"deliveryAddress"`
	DeliveryDate    time.Time `json:"deliveryDate"`
	Mileage         int       `json:"mileage"`

	SoldPrice                 Money   `json:"soldPrice"`
	DiscountAmount            Money   `json:"discountAmount"`
	ExternalAdminFee          Money   `json:"externalAdminFee"`
	BankInitiationFee         Money   `json:"bankInitiationFee"`
	ClientDeposit             Money   `json:"clientDeposit"`
	DealerDepositContribution Money   `json:"dealerDepositContribution"`
	CostPrice                 Money   `json:"costPrice"`
	ReconCost                 Money   `json:"reconCost"`
	AdditionalDealCosts       Money   `json:"additionalDealCosts"`
	DICAmount                 Money   `json:"dicAmount"`
	ReferralIncomeAmount      Money   `json:"referralIncomeAmount"`
	ReferralCommissionAmount  Money   `json:"referralCommissionAmount"`
	ReferralPersonName        *string `json:"referralPersonName"`

	AddonsData         []AddonData `json:"addonsData"`
	AftersalesExpenses []Expense   `json:"aftersalesExpenses"`

	IsSharedCapital            bool      `json:"isSharedCapital"`
	PartnerSplitType           SplitType `json:"partnerSplitType"`
	PartnerSplitValue          Money     `json:"partnerSplitValue"`
	PartnerCapitalContribution Money     `json:"partnerCapitalContribution"`
	PartnerProfitAmount        Money     `json:"partnerProfitAmount"`

	SalesRepCommissionPercent Money `json:"salesRepCommissionPercent"`
	SalesRepCommissionAmount  Money `json:"salesRepCommissionAmount"`
	GrossProfit               Money `json:"grossProfit"`
	GrossDealAmount           Money `json:"grossDealAmount"`
	TotalFinancedAmount       Money `json:"totalFinancedAmount"`
}

// Record is a persisted deal.
type Record struct {
	ID uuid.UUID `json:"id"`
	Submission
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// InputsFromRecord rebuilds builder inputs from a persisted deal. The ledger
// share of the recon cost is recovered as reconCost minus additional costs and
// add-ons receive fresh row identities.
func InputsFromRecord(rec Record) Inputs {
	addons := make([]Addon, 0, len(rec.AddonsData))
	for _, a := range rec.AddonsData {
		addons = append(addons, Addon{ID: uuid.New(), Name: a.Name, Cost: a.Cost, Price: a.Price})
	}
	in := Inputs{
		SellingPrice:               rec.SoldPrice,
		DiscountAmount:             rec.DiscountAmount,
		ExternalAdminFee:           rec.ExternalAdminFee,
		BankInitiationFee:          rec.BankInitiationFee,
		ClientDeposit:              rec.ClientDeposit,
		DealerDepositContribution:  rec.DealerDepositContribution,
		CostPrice:                  rec.CostPrice,
		VehicleLedgerCosts:         floorZero(rec.ReconCost.Sub(rec.AdditionalDealCosts)),
		AdditionalDealCosts:        rec.AdditionalDealCosts,
		DICAmount:                  rec.DICAmount,
		ReferralIncomeAmount:       rec.ReferralIncomeAmount,
		ReferralCommissionAmount:   rec.ReferralCommissionAmount,
		ReferralPersonName:         rec.ReferralPersonName,
		Addons:                     addons,
		AftersalesExpenses:         append([]Expense(nil), rec.AftersalesExpenses...),
		IsSharedCapital:            rec.IsSharedCapital,
		PartnerSplitType:           rec.PartnerSplitType,
		PartnerSplitValue:          rec.PartnerSplitValue,
		PartnerCapitalContribution: rec.PartnerCapitalContribution,
		SalesRepCommissionPercent:  rec.SalesRepCommissionPercent,
	}
	return in.Normalized()
}

func stripAddons(addons []Addon) []AddonData {
	out := make([]AddonData, 0, len(addons))
	for _, a := range addons {
		out = append(out, AddonData{Name: a.Name, Cost: Cents(a.Cost), Price: Cents(a.Price)})
	}
	return out
}
