package deal

// Breakdown contains every derived figure of the deal builder calculation.
type Breakdown struct {
	TotalAddonCost       Money `json:"totalAddonCost"`
	TotalAddonPrice      Money `json:"totalAddonPrice"`
	AddonProfit          Money `json:"addonProfit"`
	AdjustedSellingPrice Money `json:"adjustedSellingPrice"`
	GrossDeal            Money `json:"grossDeal"`
	TotalDeposits        Money `json:"totalDeposits"`
	TotalFinanceAmount   Money `json:"totalFinanceAmount"`
	TotalReconCost       Money `json:"totalReconCost"`
	TotalExpenses        Money `json:"totalExpenses"`
	GrossIncome          Money `json:"grossIncome"`
	TotalCosts           Money `json:"totalCosts"`
	GrossProfit          Money `json:"grossProfit"`
}

// ComputeBreakdown derives the deal profit and loss from raw inputs.
//
// Pass-through fees (admin and bank initiation) raise the invoiced gross deal
// but never count as income. Add-on profit may be negative. A negative gross
// profit is a loss-making deal, not an error.
func ComputeBreakdown(in Inputs) Breakdown {
	var b Breakdown

	b.TotalAddonCost = Zero
	b.TotalAddonPrice = Zero
	for _, a := range in.Addons {
		b.TotalAddonCost = b.TotalAddonCost.Add(a.Cost)
		b.TotalAddonPrice = b.TotalAddonPrice.Add(a.Price)
	}
	b.AddonProfit = b.TotalAddonPrice.Sub(b.TotalAddonCost)

	b.AdjustedSellingPrice = in.SellingPrice.Sub(in.DiscountAmount)
	b.GrossDeal = b.AdjustedSellingPrice.
		Add(b.TotalAddonPrice).
		Add(in.ExternalAdminFee).
		Add(in.BankInitiationFee)

	b.TotalDeposits = in.ClientDeposit.Add(in.DealerDepositContribution)
	b.TotalFinanceAmount = b.GrossDeal.Sub(b.TotalDeposits)

	b.TotalReconCost = floorZero(in.VehicleLedgerCosts.Add(in.AdditionalDealCosts))

	b.TotalExpenses = Zero
	for _, e := range in.AftersalesExpenses {
		b.TotalExpenses = b.TotalExpenses.Add(e.Amount)
	}

	b.GrossIncome = b.AdjustedSellingPrice.
		Add(b.TotalAddonPrice).
		Add(in.DICAmount).
		Add(in.ReferralIncomeAmount)

	b.TotalCosts = in.CostPrice.
		Add(b.TotalReconCost).
		Add(b.TotalExpenses).
		Add(in.DealerDepositContribution).
		Add(b.TotalAddonCost).
		Add(in.ReferralCommissionAmount)

	b.GrossProfit = b.GrossIncome.Sub(b.TotalCosts)
	return b
}

// ResolvePartnerPayout returns the shared-capital partner's cut of the deal.
// A fixed split is paid verbatim and does not depend on profit. The percentage
// is expected to be clamped already.
func ResolvePartnerPayout(grossProfit Money, shared bool, kind SplitType, value Money) Money {
	if !shared {
		return Zero
	}
	if kind == SplitFixed {
		return value
	}
	return Percent(grossProfit, value)
}

// Commission is the sales commission and the residual house figure.
type Commission struct {
	CommissionAmount     Money `json:"commissionAmount"`
	FinalNetAfterPayouts Money `json:"finalNetAfterPayouts"`
}

// ResolveCommission applies the sales rep rate to the house net profit.
// FinalNetAfterPayouts is for display and is never persisted.
func ResolveCommission(netProfit, percent Money) Commission {
	amount := Percent(netProfit, percent)
	return Commission{
		CommissionAmount:     amount,
		FinalNetAfterPayouts: netProfit.Sub(amount),
	}
}

// Summary groups the builder breakdown with the payout resolution.
type Summary struct {
	Breakdown       Breakdown  `json:"breakdown"`
	PartnerPayout   Money      `json:"partnerPayout"`
	LuminaNetProfit Money      `json:"luminaNetProfit"`
	Commission      Commission `json:"commission"`
}

// Evaluate runs the full builder pipeline: breakdown, partner split, commission.
// LuminaNetProfit is the pre-commission figure persisted as the deal profit.
func Evaluate(in Inputs) Summary {
	in = in.Normalized()
	b := ComputeBreakdown(in)
	payout := ResolvePartnerPayout(b.GrossProfit, in.IsSharedCapital, in.PartnerSplitType, in.PartnerSplitValue)
	net := b.GrossProfit.Sub(payout)
	return Summary{
		Breakdown:       b,
		PartnerPayout:   payout,
		LuminaNetProfit: net,
		Commission:      ResolveCommission(net, in.SalesRepCommissionPercent),
	}
}
