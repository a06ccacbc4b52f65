package deal

// Settlement is the partner payout breakdown computed from a persisted deal.
//
// It deliberately differs from Breakdown: admin and bank fees and add-on costs
// are not deductions, add-on profit is floored at zero and retained rather
// than shared, and the partner split applies to the distributable profit.
type Settlement struct {
	SoldPrice      Money `json:"soldPrice"`
	DiscountAmount Money `json:"discountAmount"`
	SoldPriceNet   Money `json:"soldPriceNet"`
	VehicleCost    Money `json:"vehicleCost"`
	GrossProfit    Money `json:"grossProfit"`

	ReconCost                 Money `json:"reconCost"`
	DealerDepositContribution Money `json:"dealerDepositContribution"`
	TotalDeductions           Money `json:"totalDeductions"`
	NetProfit                 Money `json:"netProfit"`

	DICRetained   Money `json:"dicRetained"`
	VAPRevenue    Money `json:"vapRevenue"`
	VAPCost       Money `json:"vapCost"`
	VAPProfit     Money `json:"vapProfit"`
	TotalRetained Money `json:"totalRetained"`

	DistributableProfit Money     `json:"distributableProfit"`
	IsSharedCapital     bool      `json:"isSharedCapital"`
	SplitType           SplitType `json:"splitType"`
	SplitValue          Money     `json:"splitValue"`
	PartnerShareAmount  Money     `json:"partnerShareAmount"`
	LuminaShareAmount   Money     `json:"luminaShareAmount"`

	PartnerCapital     Money `json:"partnerCapital"`
	PartnerPayoutTotal Money `json:"partnerPayoutTotal"`
	LuminaKeepsTotal   Money `json:"luminaKeepsTotal"`
}

// ComputeSettlement derives the partner settlement from a stored deal.
// Fixed splits re-read the persisted partner profit amount.
func ComputeSettlement(rec Record) Settlement {
	s := Settlement{
		SoldPrice:                 rec.SoldPrice,
		DiscountAmount:            rec.DiscountAmount,
		VehicleCost:               rec.CostPrice,
		ReconCost:                 rec.ReconCost,
		DealerDepositContribution: rec.DealerDepositContribution,
		DICRetained:               rec.DICAmount,
		IsSharedCapital:           rec.IsSharedCapital,
		SplitType:                 ParseSplitType(string(rec.PartnerSplitType)),
	}
	s.SoldPriceNet = rec.SoldPrice.Sub(rec.DiscountAmount)
	s.GrossProfit = s.SoldPriceNet.Sub(rec.CostPrice)

	s.TotalDeductions = rec.ReconCost.Add(rec.DealerDepositContribution)
	s.NetProfit = s.GrossProfit.Sub(s.TotalDeductions)

	s.VAPRevenue = Zero
	s.VAPCost = Zero
	for _, a := range rec.AddonsData {
		s.VAPRevenue = s.VAPRevenue.Add(a.Price)
		s.VAPCost = s.VAPCost.Add(a.Cost)
	}
	s.VAPProfit = floorZero(s.VAPRevenue.Sub(s.VAPCost))
	s.TotalRetained = s.DICRetained.Add(s.VAPProfit)

	s.DistributableProfit = s.NetProfit.Sub(s.TotalRetained)

	s.PartnerShareAmount = Zero
	s.PartnerCapital = Zero
	if rec.IsSharedCapital {
		s.SplitValue = ClampSplitValue(s.SplitType, rec.PartnerSplitValue)
		s.PartnerCapital = rec.PartnerCapitalContribution
		if s.SplitType == SplitFixed {
			s.PartnerShareAmount = rec.PartnerProfitAmount
		} else {
			s.PartnerShareAmount = Percent(s.DistributableProfit, s.SplitValue)
		}
	}
	s.LuminaShareAmount = s.DistributableProfit.Sub(s.PartnerShareAmount)

	s.PartnerPayoutTotal = s.PartnerCapital.Add(s.PartnerShareAmount)
	s.LuminaKeepsTotal = s.TotalDeductions.Add(s.TotalRetained).Add(s.LuminaShareAmount)
	return s
}
