package deal

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func m(v int64) Money { return NewMoney(v) }

func requireMoney(t *testing.T, want int64, got Money, field string) {
	t.Helper()
	require.Truef(t, got.Equal(m(want)), "%s: want %d, got %s", field, want, got.String())
}

func baseScenario() Inputs {
	return Inputs{
		SellingPrice:       m(500000),
		ExternalAdminFee:   m(7000),
		BankInitiationFee:  m(1207),
		CostPrice:          m(400000),
		VehicleLedgerCosts: m(5000),
	}
}

func TestComputeBreakdownScenario(t *testing.T) {
	b := ComputeBreakdown(baseScenario())

	requireMoney(t, 508207, b.GrossDeal, "grossDeal")
	requireMoney(t, 508207, b.TotalFinanceAmount, "totalFinanceAmount")
	requireMoney(t, 5000, b.TotalReconCost, "totalReconCost")
	requireMoney(t, 500000, b.GrossIncome, "grossIncome")
	requireMoney(t, 405000, b.TotalCosts, "totalCosts")
	requireMoney(t, 95000, b.GrossProfit, "grossProfit")
}

func TestEvaluateSharedCapitalHalfSplit(t *testing.T) {
	in := baseScenario()
	in.IsSharedCapital = true
	in.PartnerSplitType = SplitPercentage
	in.PartnerSplitValue = m(50)

	sum := Evaluate(in)
	requireMoney(t, 47500, sum.PartnerPayout, "partnerPayout")
	requireMoney(t, 47500, sum.LuminaNetProfit, "luminaNetProfit")
}

func TestEvaluateCommissionIsDisplayOnly(t *testing.T) {
	in := baseScenario()
	in.IsSharedCapital = true
	in.PartnerSplitValue = m(50)
	in.SalesRepCommissionPercent = m(10)

	sum := Evaluate(in)
	requireMoney(t, 4750, sum.Commission.CommissionAmount, "commissionAmount")
	requireMoney(t, 42750, sum.Commission.FinalNetAfterPayouts, "finalNetAfterPayouts")
	requireMoney(t, 47500, sum.LuminaNetProfit, "luminaNetProfit")
}

func TestTotalFinanceAndGrossDealMonotonic(t *testing.T) {
	in := baseScenario()
	in.ClientDeposit = m(20000)
	in.DealerDepositContribution = m(3000)
	in.Addons = []Addon{{ID: uuid.New(), Name: "Tint", Cost: m(800), Price: m(2500)}}
	base := ComputeBreakdown(in)
	require.True(t, base.TotalFinanceAmount.Equal(base.GrossDeal.Sub(base.TotalDeposits)))

	bumps := map[string]func(*Inputs){
		"externalAdminFee":  func(x *Inputs) { x.ExternalAdminFee = x.ExternalAdminFee.Add(m(1)) },
		"bankInitiationFee": func(x *Inputs) { x.BankInitiationFee = x.BankInitiationFee.Add(m(1)) },
		"addonPrice":        func(x *Inputs) { x.Addons[0].Price = x.Addons[0].Price.Add(m(1)) },
	}
	for name, bump := range bumps {
		t.Run(name, func(t *testing.T) {
			next := in.clone()
			bump(&next)
			got := ComputeBreakdown(next)
			require.True(t, got.GrossDeal.GreaterThan(base.GrossDeal))
			require.True(t, got.TotalFinanceAmount.Equal(got.GrossDeal.Sub(got.TotalDeposits)))
		})
	}
}

func TestGrossProfitDependsOnlyOnReconSum(t *testing.T) {
	in := baseScenario()
	in.VehicleLedgerCosts = m(12000)
	in.AdditionalDealCosts = m(3000)
	want := ComputeBreakdown(in).GrossProfit

	for _, delta := range []int64{1, 500, 3000, 12000} {
		shifted := in
		shifted.AdditionalDealCosts = in.AdditionalDealCosts.Add(m(delta))
		shifted.VehicleLedgerCosts = in.VehicleLedgerCosts.Sub(m(delta))
		got := ComputeBreakdown(shifted)
		require.Truef(t, got.GrossProfit.Equal(want), "delta %d: want %s got %s", delta, want, got.GrossProfit)
		requireMoney(t, 15000, got.TotalReconCost, "totalReconCost")
	}
}

func TestNotSharedNeverPaysPartner(t *testing.T) {
	cases := []Inputs{
		baseScenario(),
		{SellingPrice: m(100), CostPrice: m(90000), PartnerSplitType: SplitFixed, PartnerSplitValue: m(5000)},
		{SellingPrice: m(250000), CostPrice: m(1), PartnerSplitValue: m(80)},
	}
	for _, in := range cases {
		in.IsSharedCapital = false
		sum := Evaluate(in)
		require.True(t, sum.PartnerPayout.IsZero())
		require.True(t, sum.LuminaNetProfit.Equal(sum.Breakdown.GrossProfit))
	}
}

func TestHalfSplitHasNoCentDrift(t *testing.T) {
	for _, cents := range []string{"0.01", "0.03", "1234.57", "99999.99"} {
		price, err := ParseMoney(cents)
		require.NoError(t, err)
		in := Inputs{SellingPrice: price, IsSharedCapital: true, PartnerSplitValue: m(50)}
		sum := Evaluate(in)
		require.True(t, sum.PartnerPayout.Add(sum.PartnerPayout).Equal(price), cents)
		require.True(t, sum.LuminaNetProfit.Equal(sum.PartnerPayout), cents)
	}
}

func TestFixedSplitIgnoresProfit(t *testing.T) {
	require.True(t, ResolvePartnerPayout(m(-9000), true, SplitFixed, m(15000)).Equal(m(15000)))
	require.True(t, ResolvePartnerPayout(m(1000000), true, SplitFixed, m(15000)).Equal(m(15000)))
}

func TestNegativeGrossProfitIsValid(t *testing.T) {
	in := Inputs{SellingPrice: m(100000), CostPrice: m(150000), IsSharedCapital: true, PartnerSplitValue: m(40)}
	sum := Evaluate(in)
	requireMoney(t, -50000, sum.Breakdown.GrossProfit, "grossProfit")
	requireMoney(t, -20000, sum.PartnerPayout, "partnerPayout")
	requireMoney(t, -30000, sum.LuminaNetProfit, "luminaNetProfit")
}

func TestAddonProfitMayBeNegative(t *testing.T) {
	in := baseScenario()
	in.Addons = []Addon{{ID: uuid.New(), Cost: m(3000), Price: m(1000)}}
	b := ComputeBreakdown(in)
	requireMoney(t, -2000, b.AddonProfit, "addonProfit")
}

func TestEvaluateClampsPercentageSplit(t *testing.T) {
	in := baseScenario()
	in.IsSharedCapital = true
	in.PartnerSplitValue = m(150)
	requireMoney(t, 95000, Evaluate(in).PartnerPayout, "partnerPayout")

	in.PartnerSplitValue = m(-10)
	require.True(t, Evaluate(in).PartnerPayout.IsZero())

	in.PartnerSplitType = SplitFixed
	in.PartnerSplitValue = m(150000)
	requireMoney(t, 150000, Evaluate(in).PartnerPayout, "partnerPayout")
}
