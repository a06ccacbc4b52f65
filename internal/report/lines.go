// Package report lays out deal breakdowns and partner settlements as printable
// line items and renders them to markdown or HTML.
package report

import (
	"github.com/noah-isme/lumina-dealer/internal/deal"
)

// Kind controls how a line is emphasised.
type Kind string

const (
	KindItem     Kind = "item"
	KindSubtotal Kind = "subtotal"
	KindTotal    Kind = "total"
)

// Line is one labelled amount.
type Line struct {
	Label  string     `json:"label"`
	Amount deal.Money `json:"amount"`
	Kind   Kind       `json:"kind"`
}

// Section groups lines under a heading.
type Section struct {
	Title string `json:"title"`
	Lines []Line `json:"lines"`
}

// Document is a report ready for rendering.
type Document struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle,omitempty"`
	Notes    []string  `json:"notes,omitempty"`
	Sections []Section `json:"sections"`
}

func item(label string, amount deal.Money) Line { return Line{Label: label, Amount: amount, Kind: KindItem} }
func subtotal(label string, amount deal.Money) Line {
	return Line{Label: label, Amount: amount, Kind: KindSubtotal}
}
func total(label string, amount deal.Money) Line { return Line{Label: label, Amount: amount, Kind: KindTotal} }

// SettlementDocument lays out the partner settlement in calculation order.
func SettlementDocument(title string, s deal.Settlement) Document {
	doc := Document{
		Title:    title,
		Subtitle: "Partner settlement",
		Sections: []Section{
			{Title: "Vehicle profit", Lines: []Line{
				item("Sold price", s.SoldPrice),
				item("Less discount", s.DiscountAmount.Neg()),
				subtotal("Sold price (net)", s.SoldPriceNet),
				item("Less vehicle cost", s.VehicleCost.Neg()),
				subtotal("Gross profit", s.GrossProfit),
			}},
			{Title: "Deductions", Lines: []Line{
				item("Recon cost", s.ReconCost),
				item("Dealer deposit contribution", s.DealerDepositContribution),
				subtotal("Total deductions", s.TotalDeductions),
				subtotal("Net profit", s.NetProfit),
			}},
			{Title: "Retained by dealership", Lines: []Line{
				item("DIC", s.DICRetained),
				item("VAP revenue", s.VAPRevenue),
				item("VAP cost", s.VAPCost.Neg()),
				item("VAP profit", s.VAPProfit),
				subtotal("Total retained", s.TotalRetained),
			}},
			{Title: "Profit split", Lines: []Line{
				subtotal("Distributable profit", s.DistributableProfit),
				item("Partner share", s.PartnerShareAmount),
				item("Dealership share", s.LuminaShareAmount),
			}},
			{Title: "Payout", Lines: []Line{
				item("Partner capital returned", s.PartnerCapital),
				item("Partner profit share", s.PartnerShareAmount),
				total("Partner payout total", s.PartnerPayoutTotal),
				total("Dealership keeps", s.LuminaKeepsTotal),
			}},
		},
	}
	switch {
	case !s.IsSharedCapital:
		doc.Notes = append(doc.Notes, "Not a shared-capital deal. The dealership keeps the full distributable profit.")
	case s.SplitType == deal.SplitFixed:
		doc.Notes = append(doc.Notes, "Fixed partner split as recorded on the deal.")
	default:
		doc.Notes = append(doc.Notes, "Partner split "+Percent(s.SplitValue)+" of distributable profit.")
	}
	return doc
}

// BreakdownDocument lays out the builder view of a deal. in supplies the raw
// figures that the breakdown folds into its totals.
func BreakdownDocument(title string, in deal.Inputs, sum deal.Summary) Document {
	b := sum.Breakdown
	return Document{
		Title:    title,
		Subtitle: "Deal breakdown",
		Sections: []Section{
			{Title: "Invoice", Lines: []Line{
				item("Selling price", in.SellingPrice),
				item("Less discount", in.DiscountAmount.Neg()),
				subtotal("Adjusted selling price", b.AdjustedSellingPrice),
				item("Add-ons", b.TotalAddonPrice),
				item("External admin fee", in.ExternalAdminFee),
				item("Bank initiation fee", in.BankInitiationFee),
				subtotal("Gross deal", b.GrossDeal),
				item("Less deposits", b.TotalDeposits.Neg()),
				total("Total finance amount", b.TotalFinanceAmount),
			}},
			{Title: "Income", Lines: []Line{
				item("Adjusted selling price", b.AdjustedSellingPrice),
				item("Add-on revenue", b.TotalAddonPrice),
				item("DIC", in.DICAmount),
				item("Referral income", in.ReferralIncomeAmount),
				subtotal("Gross income", b.GrossIncome),
			}},
			{Title: "Costs", Lines: []Line{
				item("Vehicle cost", in.CostPrice),
				item("Recon cost", b.TotalReconCost),
				item("Aftersales expenses", b.TotalExpenses),
				item("Dealer deposit contribution", in.DealerDepositContribution),
				item("Add-on cost", b.TotalAddonCost),
				item("Referral commission", in.ReferralCommissionAmount),
				subtotal("Total costs", b.TotalCosts),
				total("Gross profit", b.GrossProfit),
			}},
			{Title: "Payouts", Lines: []Line{
				item("Partner payout", sum.PartnerPayout),
				subtotal("Dealership net profit", sum.LuminaNetProfit),
				item("Sales rep commission", sum.Commission.CommissionAmount),
				total("Final net after payouts", sum.Commission.FinalNetAfterPayouts),
			}},
		},
	}
}
