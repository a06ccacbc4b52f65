package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lumina-dealer/internal/deal"
)

func TestCurrencyFormat(t *testing.T) {
	c := Currency{Code: "ZAR", Symbol: "R"}
	cases := map[string]string{
		"0":          "R 0.00",
		"1207":       "R 1,207.00",
		"1207.5":     "R 1,207.50",
		"1234567.05": "R 1,234,567.05",
		"-47500":     "-R 47,500.00",
		"0.005":      "R 0.01",
	}
	for in, want := range cases {
		m, err := deal.ParseMoney(in)
		require.NoError(t, err)
		require.Equal(t, want, c.Format(m), in)
	}
	require.Equal(t, "12.00", Currency{}.Format(deal.NewMoney(12)))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)
	f, err = ParseFormat("MD")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, f)
	_, err = ParseFormat("pdf")
	require.Error(t, err)
	require.Equal(t, "text/html; charset=utf-8", FormatHTML.ContentType())
}

func sampleSettlement() deal.Settlement {
	return deal.ComputeSettlement(deal.Record{Submission: deal.Submission{
		SoldPrice:                  deal.NewMoney(500000),
		DiscountAmount:             deal.NewMoney(10000),
		CostPrice:                  deal.NewMoney(400000),
		ReconCost:                  deal.NewMoney(5000),
		DealerDepositContribution:  deal.NewMoney(2000),
		DICAmount:                  deal.NewMoney(3000),
		IsSharedCapital:            true,
		PartnerSplitType:           deal.SplitPercentage,
		PartnerSplitValue:          deal.NewMoney(50),
		PartnerCapitalContribution: deal.NewMoney(200000),
		AddonsData:                 []deal.AddonData{{Name: "Tint", Cost: deal.NewMoney(1000), Price: deal.NewMoney(4000)}},
	}})
}

func TestSettlementMarkdown(t *testing.T) {
	r := NewRenderer(Currency{Symbol: "R"})
	doc := SettlementDocument("2021 Toyota Hilux", sampleSettlement())
	md := r.Markdown(doc)

	require.True(t, strings.HasPrefix(md, "# 2021 Toyota Hilux\n"))
	require.Contains(t, md, "| **Partner payout total** | **R 238,500.00** |")
	require.Contains(t, md, "| **Dealership keeps** | **R 51,500.00** |")
	require.Contains(t, md, "| VAP profit | R 3,000.00 |")
	require.Contains(t, md, "> Partner split 50% of distributable profit.")
}

func TestSettlementHTML(t *testing.T) {
	r := NewRenderer(Currency{Symbol: "R"})
	out, err := r.Render(SettlementDocument("Deal <1>", sampleSettlement()), FormatHTML)
	require.NoError(t, err)
	html := string(out)
	require.Contains(t, html, "<table>")
	require.Contains(t, html, "<strong>R 238,500.00</strong>")
	require.NotContains(t, html, "<1>")
}

func TestSettlementJSON(t *testing.T) {
	r := NewRenderer(Currency{})
	out, err := r.Render(SettlementDocument("x", sampleSettlement()), FormatJSON)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(out, &doc))
	require.Len(t, doc.Sections, 5)
	last := doc.Sections[4].Lines
	require.True(t, last[len(last)-1].Amount.Equal(deal.NewMoney(51500)))
}

func TestSettlementNotSharedNote(t *testing.T) {
	s := sampleSettlement()
	s.IsSharedCapital = false
	doc := SettlementDocument("x", s)
	require.Len(t, doc.Notes, 1)
	require.Contains(t, doc.Notes[0], "Not a shared-capital deal")
}

func TestBreakdownDocument(t *testing.T) {
	in := deal.Inputs{
		SellingPrice:       deal.NewMoney(500000),
		ExternalAdminFee:   deal.NewMoney(7000),
		BankInitiationFee:  deal.NewMoney(1207),
		CostPrice:          deal.NewMoney(400000),
		VehicleLedgerCosts: deal.NewMoney(5000),
	}
	doc := BreakdownDocument("x", in, deal.Evaluate(in))
	md := NewRenderer(Currency{Symbol: "R"}).Markdown(doc)
	require.Contains(t, md, "| **Gross deal** | **R 508,207.00** |")
	require.Contains(t, md, "| **Gross profit** | **R 95,000.00** |")
}
