package deal

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ValidationError lists the fields that block a submission.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "deal: missing required fields: " + strings.Join(e.Fields, ", ")
}

type submitCheck struct {
	VehicleID       uuid.UUID  `json:"vehicleId" validate:"required"`
	SalesRepID      uuid.UUID  `json:"salesRepId" validate:"required"`
	DeliveryAddress string     `json:"deliveryAddress" validate:"required"`
	DeliveryDate    *time.Time `json:"deliveryDate" validate:"required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func checker() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate reports the fields that must be filled before the deal can be
// submitted. It returns nil when the builder is ready.
func (b *Builder) Validate() error {
	if b.state != StateHydrated {
		return ErrNotHydrated
	}
	err := checker().Struct(submitCheck{
		VehicleID:       b.vehicleID,
		SalesRepID:      b.salesRepID,
		DeliveryAddress: b.deliveryAddress,
		DeliveryDate:    b.deliveryDate,
	})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]string, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, fe.Field())
	}
	return out
}

// Submission validates the builder and returns the flat record handed to
// persistence. Add-on row identities are dropped and amounts are rounded to
// cents.
func (b *Builder) Submission() (Submission, error) {
	if err := b.Validate(); err != nil {
		return Submission{}, err
	}
	in := b.inputs.Normalized()
	sum := Evaluate(in)

	expenses := make([]Expense, 0, len(in.AftersalesExpenses))
	for _, e := range in.AftersalesExpenses {
		expenses = append(expenses, Expense{Description: e.Description, Amount: Cents(e.Amount)})
	}

	return Submission{
		VehicleID:       b.vehicleID,
		SalesRepID:      b.salesRepID,
		ClientName:      b.clientName,
		DeliveryAddress: b.deliveryAddress,
		DeliveryDate:    *b.deliveryDate,
		Mileage:         b.mileage,

		SoldPrice:                 Cents(in.SellingPrice),
		DiscountAmount:            Cents(in.DiscountAmount),
		ExternalAdminFee:          Cents(in.ExternalAdminFee),
		BankInitiationFee:         Cents(in.BankInitiationFee),
		ClientDeposit:             Cents(in.ClientDeposit),
		DealerDepositContribution: Cents(in.DealerDepositContribution),
		CostPrice:                 Cents(in.CostPrice),
		ReconCost:                 Cents(sum.Breakdown.TotalReconCost),
		AdditionalDealCosts:       Cents(in.AdditionalDealCosts),
		DICAmount:                 Cents(in.DICAmount),
		ReferralIncomeAmount:      Cents(in.ReferralIncomeAmount),
		ReferralCommissionAmount:  Cents(in.ReferralCommissionAmount),
		ReferralPersonName:        in.ReferralPersonName,

		AddonsData:         stripAddons(in.Addons),
		AftersalesExpenses: expenses,

		IsSharedCapital:            in.IsSharedCapital,
		PartnerSplitType:           in.PartnerSplitType,
		PartnerSplitValue:          in.PartnerSplitValue,
		PartnerCapitalContribution: Cents(in.PartnerCapitalContribution),
		PartnerProfitAmount:        Cents(sum.PartnerPayout),

		SalesRepCommissionPercent: in.SalesRepCommissionPercent,
		SalesRepCommissionAmount:  Cents(sum.Commission.CommissionAmount),
		GrossProfit:               Cents(sum.LuminaNetProfit),
		GrossDealAmount:           Cents(sum.Breakdown.GrossDeal),
		TotalFinancedAmount:       Cents(sum.Breakdown.TotalFinanceAmount),
	}, nil
}
