package deal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Edit is a single field change applied by Builder.Apply.
type Edit func(*Builder) error

// AmountField names an editable monetary input.
type AmountField string

const (
	FieldSellingPrice               AmountField = "sellingPrice"
	FieldDiscountAmount             AmountField = "discountAmount"
	FieldExternalAdminFee           AmountField = "externalAdminFee"
	FieldBankInitiationFee          AmountField = "bankInitiationFee"
	FieldClientDeposit              AmountField = "clientDeposit"
	FieldDealerDepositContribution  AmountField = "dealerDepositContribution"
	FieldCostPrice                  AmountField = "costPrice"
	FieldAdditionalDealCosts        AmountField = "additionalDealCosts"
	FieldDICAmount                  AmountField = "dicAmount"
	FieldReferralIncomeAmount       AmountField = "referralIncomeAmount"
	FieldReferralCommissionAmount   AmountField = "referralCommissionAmount"
	FieldPartnerSplitValue          AmountField = "partnerSplitValue"
	FieldPartnerCapitalContribution AmountField = "partnerCapitalContribution"
	FieldSalesRepCommissionPercent  AmountField = "salesRepCommissionPercent"
)

// ErrUnknownField is returned for an amount field that cannot be edited.
// Vehicle ledger costs are read-only and only change through ApplyLedger.
type ErrUnknownField struct {
	Field string
}

func (e ErrUnknownField) Error() string {
	return fmt.Sprintf("deal: unknown field %q", e.Field)
}

// SetAmount sets a monetary input. Percentage split values are clamped.
func SetAmount(field AmountField, value Money) Edit {
	return func(b *Builder) error {
		in := &b.inputs
		switch field {
		case FieldSellingPrice:
			in.SellingPrice = value
		case FieldDiscountAmount:
			in.DiscountAmount = value
		case FieldExternalAdminFee:
			in.ExternalAdminFee = value
		case FieldBankInitiationFee:
			in.BankInitiationFee = value
		case FieldClientDeposit:
			in.ClientDeposit = value
		case FieldDealerDepositContribution:
			in.DealerDepositContribution = value
		case FieldCostPrice:
			in.CostPrice = value
		case FieldAdditionalDealCosts:
			in.AdditionalDealCosts = floorZero(value)
		case FieldDICAmount:
			in.DICAmount = value
		case FieldReferralIncomeAmount:
			in.ReferralIncomeAmount = value
		case FieldReferralCommissionAmount:
			in.ReferralCommissionAmount = value
		case FieldPartnerSplitValue:
			in.PartnerSplitValue = ClampSplitValue(in.PartnerSplitType, value)
		case FieldPartnerCapitalContribution:
			in.PartnerCapitalContribution = value
		case FieldSalesRepCommissionPercent:
			in.SalesRepCommissionPercent = value
		default:
			return ErrUnknownField{Field: string(field)}
		}
		return nil
	}
}

// SetSharedCapital toggles the shared-capital partnership.
func SetSharedCapital(shared bool) Edit {
	return func(b *Builder) error {
		b.inputs.IsSharedCapital = shared
		return nil
	}
}

// SetSplitType switches between percentage and fixed partner splits. The
// current value is re-clamped when switching to percentage.
func SetSplitType(kind SplitType) Edit {
	return func(b *Builder) error {
		kind = ParseSplitType(string(kind))
		b.inputs.PartnerSplitType = kind
		b.inputs.PartnerSplitValue = ClampSplitValue(kind, b.inputs.PartnerSplitValue)
		return nil
	}
}

// SetReferralPerson names the person the referral commission is paid to.
func SetReferralPerson(name string) Edit {
	return func(b *Builder) error {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			b.inputs.ReferralPersonName = nil
			return nil
		}
		b.inputs.ReferralPersonName = &trimmed
		return nil
	}
}

// SelectVehicle switches the deal to another vehicle, reseeding price, cost
// and mileage. Ledger costs reset until a fetch for the new vehicle lands.
func SelectVehicle(v Vehicle) Edit {
	return func(b *Builder) error {
		if v.ID == b.vehicleID {
			return nil
		}
		b.seedVehicle(v)
		return nil
	}
}

// SelectSalesRep assigns the sales rep and copies their configured commission
// rate into the editable percentage.
func SelectSalesRep(rep SalesRep) Edit {
	return func(b *Builder) error {
		b.salesRepID = rep.ID
		b.inputs.SalesRepCommissionPercent = rep.CommissionPercent
		return nil
	}
}

// SetClient sets the buyer name.
func SetClient(name string) Edit {
	return func(b *Builder) error {
		b.clientName = strings.TrimSpace(name)
		return nil
	}
}

// SetDelivery sets the delivery address and date. A nil date clears it.
func SetDelivery(address string, date *time.Time) Edit {
	return func(b *Builder) error {
		b.deliveryAddress = strings.TrimSpace(address)
		if date == nil {
			b.deliveryDate = nil
			return nil
		}
		d := *date
		b.deliveryDate = &d
		return nil
	}
}

// AddAddon appends an add-on row with a fresh identity.
func AddAddon(name string, cost, price Money) Edit {
	return func(b *Builder) error {
		b.inputs.Addons = append(b.inputs.Addons, Addon{
			ID:    uuid.New(),
			Name:  strings.TrimSpace(name),
			Cost:  cost,
			Price: price,
		})
		return nil
	}
}

// UpdateAddon replaces the fields of the add-on row with the given identity.
func UpdateAddon(id uuid.UUID, name string, cost, price Money) Edit {
	return func(b *Builder) error {
		for i := range b.inputs.Addons {
			if b.inputs.Addons[i].ID == id {
				b.inputs.Addons[i].Name = strings.TrimSpace(name)
				b.inputs.Addons[i].Cost = cost
				b.inputs.Addons[i].Price = price
				return nil
			}
		}
		return ErrUnknownAddon
	}
}

// RemoveAddon drops the add-on row with the given identity.
func RemoveAddon(id uuid.UUID) Edit {
	return func(b *Builder) error {
		for i := range b.inputs.Addons {
			if b.inputs.Addons[i].ID == id {
				b.inputs.Addons = append(b.inputs.Addons[:i], b.inputs.Addons[i+1:]...)
				return nil
			}
		}
		return ErrUnknownAddon
	}
}

// SetExpenses replaces the aftersales expense list.
func SetExpenses(expenses []Expense) Edit {
	return func(b *Builder) error {
		b.inputs.AftersalesExpenses = append([]Expense(nil), expenses...)
		return nil
	}
}
