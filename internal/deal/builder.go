package deal

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAlreadyHydrated is returned when a builder is started or hydrated twice
	// within one open cycle.
	ErrAlreadyHydrated = errors.New("deal: builder already initialised")
	// ErrNotHydrated is returned when edits arrive before the builder holds a deal.
	ErrNotHydrated = errors.New("deal: builder not initialised")
	// ErrUnknownAddon indicates an edit addressed an add-on row that does not exist.
	ErrUnknownAddon = errors.New("deal: unknown add-on")
)

// State is the builder lifecycle state.
type State int

const (
	// StateUninitialized holds no deal.
	StateUninitialized State = iota
	// StateHydrated holds an editable deal.
	StateHydrated
)

func (s State) String() string {
	switch s {
	case StateHydrated:
		return "hydrated"
	default:
		return "uninitialized"
	}
}

// Vehicle is the stock unit a deal is written against.
type Vehicle struct {
	ID        uuid.UUID `json:"id"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	Year      int       `json:"year"`
	Price     Money     `json:"price"`
	Mileage   int       `json:"mileage"`
	CostPrice Money     `json:"costPrice"`
}

// Title renders "2021 Toyota Hilux".
func (v Vehicle) Title() string {
	parts := make([]string, 0, 3)
	if v.Year > 0 {
		parts = append(parts, strconv.Itoa(v.Year))
	}
	if m := strings.TrimSpace(v.Make); m != "" {
		parts = append(parts, m)
	}
	if m := strings.TrimSpace(v.Model); m != "" {
		parts = append(parts, m)
	}
	return strings.Join(parts, " ")
}

// SalesRep is a sales agent with a configured commission rate.
type SalesRep struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	CommissionPercent Money     `json:"commissionPercent"`
}

// LedgerEntry is one expense row from the vehicle ledger.
type LedgerEntry struct {
	Amount      Money  `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Builder holds one deal being finalized or edited. Hydration happens once per
// open cycle; Close resets the latch.
type Builder struct {
	state  State
	dealID *uuid.UUID

	vehicleID  uuid.UUID
	mileage    int
	salesRepID uuid.UUID

	clientName      string
	deliveryAddress string
	deliveryDate    *time.Time

	inputs Inputs
	ledger []LedgerEntry
}

// NewBuilder returns an uninitialised builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Start opens a fresh deal seeded from the vehicle's price, mileage and cost.
func (b *Builder) Start(v Vehicle) error {
	if b.state != StateUninitialized {
		return ErrAlreadyHydrated
	}
	b.inputs = Inputs{PartnerSplitType: SplitPercentage}
	b.seedVehicle(v)
	b.state = StateHydrated
	return nil
}

// Hydrate loads a persisted deal for editing. It succeeds once per open cycle
// and later calls never overwrite user edits.
func (b *Builder) Hydrate(rec Record) error {
	if b.state != StateUninitialized {
		return ErrAlreadyHydrated
	}
	id := rec.ID
	b.dealID = &id
	b.vehicleID = rec.VehicleID
	b.mileage = rec.Mileage
	b.salesRepID = rec.SalesRepID
	b.clientName = rec.ClientName
	b.deliveryAddress = rec.DeliveryAddress
	if !rec.DeliveryDate.IsZero() {
		d := rec.DeliveryDate
		b.deliveryDate = &d
	}
	b.inputs = InputsFromRecord(rec)
	b.ledger = nil
	b.state = StateHydrated
	return nil
}

// Clone returns an independent copy, so a batch of edits can be tried and
// discarded as a whole.
func (b *Builder) Clone() *Builder {
	out := *b
	if b.dealID != nil {
		id := *b.dealID
		out.dealID = &id
	}
	if b.deliveryDate != nil {
		d := *b.deliveryDate
		out.deliveryDate = &d
	}
	out.inputs = b.inputs.clone()
	out.ledger = append([]LedgerEntry(nil), b.ledger...)
	return &out
}

// Close discards all in-progress state.
func (b *Builder) Close() {
	*b = Builder{}
}

// State reports the lifecycle state.
func (b *Builder) State() State { return b.state }

// DealID returns the persisted id when editing an existing deal.
func (b *Builder) DealID() (uuid.UUID, bool) {
	if b.dealID == nil {
		return uuid.Nil, false
	}
	return *b.dealID, true
}

// VehicleID returns the currently selected vehicle.
func (b *Builder) VehicleID() uuid.UUID { return b.vehicleID }

// Header is the non-monetary part of a deal in progress.
type Header struct {
	DealID          *uuid.UUID `json:"dealId,omitempty"`
	VehicleID       uuid.UUID  `json:"vehicleId"`
	Mileage         int        `json:"mileage"`
	SalesRepID      uuid.UUID  `json:"salesRepId"`
	ClientName      string     `json:"clientName"`
	DeliveryAddress string     `json:"deliveryAddress"`
	DeliveryDate    *time.Time `json:"deliveryDate"`
}

// Header returns the current selection and delivery details.
func (b *Builder) Header() Header {
	h := Header{
		VehicleID:       b.vehicleID,
		Mileage:         b.mileage,
		SalesRepID:      b.salesRepID,
		ClientName:      b.clientName,
		DeliveryAddress: b.deliveryAddress,
	}
	if b.dealID != nil {
		id := *b.dealID
		h.DealID = &id
	}
	if b.deliveryDate != nil {
		d := *b.deliveryDate
		h.DeliveryDate = &d
	}
	return h
}

// Inputs returns a copy of the current inputs.
func (b *Builder) Inputs() Inputs { return b.inputs.clone() }

// Ledger returns the ledger rows applied for the selected vehicle.
func (b *Builder) Ledger() []LedgerEntry { return append([]LedgerEntry(nil), b.ledger...) }

// Summary recomputes the full breakdown from the current inputs.
func (b *Builder) Summary() Summary { return Evaluate(b.inputs) }

// Apply runs edits in order. It stops at the first failing edit; earlier edits
// stay applied.
func (b *Builder) Apply(edits ...Edit) error {
	if b.state != StateHydrated {
		return ErrNotHydrated
	}
	for _, e := range edits {
		if e == nil {
			continue
		}
		if err := e(b); err != nil {
			return err
		}
	}
	return nil
}

// ApplyLedger records ledger costs fetched for vehicleID. Results for a vehicle
// that is no longer selected are discarded and false is returned.
func (b *Builder) ApplyLedger(vehicleID uuid.UUID, total Money, entries []LedgerEntry) bool {
	if b.state != StateHydrated || vehicleID != b.vehicleID {
		return false
	}
	b.inputs.VehicleLedgerCosts = floorZero(total)
	b.ledger = append([]LedgerEntry(nil), entries...)
	return true
}

func (b *Builder) seedVehicle(v Vehicle) {
	b.vehicleID = v.ID
	b.mileage = v.Mileage
	b.inputs.SellingPrice = v.Price
	b.inputs.CostPrice = v.CostPrice
	b.inputs.VehicleLedgerCosts = Zero
	b.ledger = nil
}
