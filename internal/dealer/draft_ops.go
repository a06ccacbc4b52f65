package dealer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/lumina-dealer/internal/common"
	"github.com/noah-isme/lumina-dealer/internal/deal"
	"github.com/noah-isme/lumina-dealer/internal/obs"
)

// OpenDraftRequest starts a draft for a vehicle or reopens a saved deal.
type OpenDraftRequest struct {
	VehicleID *uuid.UUID `json:"vehicleId"`
	DealID    *uuid.UUID `json:"dealId"`
}

// LedgerView reports the ledger rows applied to a draft.
type LedgerView struct {
	Status  string             `json:"status"`
	Total   deal.Money         `json:"total"`
	Entries []deal.LedgerEntry `json:"entries"`
}

// DraftView is the API representation of an open draft.
type DraftView struct {
	ID            uuid.UUID    `json:"id"`
	State         string       `json:"state"`
	Header        deal.Header  `json:"header"`
	Inputs        deal.Inputs  `json:"inputs"`
	Summary       deal.Summary `json:"summary"`
	Ledger        LedgerView   `json:"ledger"`
	MissingFields []string     `json:"missingFields"`
	ExpiresAt     time.Time    `json:"expiresAt"`
}

// view snapshots the draft. Callers hold d.mu.
func (s *Service) view(d *Draft) DraftView {
	b := d.builder
	in := b.Inputs()
	entries := b.Ledger()
	if entries == nil {
		entries = []deal.LedgerEntry{}
	}
	missing := []string{}
	var verr *deal.ValidationError
	if err := b.Validate(); errors.As(err, &verr) {
		missing = verr.Fields
	}
	return DraftView{
		ID:            d.ID,
		State:         b.State().String(),
		Header:        b.Header(),
		Inputs:        in,
		Summary:       b.Summary(),
		Ledger:        LedgerView{Status: d.ledgerState, Total: in.VehicleLedgerCosts, Entries: entries},
		MissingFields: missing,
		ExpiresAt:     d.seen.Add(s.drafts.TTL()),
	}
}

// OpenDraft starts a builder session. A vehicle id seeds a fresh deal; a deal
// id hydrates the saved deal for editing. The ledger fetch for the selected
// vehicle starts immediately.
func (s *Service) OpenDraft(ctx context.Context, owner string, req OpenDraftRequest) (DraftView, error) {
	if (req.VehicleID == nil) == (req.DealID == nil) {
		return DraftView{}, common.NewAppError("BAD_REQUEST", "exactly one of vehicleId or dealId is required", http.StatusBadRequest, nil)
	}
	b := deal.NewBuilder()
	if req.DealID != nil {
		rec, err := s.GetDeal(ctx, *req.DealID)
		if err != nil {
			return DraftView{}, err
		}
		if err := b.Hydrate(rec); err != nil {
			return DraftView{}, err
		}
	} else {
		v, err := s.GetVehicle(ctx, *req.VehicleID)
		if err != nil {
			return DraftView{}, err
		}
		if err := b.Start(v); err != nil {
			return DraftView{}, err
		}
	}

	d := newDraft(owner, b, s.ledger, s.drafts.now())
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetchLedger(ctx)
	s.drafts.put(d)
	return s.view(d), nil
}

// GetDraft returns the current state of a draft.
func (s *Service) GetDraft(owner string, id uuid.UUID) (DraftView, error) {
	d, ok := s.drafts.get(id, owner)
	if !ok {
		return DraftView{}, errDraftNotFound
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return s.view(d), nil
}

// EditOp is one change in a draft edit batch.
//
// Supported ops: set (field + value), selectVehicle (id), selectSalesRep (id),
// setDelivery (address, date), addAddon (name, cost, price), updateAddon (id,
// name, cost, price), removeAddon (id), setExpenses (expenses) and
// refreshLedger.
type EditOp struct {
	Op       string          `json:"op"`
	Field    string          `json:"field,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
	ID       uuid.UUID       `json:"id,omitempty"`
	Name     string          `json:"name,omitempty"`
	Cost     deal.Money      `json:"cost"`
	Price    deal.Money      `json:"price"`
	Address  string          `json:"address,omitempty"`
	Date     string          `json:"date,omitempty"`
	Expenses []deal.Expense  `json:"expenses,omitempty"`
}

const deliveryDateLayout = "2006-01-02"

func invalidEdit(index int, op EditOp, reason string) error {
	return common.NewAppError("INVALID_EDIT", reason, http.StatusBadRequest, nil).
		WithDetails(map[string]any{"index": index, "op": op.Op, "field": op.Field})
}

// resolveEdits turns the request ops into builder edits, looking up vehicles
// and sales reps as needed.
func (s *Service) resolveEdits(ctx context.Context, ops []EditOp) ([]deal.Edit, bool, error) {
	edits := make([]deal.Edit, 0, len(ops))
	refresh := false
	for i, op := range ops {
		switch strings.TrimSpace(op.Op) {
		case "set":
			e, err := setEdit(op)
			if err != nil {
				return nil, false, invalidEdit(i, op, err.Error())
			}
			edits = append(edits, e)
		case "selectVehicle":
			v, err := s.GetVehicle(ctx, op.ID)
			if err != nil {
				return nil, false, err
			}
			edits = append(edits, deal.SelectVehicle(v))
		case "selectSalesRep":
			rep, err := s.getSalesRep(ctx, op.ID)
			if err != nil {
				return nil, false, err
			}
			edits = append(edits, deal.SelectSalesRep(rep))
		case "setDelivery":
			var date *time.Time
			if strings.TrimSpace(op.Date) != "" {
				parsed, err := time.Parse(deliveryDateLayout, strings.TrimSpace(op.Date))
				if err != nil {
					return nil, false, invalidEdit(i, op, "date must be YYYY-MM-DD")
				}
				date = &parsed
			}
			edits = append(edits, deal.SetDelivery(op.Address, date))
		case "addAddon":
			edits = append(edits, deal.AddAddon(op.Name, op.Cost, op.Price))
		case "updateAddon":
			edits = append(edits, deal.UpdateAddon(op.ID, op.Name, op.Cost, op.Price))
		case "removeAddon":
			edits = append(edits, deal.RemoveAddon(op.ID))
		case "setExpenses":
			edits = append(edits, deal.SetExpenses(op.Expenses))
		case "refreshLedger":
			refresh = true
		default:
			return nil, false, invalidEdit(i, op, "unknown op")
		}
	}
	return edits, refresh, nil
}

func setEdit(op EditOp) (deal.Edit, error) {
	if len(op.Value) == 0 {
		return nil, errors.New("value is required")
	}
	switch op.Field {
	case "isSharedCapital":
		var v bool
		if err := json.Unmarshal(op.Value, &v); err != nil {
			return nil, errors.New("value must be a boolean")
		}
		return deal.SetSharedCapital(v), nil
	case "partnerSplitType":
		var v string
		if err := json.Unmarshal(op.Value, &v); err != nil {
			return nil, errors.New("value must be a string")
		}
		switch deal.SplitType(strings.ToLower(strings.TrimSpace(v))) {
		case deal.SplitPercentage, deal.SplitFixed:
		default:
			return nil, fmt.Errorf("unsupported split type %q", v)
		}
		return deal.SetSplitType(deal.ParseSplitType(v)), nil
	case "referralPersonName", "clientName":
		var v string
		if err := json.Unmarshal(op.Value, &v); err != nil {
			return nil, errors.New("value must be a string")
		}
		if op.Field == "clientName" {
			return deal.SetClient(v), nil
		}
		return deal.SetReferralPerson(v), nil
	default:
		var v deal.Money
		if err := json.Unmarshal(op.Value, &v); err != nil {
			return nil, errors.New("value must be a number")
		}
		return deal.SetAmount(deal.AmountField(op.Field), v), nil
	}
}

// EditDraft applies a batch of edits atomically: either every op lands or the
// draft is left unchanged. Selecting another vehicle restarts the ledger fetch.
func (s *Service) EditDraft(ctx context.Context, owner string, id uuid.UUID, ops []EditOp) (DraftView, error) {
	d, ok := s.drafts.get(id, owner)
	if !ok {
		return DraftView{}, errDraftNotFound
	}
	edits, refresh, err := s.resolveEdits(ctx, ops)
	if err != nil {
		return DraftView{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	before := d.builder.VehicleID()
	next := d.builder.Clone()
	if err := next.Apply(edits...); err != nil {
		return DraftView{}, applyError(err)
	}
	d.builder = next
	if refresh || d.builder.VehicleID() != before {
		d.fetchLedger(ctx)
	}
	return s.view(d), nil
}

func applyError(err error) error {
	var unknown deal.ErrUnknownField
	switch {
	case errors.As(err, &unknown):
		return common.NewAppError("INVALID_EDIT", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, deal.ErrUnknownAddon):
		return common.NewAppError("ADDON_NOT_FOUND", "add-on not found", http.StatusNotFound, err)
	case errors.Is(err, deal.ErrNotHydrated):
		return errDraftNotFound
	default:
		return err
	}
}

// SubmitDraft validates the draft and persists it as a new deal or over the
// deal it was opened from. An in-flight ledger fetch is awaited first. The
// draft is closed on success and kept open on failure so the user can retry.
func (s *Service) SubmitDraft(ctx context.Context, owner string, id uuid.UUID) (rec deal.Record, err error) {
	ctx, span := obs.StartSpan(ctx, "deal.submit", attribute.String("draft.id", id.String()))
	defer func() { obs.EndSpan(span, err) }()

	d, ok := s.drafts.get(id, owner)
	if !ok {
		return deal.Record{}, errDraftNotFound
	}
	if err := d.waitLedger(ctx); err != nil {
		return deal.Record{}, err
	}

	d.mu.Lock()
	sub, err := d.builder.Submission()
	dealID, editing := d.builder.DealID()
	d.mu.Unlock()
	if err != nil {
		obs.CountDealSubmission(submitOp(editing), "invalid")
		return deal.Record{}, validationError(err)
	}

	var target *uuid.UUID
	if editing {
		target = &dealID
	}
	span.SetAttributes(attribute.String("deal.op", submitOp(editing)))
	rec, err = s.save(ctx, target, sub, owner)
	if err != nil {
		return deal.Record{}, err
	}
	if closed, ok := s.drafts.remove(id); ok {
		closed.close()
	}
	return rec, nil
}

func submitOp(editing bool) string {
	if editing {
		return "update"
	}
	return "insert"
}

// DiscardDraft closes a draft without saving.
func (s *Service) DiscardDraft(owner string, id uuid.UUID) error {
	if _, ok := s.drafts.get(id, owner); !ok {
		return errDraftNotFound
	}
	if d, ok := s.drafts.remove(id); ok {
		d.close()
	}
	return nil
}
