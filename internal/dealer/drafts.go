package dealer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/lumina-dealer/internal/deal"
	"github.com/noah-isme/lumina-dealer/internal/ledger"
	"github.com/noah-isme/lumina-dealer/internal/obs"
)

// Ledger fetch states reported on a draft.
const (
	LedgerLoading  = "loading"
	LedgerReady    = "ready"
	LedgerDegraded = "degraded"
)

// Draft is one open deal builder session. All builder access goes through mu.
type Draft struct {
	ID    uuid.UUID
	Owner string

	mu          sync.Mutex
	builder     *deal.Builder
	tracker     *ledger.Tracker
	ledgerState string
	ledgerDone  <-chan struct{}
	seen        time.Time
}

func newDraft(owner string, b *deal.Builder, fetcher *ledger.Fetcher, now time.Time) *Draft {
	return &Draft{
		ID:      uuid.New(),
		Owner:   owner,
		builder: b,
		tracker: &ledger.Tracker{Fetcher: fetcher},
		seen:    now,
	}
}

// fetchLedger dispatches a ledger lookup for the selected vehicle. Callers
// hold d.mu.
func (d *Draft) fetchLedger(ctx context.Context) {
	vehicleID := d.builder.VehicleID()
	d.ledgerState = LedgerLoading
	d.ledgerDone = d.tracker.Dispatch(ctx, vehicleID, func(res ledger.Result) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if !d.builder.ApplyLedger(res.VehicleID, res.Total, res.Entries) {
			return
		}
		if res.Degraded {
			d.ledgerState = LedgerDegraded
		} else {
			d.ledgerState = LedgerReady
		}
	})
}

// waitLedger blocks until the in-flight ledger fetch finishes or ctx ends.
// It must be called without d.mu held.
func (d *Draft) waitLedger(ctx context.Context) error {
	d.mu.Lock()
	done := d.ledgerDone
	d.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Draft) close() {
	d.tracker.Stop()
	d.mu.Lock()
	d.builder.Close()
	d.mu.Unlock()
}

// Drafts holds open drafts in memory and expires idle ones.
type Drafts struct {
	mu    sync.Mutex
	items map[uuid.UUID]*Draft
	ttl   time.Duration
	now   func() time.Time
}

// NewDrafts creates a registry. Drafts untouched for ttl are dropped; a zero
// ttl defaults to two hours.
func NewDrafts(ttl time.Duration) *Drafts {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Drafts{items: make(map[uuid.UUID]*Draft), ttl: ttl, now: time.Now}
}

// TTL returns the idle expiry.
func (r *Drafts) TTL() time.Duration { return r.ttl }

// Len returns the number of open drafts.
func (r *Drafts) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Drafts) put(d *Draft) {
	r.mu.Lock()
	r.items[d.ID] = d
	n := len(r.items)
	r.mu.Unlock()
	obs.SetDraftSessions(n)
}

// get returns the draft when it exists, belongs to owner and has not expired.
func (r *Drafts) get(id uuid.UUID, owner string) (*Draft, bool) {
	now := r.now()
	r.mu.Lock()
	d, ok := r.items[id]
	if !ok || d.Owner != owner {
		r.mu.Unlock()
		return nil, false
	}
	d.mu.Lock()
	expired := now.Sub(d.seen) > r.ttl
	if !expired {
		d.seen = now
	}
	d.mu.Unlock()
	if expired {
		delete(r.items, id)
	}
	n := len(r.items)
	r.mu.Unlock()

	if expired {
		obs.SetDraftSessions(n)
		d.close()
		return nil, false
	}
	return d, true
}

func (r *Drafts) remove(id uuid.UUID) (*Draft, bool) {
	r.mu.Lock()
	d, ok := r.items[id]
	delete(r.items, id)
	n := len(r.items)
	r.mu.Unlock()
	obs.SetDraftSessions(n)
	return d, ok
}

// Sweep drops drafts idle for longer than the TTL and returns how many were
// removed.
func (r *Drafts) Sweep() int {
	now := r.now()
	var expired []*Draft
	r.mu.Lock()
	for id, d := range r.items {
		d.mu.Lock()
		idle := now.Sub(d.seen)
		d.mu.Unlock()
		if idle > r.ttl {
			expired = append(expired, d)
			delete(r.items, id)
		}
	}
	n := len(r.items)
	r.mu.Unlock()

	obs.SetDraftSessions(n)
	for _, d := range expired {
		d.close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is cancelled.
func (r *Drafts) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
