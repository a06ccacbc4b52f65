package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Tracker runs at most one ledger fetch per draft. Dispatching for a new
// vehicle cancels the previous fetch, and a result is only delivered while its
// vehicle is still the latest one dispatched.
type Tracker struct {
	Fetcher *Fetcher

	mu      sync.Mutex
	gen     uint64
	current uuid.UUID
	cancel  context.CancelFunc
}

// Dispatch starts a fetch for vehicleID and calls apply with the result if no
// newer dispatch happened in the meantime. The returned channel is closed when
// the fetch goroutine finishes.
func (t *Tracker) Dispatch(parent context.Context, vehicleID uuid.UUID, apply func(Result)) <-chan struct{} {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.gen++
	gen := t.gen
	t.current = vehicleID
	t.cancel = cancel
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		res, ok := t.Fetcher.Fetch(ctx, vehicleID)
		if !ok {
			return
		}
		t.mu.Lock()
		latest := t.gen == gen && t.current == vehicleID
		t.mu.Unlock()
		if latest && apply != nil {
			apply(res)
		}
	}()
	return done
}

// Current returns the vehicle of the latest dispatch.
func (t *Tracker) Current() uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Stop cancels any in-flight fetch. Late results are dropped.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
	t.current = uuid.Nil
}
