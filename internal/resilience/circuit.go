package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position. The numeric value is exported as a gauge.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

var stateNames = [...]string{Closed: "closed", Open: "open", HalfOpen: "half_open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Breaker trips when the failure ratio over the most recent outcomes reaches
// failureRatio. The window holds twice minRequests outcomes, so a burst of
// old successes cannot mask a fresh outage. After openFor an open breaker
// admits exactly one probe; its outcome closes or reopens the breaker.
type Breaker struct {
	mu       sync.Mutex
	state    State
	openedAt time.Time
	probing  bool

	// ring of recent outcomes while closed
	outcomes []bool
	next     int
	count    int
	failures int

	minRequests  int
	failureRatio float64
	openFor      time.Duration
	target       string
	hooks        []func(context.Context, Transition)
	now          func() time.Time
}

// NewBreaker builds a closed breaker. Out-of-range arguments fall back to
// one request, a 50% ratio (capped at 100%) and a 30s cool-off.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	switch {
	case failureRatio <= 0:
		failureRatio = 0.5
	case failureRatio > 1:
		failureRatio = 1
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		outcomes:     make([]bool, minRequests*2),
		minRequests:  minRequests,
		failureRatio: failureRatio,
		openFor:      openFor,
		target:       "default",
		now:          time.Now,
	}
}

// Allow reports whether a request may proceed.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	var t *Transition
	allowed := true
	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.openFor {
			allowed = false
			break
		}
		t = b.moveLocked(HalfOpen)
		b.probing = true
	case HalfOpen:
		allowed = !b.probing
		b.probing = true
	}
	b.mu.Unlock()
	b.publish(ctx, t)
	return allowed
}

// Report records the outcome of an admitted request. Reports that arrive
// while open are ignored.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	var t *Transition
	switch b.state {
	case HalfOpen:
		b.probing = false
		if success {
			t = b.moveLocked(Closed)
		} else {
			t = b.moveLocked(Open)
		}
	case Closed:
		if b.record(success) {
			t = b.moveLocked(Open)
		}
	}
	b.mu.Unlock()
	b.publish(ctx, t)
}

// record pushes one outcome into the ring and reports whether the breaker
// should trip.
func (b *Breaker) record(success bool) bool {
	if b.count == len(b.outcomes) {
		if !b.outcomes[b.next] {
			b.failures--
		}
	} else {
		b.count++
	}
	b.outcomes[b.next] = success
	b.next = (b.next + 1) % len(b.outcomes)
	if !success {
		b.failures++
	}
	return b.count >= b.minRequests && float64(b.failures)/float64(b.count) >= b.failureRatio
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// OpenUntil returns when an open breaker will admit its next probe. It is the
// zero time unless the breaker is open.
func (b *Breaker) OpenUntil() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return time.Time{}
	}
	return b.openedAt.Add(b.openFor)
}

// Transition describes one breaker state change.
type Transition struct {
	Target string
	From   State
	To     State
	At     time.Time
}

// WithTarget names the guarded dependency. The name labels metrics and logs.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t := strings.TrimSpace(target); t != "" {
		b.target = t
	}
	setStateGauge(b.target, b.state)
	return b
}

// WithLogger logs each transition. The request logger on the context, when
// present, wins over logger so the entry carries the request id.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	return b.OnTransition(func(ctx context.Context, t Transition) {
		l := zerolog.Ctx(ctx)
		if l.GetLevel() == zerolog.Disabled {
			l = &logger
		}
		evt := l.Info()
		if t.To == Open {
			evt = l.Warn()
		}
		evt.Str("target", t.Target).
			Str("from_state", t.From.String()).
			Str("to_state", t.To.String()).
			Msg("breaker_transition")
	})
}

// OnTransition registers fn to run after every state change. fn runs with the
// breaker unlocked.
func (b *Breaker) OnTransition(fn func(context.Context, Transition)) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, fn)
	return b
}

// WithClock replaces the time source. Tests use it to skip the cool-off.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
	return b
}

// moveLocked switches state and returns the transition to publish once the
// lock is released. It returns nil when the state does not change.
func (b *Breaker) moveLocked(next State) *Transition {
	if b.state == next {
		return nil
	}
	t := &Transition{Target: b.target, From: b.state, To: next, At: b.now()}
	b.state = next
	if next == Open {
		b.openedAt = t.At
	}
	b.count, b.next, b.failures = 0, 0, 0
	return t
}

func (b *Breaker) publish(ctx context.Context, t *Transition) {
	if t == nil {
		return
	}
	observeTransition(*t)
	b.mu.Lock()
	hooks := append([]func(context.Context, Transition){}, b.hooks...)
	b.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx, *t)
	}
}
