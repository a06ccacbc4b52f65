package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrBusy is returned when the deal is still locked after MaxWait.
	ErrBusy = errors.New("lock: resource busy")
	// ErrNotHeld is returned when releasing a lease that expired or was taken over.
	ErrNotHeld = errors.New("lock: lease not held")
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker serialises deal writes across API instances with SET NX leases.
type Locker struct {
	Client redis.Cmdable
	Retry  time.Duration
	// MaxWait bounds how long Acquire waits for a held lock. Zero waits until
	// the context is cancelled.
	MaxWait time.Duration
}

// Lease is one acquired lock. Release it exactly once.
type Lease struct {
	key    string
	token  string
	client redis.Cmdable
}

// DealKey returns the lock key guarding writes to one deal.
func DealKey(dealID uuid.UUID) string {
	return "lock:deal:" + dealID.String()
}

// Acquire polls until key is free, the context ends or MaxWait elapses.
func (l Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l.Client == nil {
		return nil, errors.New("lock: redis client not configured")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	retry := l.Retry
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	var deadline <-chan time.Time
	if l.MaxWait > 0 {
		t := time.NewTimer(l.MaxWait)
		defer t.Stop()
		deadline = t.C
	}

	token := uuid.NewString()
	tick := time.NewTicker(retry)
	defer tick.Stop()
	for {
		ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lease{key: key, token: token, client: l.Client}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, ErrBusy
		case <-tick.C:
		}
	}
}

// Release deletes the key only if this lease still owns it.
func (ls *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, ls.client, []string{ls.key}, ls.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// WithLock runs fn while holding key. The lease is released on a detached
// context so a cancelled request still frees the deal.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	lease, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = lease.Release(releaseCtx)
	}()
	return fn(ctx)
}
