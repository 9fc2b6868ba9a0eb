// Package ratelimit spaces outbound calls at a fixed interval per key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const storePrefix = "personnel_sync_pacer"

func NewMemoryStore() limiter.Store {
	return memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          storePrefix,
		CleanUpInterval: time.Minute,
	})
}

func NewRedisStore(client redis.UniversalClient) (limiter.Store, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is required")
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: storePrefix})
	if err != nil {
		return nil, errors.Wrap(err, "ratelimit: redis store")
	}
	return store, nil
}

type PacerOptions struct {
	// Interval is the minimum gap between two calls of Wait for the same key.
	Interval time.Duration
	// Store, when set, also caps the per-key call rate across every process sharing it.
	Store limiter.Store

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o *PacerOptions) setDefaults() {
	if o.Interval == 0 {
		o.Interval = 1 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = sleep
	}
}

// Pacer enforces a fixed delay between successive calls for a key. Locally it waits out the
// remainder of the interval since the previous call. With a store, calls are also counted
// against a shared per-minute budget of one call per interval.
type Pacer struct {
	opts    PacerOptions
	limiter *limiter.Limiter

	mu   sync.Mutex
	last map[string]time.Time
}

func NewPacer(opts PacerOptions) *Pacer {
	opts.setDefaults()
	p := &Pacer{opts: opts, last: map[string]time.Time{}}
	if opts.Store != nil {
		p.limiter = limiter.New(opts.Store, sharedRate(opts.Interval))
	}
	return p
}

func sharedRate(interval time.Duration) limiter.Rate {
	if interval >= time.Minute {
		return limiter.Rate{Period: interval, Limit: 1}
	}
	return limiter.Rate{Period: time.Minute, Limit: int64(time.Minute / interval)}
}

func (p *Pacer) Interval() time.Duration {
	return p.opts.Interval
}

// Wait blocks until a call for key may proceed.
func (p *Pacer) Wait(ctx context.Context, key string) error {
	if err := p.waitLocal(ctx, key); err != nil {
		return err
	}
	if p.limiter == nil {
		return nil
	}
	for {
		lctx, err := p.limiter.Get(ctx, key)
		if err != nil {
			return errors.Wrap(err, "ratelimit: limiter")
		}
		if !lctx.Reached {
			return nil
		}
		d := time.Unix(lctx.Reset, 0).Sub(p.opts.Now())
		if d <= 0 {
			d = 10 * time.Millisecond
		}
		if err := p.opts.Sleep(ctx, d); err != nil {
			return err
		}
	}
}

func (p *Pacer) waitLocal(ctx context.Context, key string) error {
	p.mu.Lock()
	now := p.opts.Now()
	next := now
	if last, ok := p.last[key]; ok {
		if due := last.Add(p.opts.Interval); due.After(now) {
			next = due
		}
	}
	p.last[key] = next
	p.mu.Unlock()

	return p.opts.Sleep(ctx, next.Sub(now))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
