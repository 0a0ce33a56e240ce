package request

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Backoff holds a cooldown per upstream. Each failure doubles the pause before
// the next request, up to ceiling; each success takes one strike back.
type Backoff struct {
	base, ceiling time.Duration

	mu        sync.Mutex
	cooldowns map[string]cooldown
}

type cooldown struct {
	strikes int
	until   time.Time
}

// NewBackoff creates a backoff that starts at base and never exceeds ceiling
// (plus up to 10% jitter).
func NewBackoff(base, ceiling time.Duration) *Backoff {
	return &Backoff{base: base, ceiling: ceiling, cooldowns: make(map[string]cooldown)}
}

// Wait blocks while upstream is cooling down.
func (b *Backoff) Wait(ctx context.Context, upstream string) error {
	b.mu.Lock()
	until := b.cooldowns[upstream].until
	b.mu.Unlock()

	d := time.Until(until)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fail adds a strike and extends the cooldown.
func (b *Backoff) Fail(upstream string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.cooldowns[upstream]
	c.strikes++
	c.until = time.Now().Add(b.delay(c.strikes))
	b.cooldowns[upstream] = c
}

// Succeed removes a strike. The cooldown ends once no strikes remain.
func (b *Backoff) Succeed(upstream string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.cooldowns[upstream]
	if !ok {
		return
	}
	if c.strikes > 0 {
		c.strikes--
	}
	if c.strikes == 0 {
		delete(b.cooldowns, upstream)
		return
	}
	b.cooldowns[upstream] = c
}

// Strikes reports the current strike count and cooldown end for upstream.
func (b *Backoff) Strikes(upstream string) (int, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.cooldowns[upstream]
	return c.strikes, c.until
}

func (b *Backoff) delay(strikes int) time.Duration {
	d := b.base
	for i := 1; i < strikes && d < b.ceiling; i++ {
		d *= 2
	}
	d = min(d, b.ceiling)
	return d + time.Duration(rand.Int63n(int64(d)/10+1))
}
