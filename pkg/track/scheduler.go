package track

import (
	"sync"
	"time"
)

// Timer is a handle to a repeating callback.
type Timer interface {
	Stop()
}

// Scheduler drives repeating callbacks. Callbacks of one timer never overlap.
type Scheduler interface {
	Now() time.Time
	Every(interval time.Duration, fn func(now time.Time)) Timer
}

// TickerScheduler runs callbacks on wall-clock tickers.
type TickerScheduler struct{}

// NewTickerScheduler creates a wall-clock scheduler.
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

// Now returns the wall-clock time.
func (TickerScheduler) Now() time.Time {
	return time.Now()
}

// Every starts a goroutine calling fn once per interval until the timer is stopped.
func (TickerScheduler) Every(interval time.Duration, fn func(now time.Time)) Timer {
	t := &tickerTimer{
		ticker: time.NewTicker(interval),
		stop:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-t.stop:
				return
			case now := <-t.ticker.C:
				fn(now)
			}
		}
	}()
	return t
}

type tickerTimer struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

// Stop may be called from inside the callback.
func (t *tickerTimer) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.stop)
	})
}

// ManualScheduler is a Scheduler whose clock only moves when told to.
// Callbacks run synchronously on the goroutine calling Advance or Tick,
// without the scheduler lock held, so they may stop their own timer.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	s        *ManualScheduler
	interval time.Duration
	next     time.Time
	fn       func(time.Time)
	stopped  bool
}

// NewManualScheduler creates a scheduler whose clock starts at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Now returns the scheduler's current time.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Every registers fn to fire each interval, starting one interval from now.
func (s *ManualScheduler) Every(interval time.Duration, fn func(now time.Time)) Timer {
	if interval <= 0 {
		interval = time.Nanosecond
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, interval: interval, next: s.now.Add(interval), fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.stopped = true
	for i, other := range t.s.timers {
		if other == t {
			t.s.timers = append(t.s.timers[:i], t.s.timers[i+1:]...)
			break
		}
	}
}

// Advance moves the clock forward by d, firing every callback that falls due on the way.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		t := s.earliest()
		if t == nil || t.next.After(target) {
			s.now = target
			s.mu.Unlock()
			return
		}
		now := s.fire(t)
		s.mu.Unlock()
		t.fn(now)
	}
}

// Tick jumps the clock to the next due callback and fires it.
// It returns false when no timer is active.
func (s *ManualScheduler) Tick() bool {
	s.mu.Lock()
	t := s.earliest()
	if t == nil {
		s.mu.Unlock()
		return false
	}
	now := s.fire(t)
	s.mu.Unlock()
	t.fn(now)
	return true
}

// RunUntilIdle fires callbacks until no timer is left or max callbacks ran.
// It returns the number of callbacks fired.
func (s *ManualScheduler) RunUntilIdle(max int) int {
	n := 0
	for n < max && s.Tick() {
		n++
	}
	return n
}

// Active returns the number of registered timers.
func (s *ManualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// earliest must be called with s.mu held.
func (s *ManualScheduler) earliest() *manualTimer {
	var best *manualTimer
	for _, t := range s.timers {
		if best == nil || t.next.Before(best.next) {
			best = t
		}
	}
	return best
}

// fire must be called with s.mu held.
func (s *ManualScheduler) fire(t *manualTimer) time.Time {
	s.now = t.next
	t.next = t.next.Add(t.interval)
	return s.now
}
