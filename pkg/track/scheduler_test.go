package track

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestManualSchedulerAdvance(t *testing.T) {
	s := NewManualScheduler(t0)
	var fired []time.Time
	s.Every(time.Second, func(now time.Time) { fired = append(fired, now) })

	s.Advance(500 * time.Millisecond)
	if len(fired) != 0 {
		t.Fatalf("fired early: %v", fired)
	}
	s.Advance(3 * time.Second)
	if len(fired) != 3 {
		t.Fatalf("fired %d times, want 3", len(fired))
	}
	for i, at := range fired {
		if want := t0.Add(time.Duration(i+1) * time.Second); !at.Equal(want) {
			t.Errorf("tick %d at %v, want %v", i, at, want)
		}
	}
	if want := t0.Add(3500 * time.Millisecond); !s.Now().Equal(want) {
		t.Errorf("Now = %v, want %v", s.Now(), want)
	}
}

func TestManualSchedulerStopFromCallback(t *testing.T) {
	s := NewManualScheduler(t0)
	count := 0
	var timer Timer
	timer = s.Every(time.Second, func(time.Time) {
		count++
		if count == 2 {
			timer.Stop()
		}
	})

	s.Advance(10 * time.Second)
	if count != 2 {
		t.Errorf("fired %d times, want 2", count)
	}
	if s.Active() != 0 {
		t.Errorf("Active = %d, want 0", s.Active())
	}
	if s.Tick() {
		t.Error("Tick fired with no timers")
	}
}

func TestManualSchedulerOrdersTimers(t *testing.T) {
	s := NewManualScheduler(t0)
	var order []string
	s.Every(3*time.Second, func(time.Time) { order = append(order, "slow") })
	s.Every(time.Second, func(time.Time) { order = append(order, "fast") })

	s.Advance(3 * time.Second)
	want := []string{"fast", "fast", "slow", "fast"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	// At t=3s both are due; the one registered first wins the tie.
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestTickerScheduler(t *testing.T) {
	s := NewTickerScheduler()
	var n int32
	done := make(chan struct{})
	timer := s.Every(5*time.Millisecond, func(time.Time) {
		if atomic.AddInt32(&n, 1) == 2 {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not fire")
	}
	timer.Stop()
	timer.Stop()
	time.Sleep(20 * time.Millisecond)
	settled := atomic.LoadInt32(&n)
	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&n); got != settled {
		t.Errorf("ticker kept firing after Stop: %d -> %d", settled, got)
	}
}
