package track

import (
	"fmt"
	"sync"
	"testing"
)

func TestColorForIdempotent(t *testing.T) {
	c := NewColorAllocator()
	a := c.ColorFor("25544")
	b := c.ColorFor("25544")
	if a != b {
		t.Errorf("same key gave %v then %v", a, b)
	}
}

func TestColorForDistinctUntilExhausted(t *testing.T) {
	c := NewColorAllocator()
	seen := make(map[string]bool)
	for i := 0; i < len(Category10); i++ {
		hex := fmt.Sprint(c.ColorFor(fmt.Sprintf("%d", i)))
		if seen[hex] {
			t.Fatalf("key %d reused colour %s before the palette ran out", i, hex)
		}
		seen[hex] = true
	}

	// The palette wraps around instead of failing.
	if got, want := c.ColorFor("100"), Category10[0]; got != want {
		t.Errorf("11th key got %v, want %v", got, want)
	}
	if got, want := c.ColorFor("101"), Category10[1]; got != want {
		t.Errorf("12th key got %v, want %v", got, want)
	}
}

func TestColorForNormalizesKeys(t *testing.T) {
	c := NewColorAllocator()
	if c.ColorFor("STARLINK-1234") != c.ColorFor("1234") {
		t.Error("keys with the same digits should share a colour")
	}
	if len(c.Assigned()) != 1 {
		t.Errorf("Assigned = %v", c.Assigned())
	}
}

func TestColorForFirstSeenWins(t *testing.T) {
	c := NewColorAllocator()
	c.ColorFor("b")
	c.ColorFor("a")
	if got := c.Assigned(); got["b"] != "#1f77b4" || got["a"] != "#ff7f0e" {
		t.Errorf("Assigned = %v", got)
	}
}

func TestColorForConcurrent(t *testing.T) {
	c := NewColorAllocator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.ColorFor(fmt.Sprintf("%d", i%5))
		}(i)
	}
	wg.Wait()
	if n := len(c.Assigned()); n != 5 {
		t.Errorf("got %d assignments, want 5", n)
	}
}
