// Package tracker counts how each upstream answered: the N2YO positions API,
// the land-data CDN, or any other host the request client talks to.
package tracker

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Outcome is what happened to one request for an upstream.
type Outcome int

const (
	CacheHit Outcome = iota
	CacheMiss
	Fetched
	Failed
	numOutcomes
)

func (o Outcome) String() string {
	switch o {
	case CacheHit:
		return "cache_hit"
	case CacheMiss:
		return "cache_miss"
	case Fetched:
		return "fetched"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcomes lists every outcome in label order.
func Outcomes() []Outcome {
	return []Outcome{CacheHit, CacheMiss, Fetched, Failed}
}

// Counts is a point-in-time copy of one upstream's counters.
type Counts struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	Fetched     int64 `json:"fetched"`
	Failed      int64 `json:"failed"`
}

// Get returns the counter for o.
func (c Counts) Get(o Outcome) int64 {
	switch o {
	case CacheHit:
		return c.CacheHits
	case CacheMiss:
		return c.CacheMisses
	case Fetched:
		return c.Fetched
	case Failed:
		return c.Failed
	}
	return 0
}

// HitRate is the cache hit percentage, 0 before any lookup.
func (c Counts) HitRate() int64 {
	lookups := c.CacheHits + c.CacheMisses
	if lookups == 0 {
		return 0
	}
	return c.CacheHits * 100 / lookups
}

type counters [numOutcomes]atomic.Int64

// Tracker holds counters per upstream name.
type Tracker struct {
	mu        sync.RWMutex
	upstreams map[string]*counters
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{upstreams: make(map[string]*counters)}
}

func (t *Tracker) counters(upstream string) *counters {
	t.mu.RLock()
	c, ok := t.upstreams[upstream]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = t.upstreams[upstream]; !ok {
		c = &counters{}
		t.upstreams[upstream] = c
	}
	return c
}

// Record counts one outcome for upstream.
func (t *Tracker) Record(upstream string, o Outcome) {
	if o < 0 || o >= numOutcomes {
		return
	}
	t.counters(upstream)[o].Add(1)
}

// Upstreams returns the names seen so far, sorted.
func (t *Tracker) Upstreams() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.upstreams))
	for name := range t.upstreams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset zeroes every counter. Known upstreams stay listed.
func (t *Tracker) Reset() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.upstreams {
		for i := range c {
			c[i].Store(0)
		}
	}
}

// Snapshot copies the counters of every upstream.
func (t *Tracker) Snapshot() map[string]Counts {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Counts, len(t.upstreams))
	for name, c := range t.upstreams {
		out[name] = Counts{
			CacheHits:   c[CacheHit].Load(),
			CacheMisses: c[CacheMiss].Load(),
			Fetched:     c[Fetched].Load(),
			Failed:      c[Failed].Load(),
		}
	}
	return out
}
