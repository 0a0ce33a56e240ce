package track

import "sync/atomic"

// Guard is a single-flight flag: at most one holder at a time, no queueing.
type Guard struct {
	busy int32 // 1 while a run holds the guard
}

// TryStart takes the guard. It returns false if it is already held.
func (g *Guard) TryStart() bool {
	return atomic.CompareAndSwapInt32(&g.busy, 0, 1)
}

// Release frees the guard.
func (g *Guard) Release() {
	atomic.StoreInt32(&g.busy, 0)
}

// Busy reports whether the guard is held.
func (g *Guard) Busy() bool {
	return atomic.LoadInt32(&g.busy) == 1
}
