package api

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ScanSlots bounds how many scans the server runs at once. Requests beyond the bound are
// turned away instead of queued, so a slow target cannot pile up goroutines.
type ScanSlots struct {
	sem    *semaphore.Weighted
	size   int
	active atomic.Int64
}

// NewScanSlots creates a pool of n scan slots; n below one means one.
func NewScanSlots(n int) *ScanSlots {
	if n < 1 {
		n = 1
	}
	return &ScanSlots{sem: semaphore.NewWeighted(int64(n)), size: n}
}

// TryAcquire takes a slot without waiting. It returns a release function and true on
// success; calling release more than once has no further effect.
func (s *ScanSlots) TryAcquire() (func(), bool) {
	if !s.sem.TryAcquire(1) {
		return nil, false
	}
	s.active.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Add(-1)
			s.sem.Release(1)
		})
	}, true
}

// Active returns the number of slots in use.
func (s *ScanSlots) Active() int {
	return int(s.active.Load())
}

// Size returns the number of slots.
func (s *ScanSlots) Size() int {
	return s.size
}
