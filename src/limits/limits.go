// Package limits tracks system-wide capacity bounds for the virtual
// memory subsystem: how many physical frames and swap slots exist, and
// how many of each may currently be pinned or in flight. Sysatomic_t
// is the same take/give remaining-capacity counter the kernel this was
// adapted from used for its per-resource system limits (open sockets,
// pipes, futexes); here it bounds VM-specific resources instead.
package limits

import "sync/atomic"
import "unsafe"

// Sysatomic_t is a numeric limit that can be atomically taken and given
// back. When Taken reports false the count is left unchanged and the
// caller must undo whatever it was about to do and treat the resource
// as exhausted.
type Sysatomic_t int64

// VMLimit_t tracks system-wide bounds relevant to paging.
type VMLimit_t struct {
	// Frames is the total number of physical frames in the user pool.
	Frames int
	// SwapSlots is the total number of slots on the swap partition.
	SwapSlots int
	// PinnedFrames counts how many frames may be pinned (mid-I/O) at
	// once; exhausting this would mean every frame is pinned and
	// eviction has nothing left to examine.
	PinnedFrames Sysatomic_t
}

// Default returns the limits used when a Table is constructed without
// explicit overrides: a modest frame pool and a swap partition twice
// its size, reflecting the pool sizes used in the end-to-end test
// scenarios (spec scenario 4 uses an 8-frame pool).
func Default() *VMLimit_t {
	return &VMLimit_t{
		Frames:       8,
		SwapSlots:    16,
		PinnedFrames: Sysatomic_t(8),
	}
}

func (s *Sysatomic_t) aptr() *int64 {
	return (*int64)(unsafe.Pointer(s))
}

// Given increases the remaining count by n.
func (s *Sysatomic_t) Given(n uint) {
	atomic.AddInt64(s.aptr(), int64(n))
}

// Taken tries to decrement the remaining count by n and reports
// whether there was enough left.
func (s *Sysatomic_t) Taken(n uint) bool {
	g := atomic.AddInt64(s.aptr(), -int64(n))
	if g >= 0 {
		return true
	}
	atomic.AddInt64(s.aptr(), int64(n))
	return false
}

// Take decrements the remaining count by one.
func (s *Sysatomic_t) Take() bool {
	return s.Taken(1)
}

// Give increments the remaining count by one.
func (s *Sysatomic_t) Give() {
	s.Given(1)
}
