// Package frame implements the physical frame table: a fixed pool of
// page-sized buffers standing in for physical memory, allocated to
// callers on demand and reclaimed by a clock (second-chance) eviction
// scan when the pool is full. The locking shape — one coarse mutex
// guarding the whole table, held during an eviction scan except while
// the victim's contents are written back — follows the same single-big-lock pattern fsio.filesysLock
// uses for the block-device collaborator in this module.
package frame

import (
	"sync"

	"vmkern/src/limits"
	"vmkern/src/mem"
	"vmkern/src/mmu"
	"vmkern/src/vmerrs"
)

// Owner is implemented by whatever holds a frame's supplemental page
// table entry (the spt package's Entry). The frame table never
// interprets page contents or kind itself; it only asks the owner to
// evict and to answer where the mapping lives.
type Owner interface {
	// Vpage returns the virtual page currently mapped to this frame.
	Vpage() mem.Vpage

	// PageDir returns the page table the mapping lives in, so the
	// clock algorithm can read and clear the hardware accessed bit and
	// clear the mapping outright when evicting.
	PageDir() mmu.PageDirectory

	// Evict is called with the frame's current byte contents when the
	// clock hand selects this owner as a victim; the mapping has
	// already been cleared by the time Evict runs. Evict must write
	// the contents back (to swap or to the backing file) as its kind
	// requires, or discard them if they are reclaimable without a
	// write-back.
	Evict(data []byte) error
}

type slot struct {
	data   []byte
	owner  Owner
	inUse  bool
	pinned bool
}

// Table is the physical frame allocator. One Table is shared by every
// process in the kernel, mirroring physical memory being a single
// global resource.
type Table struct {
	mu        sync.Mutex
	slots     []slot
	hand      int
	pinBudget limits.Sysatomic_t
}

// New returns a frame table of nframes page-sized frames, with every
// frame eligible to be pinned at once.
func New(nframes int) *Table {
	return NewWithLimit(&limits.VMLimit_t{Frames: nframes, PinnedFrames: limits.Sysatomic_t(nframes)})
}

// NewWithLimit returns a frame table of lim.Frames page-sized frames,
// rejecting Pin/Alloc once lim.PinnedFrames simultaneously-pinned
// frames are outstanding (the evicting thread's I/O and the fault
// engine's in-flight installs share this one counter, the same
// take/give accounting limits.Sysatomic_t gives every other bounded
// kernel resource).
func NewWithLimit(lim *limits.VMLimit_t) *Table {
	t := &Table{slots: make([]slot, lim.Frames), pinBudget: lim.PinnedFrames}
	for i := range t.slots {
		t.slots[i].data = make([]byte, mem.PGSIZE)
	}
	return t
}

// NumFrames returns the total frame capacity of the table.
func (t *Table) NumFrames() int {
	return len(t.slots)
}

// Alloc reserves a frame for owner, evicting an existing occupant via
// the clock algorithm if the pool is full. The returned frame is
// zeroed and pinned; the caller must Unpin it once the page table
// mapping is installed, so a concurrent eviction scan cannot steal it
// out from under an in-progress fault resolution.
func (t *Table) Alloc(owner Owner) (frameNo int, data []byte, err error) {
	t.mu.Lock()

	if !t.pinBudget.Take() {
		t.mu.Unlock()
		return 0, nil, vmerrs.ENOMEM
	}

	idx := t.findFreeLocked()
	if idx < 0 {
		idx, err = t.evict()
		if err != nil {
			t.pinBudget.Give()
			t.mu.Unlock()
			return 0, nil, err
		}
	}
	s := &t.slots[idx]
	s.inUse = true
	s.owner = owner
	s.pinned = true
	for i := range s.data {
		s.data[i] = 0
	}
	t.mu.Unlock()
	return idx, s.data, nil
}

// Free releases frameNo unconditionally, without writing back its
// contents; callers use this for a page known to need no write-back
// (e.g. unmapping a clean, never-resident page).
func (t *Table) Free(frameNo int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &t.slots[frameNo]
	if s.pinned {
		t.pinBudget.Give()
	}
	s.inUse = false
	s.owner = nil
	s.pinned = false
}

// Pin marks a frame as ineligible for eviction; Unpin reverses it.
// Frames start pinned on Alloc and must be explicitly unpinned. Pin
// reports false if the system-wide simultaneously-pinned budget is
// exhausted, in which case the frame is left unpinned.
func (t *Table) Pin(frameNo int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &t.slots[frameNo]
	if s.pinned {
		return true
	}
	if !t.pinBudget.Take() {
		return false
	}
	s.pinned = true
	return true
}

func (t *Table) Unpin(frameNo int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &t.slots[frameNo]
	if s.pinned {
		t.pinBudget.Give()
	}
	s.pinned = false
}

// Data returns the backing buffer for frameNo.
func (t *Table) Data(frameNo int) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots[frameNo].data
}

// Status is one frame's occupancy as reported by Snapshot.
type Status struct {
	InUse  bool
	Pinned bool
	Vpage  mem.Vpage
}

// Snapshot reports the current occupancy of every frame, for the
// diagnostic dump in package diag.
func (t *Table) Snapshot() []Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Status, len(t.slots))
	for i, s := range t.slots {
		st := Status{InUse: s.inUse, Pinned: s.pinned}
		if s.inUse {
			st.Vpage = s.owner.Vpage()
		}
		out[i] = st
	}
	return out
}

func (t *Table) findFreeLocked() int {
	for i := range t.slots {
		if !t.slots[i].inUse {
			return i
		}
	}
	return -1
}

// evict runs the clock algorithm: it sweeps the frame ring starting at
// the hand, giving every accessed frame one second chance (clearing
// the accessed bit and advancing) before selecting the next unaccessed,
// unpinned frame as the victim. The sweep is bounded to two full trips
// around the ring; if every frame is pinned, eviction fails with
// ENOMEM rather than spinning forever.
//
// evict must be called with t.mu held. Per spec.md §5, frame_lock must
// never be held across the victim's unbounded write-back I/O: once a
// victim is chosen and pinned against re-selection, and its mapping
// cleared so further accesses trap, evict releases t.mu for the
// duration of owner.Evict and reacquires it before returning.
func (t *Table) evict() (int, error) {
	n := len(t.slots)
	if n == 0 {
		return 0, vmerrs.ENOMEM
	}
	for scanned := 0; scanned < 2*n; scanned++ {
		i := t.hand
		t.hand = (t.hand + 1) % n
		s := &t.slots[i]
		if !s.inUse || s.pinned {
			continue
		}
		pd := s.owner.PageDir()
		vp := s.owner.Vpage()
		if pd.IsAccessed(vp) {
			pd.ClearAccessed(vp)
			continue
		}

		s.pinned = true
		owner := s.owner
		data := s.data
		pd.Clear(vp)

		t.mu.Unlock()
		err := owner.Evict(data)
		t.mu.Lock()

		s.pinned = false
		if err != nil {
			return 0, err
		}
		s.inUse = false
		s.owner = nil
		return i, nil
	}
	return 0, vmerrs.ENOMEM
}
