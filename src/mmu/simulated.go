package mmu

import "sync"

import "vmkern/src/mem"

type pte struct {
	frame   uintptr
	perm    mem.Perm
	present bool
	dirty   bool
	accessed bool
}

// Simulated is a PageDirectory backed by an in-memory map instead of a
// real page-table walk, the same substitution the kernel this module
// was adapted from cannot make (it walks real hardware page tables via
// mem.Pmap_t) but a hosted test environment needs: there is no CR3 to
// load here. One Simulated exists per process address space.
type Simulated struct {
	mu   sync.Mutex
	ptes map[mem.Vpage]*pte
}

// NewSimulated returns an empty page directory.
func NewSimulated() *Simulated {
	return &Simulated{ptes: make(map[mem.Vpage]*pte)}
}

func (s *Simulated) Install(vp mem.Vpage, frame uintptr, perm mem.Perm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ptes[vp]
	if !ok {
		e = &pte{}
		s.ptes[vp] = e
	}
	e.frame = frame
	e.perm = perm | mem.PTE_P
	e.present = true
	// a freshly installed mapping starts clean; dirty/accessed are
	// only ever set by simulated accesses via Touch.
	e.dirty = false
	e.accessed = false
	return nil
}

func (s *Simulated) Clear(vp mem.Vpage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.ptes[vp]; ok {
		e.present = false
	}
}

func (s *Simulated) Lookup(vp mem.Vpage) (uintptr, mem.Perm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ptes[vp]
	if !ok || !e.present {
		return 0, 0, false
	}
	return e.frame, e.perm, true
}

func (s *Simulated) IsDirty(vp mem.Vpage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ptes[vp]
	return ok && e.dirty
}

func (s *Simulated) IsAccessed(vp mem.Vpage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ptes[vp]
	return ok && e.accessed
}

func (s *Simulated) ClearAccessed(vp mem.Vpage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.ptes[vp]; ok {
		e.accessed = false
	}
}

// Touch simulates a hardware memory access to vp: it sets the
// accessed bit, and the dirty bit too when write is true. Tests use it
// to drive the clock algorithm and dirty write-back without a real
// CPU trapping on every access.
func (s *Simulated) Touch(vp mem.Vpage, write bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ptes[vp]
	if !ok || !e.present {
		return
	}
	e.accessed = true
	if write {
		e.dirty = true
	}
}
