// Package mmu models the MMU collaborator the fault engine drives:
// installing and clearing page-table mappings, and reading the
// hardware accessed/dirty bits. On real x86 these are bits inside a
// page-table entry reached by walking CR3; PageDirectory abstracts
// that walk behind the same narrow install/clear/is-dirty/is-accessed
// contract the kernel this module is adapted from exposes from its own
// pmap (mem.Pmap_t and the PTE_P/PTE_W/PTE_U/PTE_A/PTE_D bits), so the
// fault engine never needs to know whether it is driving real hardware
// or the in-memory Simulated implementation used by tests.
package mmu

import "vmkern/src/mem"

// PageDirectory is the per-process page table the fault engine
// installs resolved frames into and the evictor clears to force a
// re-fault.
type PageDirectory interface {
	// Install maps vp to the physical frame identified by frame with
	// the given permission bits. It replaces any existing mapping.
	Install(vp mem.Vpage, frame uintptr, perm mem.Perm) error

	// Clear removes any mapping for vp. It is a no-op if vp is
	// unmapped.
	Clear(vp mem.Vpage)

	// Lookup reports the current mapping for vp, if any.
	Lookup(vp mem.Vpage) (frame uintptr, perm mem.Perm, present bool)

	// IsDirty reports the hardware dirty bit for vp's mapping.
	IsDirty(vp mem.Vpage) bool

	// IsAccessed reports the hardware accessed bit for vp's mapping.
	IsAccessed(vp mem.Vpage) bool

	// ClearAccessed clears the hardware accessed bit for vp's
	// mapping, giving the clock algorithm's "second chance."
	ClearAccessed(vp mem.Vpage)
}
