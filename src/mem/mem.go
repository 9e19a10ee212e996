// Package mem defines the address-space constants shared by every
// other package in this module: page size, the kernel/user split at
// PHYS_BASE, and the page-aligned virtual/physical address types. The
// bit layout mirrors the PTE_* constants the kernel this subsystem was
// adapted from uses for its own page tables (mem.PTE_P/PTE_W/PTE_U in
// the teacher's physical-memory package); here they describe the
// permission bits the mmu package's PageDirectory interface reports
// and installs, rather than a real x86 page-table entry.
package mem

import "vmkern/src/util"

// PGSHIFT is the base-2 exponent of the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

// PGOFFSET masks the in-page offset of an address.
const PGOFFSET = PGSIZE - 1

// SECTOR_SIZE is the size of one block-device sector; a swap slot
// spans PGSIZE/SECTOR_SIZE consecutive sectors.
const SECTOR_SIZE = 512

// PHYS_BASE is the fixed virtual boundary between user and kernel
// address space; user pages live strictly below it.
const PHYS_BASE uintptr = 0xc0000000

// STACK_MAX is the maximum size of a single process's stack region,
// measured down from PHYS_BASE.
const STACK_MAX = 8 * 1024 * 1024

// ESP_SLACK is how far below the recorded user stack pointer a fault
// address may still land and be treated as legitimate stack growth
// (covers PUSHA/PUSH writing below %esp before it is adjusted).
const ESP_SLACK = 32

// PTE permission bits as reported/installed through the mmu package's
// PageDirectory interface.
const (
	PTE_P Perm = 1 << 0 // present
	PTE_W Perm = 1 << 1 // writable
	PTE_U Perm = 1 << 2 // user-accessible
	PTE_A Perm = 1 << 3 // accessed
	PTE_D Perm = 1 << 4 // dirty
)

// Perm is a bitmask of PTE_* permission bits.
type Perm uint

// Vpage is a page-aligned user virtual address; it is the primary key
// of a supplemental page table entry.
type Vpage uintptr

// PageRound rounds a raw virtual address down to its containing page.
func PageRound(va uintptr) Vpage {
	return Vpage(util.Rounddown(int(va), PGSIZE))
}

// Offset returns the in-page offset of a raw virtual address.
func Offset(va uintptr) int {
	return int(va) & PGOFFSET
}

// Next returns the next page-aligned address, i.e. the address
// immediately following vp's page.
func (vp Vpage) Next() Vpage {
	return vp + Vpage(PGSIZE)
}

// Addr returns vp as a plain virtual address.
func (vp Vpage) Addr() uintptr {
	return uintptr(vp)
}

// InUserHalf reports whether va lies in the user half of the address
// space, i.e. strictly below PHYS_BASE and non-null.
func InUserHalf(va uintptr) bool {
	return va != 0 && va < PHYS_BASE
}

// StackFloor is the lowest address a stack page is permitted to grow
// down to: PHYS_BASE - STACK_MAX.
func StackFloor() uintptr {
	return PHYS_BASE - STACK_MAX
}
