// Package swap implements the swap-slot allocator: a fixed-size pool
// of disk-backed page-sized slots, tracked with a free bitmap the same
// way the goos-e bitmap frame allocator tracks physical frames
// (one bit per slot, a uint64 word scanned a bit at a time), adapted
// here to slots instead of frames and to an injected BlockDevice
// rather than a multiboot memory map.
package swap

import (
	"fmt"
	"math"
	"sync"

	"vmkern/src/mem"
	"vmkern/src/vmerrs"
)

// Slot identifies one swap-sized region of the swap device.
type Slot int

// None (-1) marks the absence of a slot and is never a valid allocated
// slot.
const None Slot = -1

// BlockDevice is the synchronous block-device collaborator the swap
// allocator reads and writes slots through. It is modeled on fsio's
// File, narrowed to whole-sector reads/writes at a byte offset.
type BlockDevice interface {
	ReadAt(offset int64, dst []byte) error
	WriteAt(offset int64, src []byte) error
}

// Table is the swap slot allocator. One Table exists per kernel
// instance; every process's swapped-out pages share the same pool.
type Table struct {
	mu        sync.Mutex
	dev       BlockDevice
	nslots    int
	used      []uint64 // one bit per slot, bit set == slot in use
	freeCount int
}

// slotBytes is the size in bytes of one swap slot: one virtual page.
const slotBytes = mem.PGSIZE

// New returns a swap allocator managing nslots slots over dev.
func New(dev BlockDevice, nslots int) *Table {
	words := (nslots + 63) / 64
	return &Table{
		dev:       dev,
		nslots:    nslots,
		used:      make([]uint64, words),
		freeCount: nslots,
	}
}

// Alloc reserves and returns an unused slot. ok is false if the swap
// device is full, which the fault engine's caller turns into an
// unrecoverable out-of-memory condition (spec.md's ENOSPC case).
func (t *Table) Alloc() (Slot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.freeCount == 0 {
		return None, false
	}
	const full = uint64(math.MaxUint64)
	for word, bits := range t.used {
		if bits == full {
			continue
		}
		for bit, mask := 0, uint64(1); bit < 64; bit, mask = bit+1, mask<<1 {
			slot := word*64 + bit
			if slot >= t.nslots {
				break
			}
			if bits&mask != 0 {
				continue
			}
			t.used[word] |= mask
			t.freeCount--
			return Slot(slot), true
		}
	}
	return None, false
}

// Free releases slot back to the pool. Freeing an already-free slot is
// a programmer error and panics, the same way double-freeing a frame
// would corrupt allocator state silently if it were merely ignored.
func (t *Table) Free(s Slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	word, mask := int(s)/64, uint64(1)<<(uint(s)%64)
	if t.used[word]&mask == 0 {
		panic(fmt.Sprintf("swap: double free of slot %d", s))
	}
	t.used[word] &^= mask
	t.freeCount++
}

// Read fills dst (which must be exactly one page) from slot.
func (t *Table) Read(s Slot, dst []byte) error {
	if len(dst) != slotBytes {
		return vmerrs.EINVAL
	}
	if !t.allocated(s) {
		return vmerrs.EINVAL
	}
	return t.dev.ReadAt(int64(s)*int64(slotBytes), dst)
}

// Write spills src (which must be exactly one page) into slot.
func (t *Table) Write(s Slot, src []byte) error {
	if len(src) != slotBytes {
		return vmerrs.EINVAL
	}
	if !t.allocated(s) {
		return vmerrs.EINVAL
	}
	return t.dev.WriteAt(int64(s)*int64(slotBytes), src)
}

func (t *Table) allocated(s Slot) bool {
	if s < 0 || int(s) >= t.nslots {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	word, mask := int(s)/64, uint64(1)<<(uint(s)%64)
	return t.used[word]&mask != 0
}

// FreeSlots returns the count of slots not currently in use.
func (t *Table) FreeSlots() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.freeCount
}

// Total returns the slot capacity of the device.
func (t *Table) Total() int {
	return t.nslots
}
