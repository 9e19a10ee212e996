// Package mmap implements the memory-mapping table: the record of
// every explicit file mapping a process has made, on top of the same
// supplemental page table entries (spt.Entry, kind KindMmap) the fault
// engine already knows how to resolve and the frame table already
// knows how to evict. Munmap forces eviction of any resident page in
// the mapping so a dirty page is written back immediately rather than
// waiting for memory pressure, the same as the teacher's file-backed
// pages are written back eagerly at process exit rather than left for
// the allocator to notice.
package mmap

import (
	"errors"
	"sync"

	"vmkern/src/fsio"
	"vmkern/src/frame"
	"vmkern/src/mem"
	"vmkern/src/mmu"
	"vmkern/src/spt"
	"vmkern/src/swap"
	"vmkern/src/util"
	"vmkern/src/vmerrs"
)

// ID identifies one live mapping, returned by Mmap and consumed by
// Munmap.
type ID int

type mapping struct {
	pages    []mem.Vpage
	file     fsio.File
	writable bool
}

// Table is the per-process mmap table.
type Table struct {
	mu       sync.Mutex
	spt      *spt.Table
	frames   *frame.Table
	pagedir  mmu.PageDirectory
	swapper  *swap.Table
	mappings map[ID]*mapping
	order    []ID
	nextID   ID
}

// New returns an empty mmap table bound to the given process
// collaborators.
func New(spt *spt.Table, frames *frame.Table, pagedir mmu.PageDirectory, swapper *swap.Table) *Table {
	return &Table{spt: spt, frames: frames, pagedir: pagedir, swapper: swapper, mappings: make(map[ID]*mapping)}
}

// Mmap maps length bytes of f, starting at fileOffset 0, into the
// process's address space at vp (which must be page-aligned and
// outside any existing mapping or segment). It fails with EINVAL if
// length is non-positive or any covered page already has a
// supplemental page table entry — overlapping a mapping onto an
// existing segment, stack, or another mapping is rejected up front
// rather than silently clobbered, matching the fault engine's
// assumption that an spt entry's Kind never changes once inserted.
func (t *Table) Mmap(vp mem.Vpage, f fsio.File, length int64, writable bool) (ID, error) {
	if length <= 0 {
		return 0, vmerrs.EINVAL
	}
	if vp.Addr()%uintptr(mem.PGSIZE) != 0 {
		return 0, vmerrs.EINVAL
	}
	npages := int(util.Roundup(int(length), mem.PGSIZE)) / mem.PGSIZE
	pages := make([]mem.Vpage, npages)
	for i := 0; i < npages; i++ {
		pv := vp + mem.Vpage(i*mem.PGSIZE)
		if !mem.InUserHalf(pv.Addr()) {
			return 0, vmerrs.EINVAL
		}
		if _, ok := t.spt.Search(pv); ok {
			return 0, vmerrs.EINVAL
		}
		pages[i] = pv
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i, pv := range pages {
		offset := int64(i * mem.PGSIZE)
		fileBytes := mem.PGSIZE
		if remaining := length - offset; remaining < int64(mem.PGSIZE) {
			fileBytes = int(remaining)
		}
		t.spt.Insert(spt.NewMmap(pv, t.pagedir, writable, f, offset, fileBytes, t.swapper))
	}

	id := t.nextID
	t.nextID++
	t.mappings[id] = &mapping{pages: pages, file: f, writable: writable}
	t.order = append(t.order, id)
	return id, nil
}

// Munmap tears down a mapping previously returned by Mmap: any
// resident page is evicted (writing dirty, writable pages back to the
// file) and its frame freed, then every page's supplemental page table
// entry is removed. It fails with ENOENT if id is unknown, which also
// makes a second Munmap of an already-torn-down id (as happens when
// process exit unmaps everything a program did not already unmap
// itself) a harmless no-op from the caller's perspective.
func (t *Table) Munmap(id ID) error {
	t.mu.Lock()
	m, ok := t.mappings[id]
	if !ok {
		t.mu.Unlock()
		return vmerrs.ENOENT
	}
	delete(t.mappings, id)
	t.mu.Unlock()

	for _, vp := range m.pages {
		e, ok := t.spt.Search(vp)
		if !ok {
			continue
		}
		e.Lock()
		if e.Residency() == spt.Resident {
			frameNo := e.FrameNo()
			data := t.frames.Data(frameNo)
			t.pagedir.Clear(vp)
			if err := e.Evict(data); err != nil {
				e.Unlock()
				return err
			}
			t.frames.Free(frameNo)
		}
		e.Unlock()
		t.spt.Remove(vp)
	}
	// The mapping's file handle was obtained via Reopen specifically so
	// it outlives the caller's own descriptor; it is this table's to
	// close once every page is torn down.
	return m.file.Close()
}

// UnmapAll tears down every mapping still recorded, in the order Mmap
// created them — the order process exit must honor, per its implicit
// munmap of every active mapping. A mapping already torn down by an
// explicit Munmap is skipped rather than treated as an error, so exit's
// blanket cleanup composes with whatever the program already unmapped
// itself.
func (t *Table) UnmapAll() error {
	t.mu.Lock()
	ids := make([]ID, len(t.order))
	copy(ids, t.order)
	t.order = nil
	t.mu.Unlock()

	for _, id := range ids {
		if err := t.Munmap(id); err != nil {
			if errors.Is(err, vmerrs.ENOENT) {
				continue
			}
			return err
		}
	}
	return nil
}
