// Package vm implements the fault policy engine: the single entry
// point a trap handler calls on every page fault, dispatching on the
// faulting supplemental page table entry's kind and residency the way
// the teacher's Vm_t.Pgfault/Sys_pgfault dispatched on a Vminfo_t's
// mtype, and growing the stack in place of the teacher's COW/shared-
// file handling this kernel has no use for. Process keeps the
// teacher's Lock_pmap/Unlock_pmap shape as a single address-space
// mutex serializing faults against each other and against the spt
// drain in Exit; mmap.Table's Mmap/Munmap do not take it.
package vm

import (
	"sync"
	"time"

	"vmkern/src/frame"
	"vmkern/src/limits"
	"vmkern/src/mem"
	"vmkern/src/mmap"
	"vmkern/src/mmu"
	"vmkern/src/spt"
	"vmkern/src/stats"
	"vmkern/src/swap"
	"vmkern/src/vmerrs"
)

// Stats_t holds every fault-engine counter, the Counter_t/Cycles_t-
// fields-only shape stats.Stats2String's reflect walk expects (mirroring the
// teacher's own per-subsystem stats struct).
type Stats_t struct {
	Pagefaults   stats.Counter_t
	StackGrowths stats.Counter_t
	SwapIns      stats.Counter_t
	IOWait       stats.Cycles_t
}

var vmstats Stats_t

// Process binds one address space's supplemental page table, page
// directory, and the frame/swap pools it shares with every other
// process in the kernel.
type Process struct {
	mu sync.Mutex

	spt     *spt.Table
	frames  *frame.Table
	pagedir mmu.PageDirectory
	swapper *swap.Table

	esp uintptr // user %esp recorded at syscall entry, advanced by stack growth
}

// NewProcess returns a fault engine for one address space.
func NewProcess(spt *spt.Table, frames *frame.Table, pagedir mmu.PageDirectory, swapper *swap.Table) *Process {
	return &Process{spt: spt, frames: frames, pagedir: pagedir, swapper: swapper}
}

// NewDefaultProcess wires up a fault engine and its frame/swap pools
// at the system-wide default sizes (limits.Default), sharing dev as
// the backing swap partition; pagedir is the new process's own page
// directory. This is the shape a real process-spawn path uses once it
// stops hand-picking pool sizes per test scenario.
func NewDefaultProcess(pagedir mmu.PageDirectory, dev swap.BlockDevice) (*Process, *frame.Table, *spt.Table, *swap.Table) {
	lim := limits.Default()
	frames := frame.NewWithLimit(lim)
	swapper := swap.New(dev, lim.SwapSlots)
	spTbl := spt.New(64)
	return NewProcess(spTbl, frames, pagedir, swapper), frames, spTbl, swapper
}

// RecordEsp stores the user stack pointer observed at the most recent
// syscall entry; the stack-growth heuristic in Fault consults it so a
// fault a few words below a pushing %esp is recognized as legitimate
// growth rather than a wild access.
func (p *Process) RecordEsp(esp uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.esp = esp
}

// Fault resolves a page fault at faultAddr. write reports whether the
// trapping access was a store. On success the faulting page is
// resident and mapped; on failure the returned error is always a
// *vmerrs.Killed carrying the cause the caller should report before
// terminating the faulting process — this engine never returns a
// "retry" outcome a caller could loop on, since every dispatch branch
// that does not kill the process ends with the page resident.
func (p *Process) Fault(faultAddr uintptr, write bool) error {
	vmstats.Pagefaults.Inc()
	vp := mem.PageRound(faultAddr)

	p.mu.Lock()
	defer p.mu.Unlock()

	grew := false
	e, ok := p.spt.Search(vp)
	if !ok {
		if !p.looksLikeStackGrowth(faultAddr) {
			return &vmerrs.Killed{Cause: vmerrs.EFAULT}
		}
		e = spt.NewAnon(vp, p.pagedir, true, p.swapper)
		p.spt.Insert(e)
		vmstats.StackGrowths.Inc()
		grew = true
	}

	e.Lock()
	defer e.Unlock()

	if write && !e.Writable() {
		return &vmerrs.Killed{Cause: vmerrs.EACCES}
	}
	if e.Residency() == spt.Resident {
		// Spurious fault: another thread resolved it first, or the
		// hardware reported a fault for a reason this engine does not
		// model (e.g. a stale TLB entry). Nothing to do.
		return nil
	}

	wasSwapped := e.Residency() == spt.Swapped

	frameNo, data, err := p.frames.Alloc(e)
	if err != nil {
		return &vmerrs.Killed{Cause: vmerrs.ENOMEM}
	}
	ioStart := time.Now()
	loadErr := e.LoadInto(data)
	vmstats.IOWait.Since(ioStart)
	if loadErr != nil {
		p.frames.Free(frameNo)
		return &vmerrs.Killed{Cause: vmerrs.EIO}
	}
	if wasSwapped {
		if s := e.TakeSwapSlot(); s != swap.None {
			p.swapper.Free(s)
		}
		vmstats.SwapIns.Inc()
	}

	perm := mem.PTE_U
	if e.Writable() {
		perm |= mem.PTE_W
	}
	if err := p.pagedir.Install(vp, uintptr(frameNo), perm); err != nil {
		p.frames.Free(frameNo)
		return &vmerrs.Killed{Cause: vmerrs.EFAULT}
	}
	e.SetResident(frameNo)
	p.frames.Unpin(frameNo)
	if grew {
		p.esp = faultAddr
	}
	return nil
}

// looksLikeStackGrowth reports whether a fault at faultAddr, which hit
// no existing supplemental page table entry, should instead be treated
// as the stack growing downward by one page. The address must fall
// within the user half of the address space, no lower than the
// stack's fixed floor, and no more than mem.ESP_SLACK bytes below the
// most recently recorded %esp — covering instructions like PUSHA that
// write below %esp before adjusting it, and a CopyIn read of a stack
// page that has never been touched.
func (p *Process) looksLikeStackGrowth(faultAddr uintptr) bool {
	if !mem.InUserHalf(faultAddr) {
		return false
	}
	if faultAddr < mem.StackFloor() {
		return false
	}
	if faultAddr+mem.ESP_SLACK < p.esp {
		return false
	}
	return true
}

// Exit reclaims every resource this address space holds: first every
// live mapping in mm, in the order it was created (mm.UnmapAll writes
// back any dirty, writable page before dropping its spt entry), then
// whatever anonymous or demand-paged entries are left in the
// supplemental page table — freeing each resident page's frame or each
// swapped-out page's slot before discarding the entry itself. This is
// the teardown every exit path (clean exit or a fatal fault's kill)
// must reach so the frame pool and swap partition never leak a
// terminated process's pages.
func (p *Process) Exit(mm *mmap.Table) error {
	if err := mm.UnmapAll(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.spt.Drain() {
		switch e.Residency() {
		case spt.Resident:
			p.frames.Free(e.FrameNo())
		case spt.Swapped:
			if s := e.TakeSwapSlot(); s != swap.None {
				p.swapper.Free(s)
			}
		}
	}
	return nil
}

// Stats returns a human-readable snapshot of the fault counters, which
// are shared by every Process in the package, primarily for the
// diagnostic dump in package diag.
func Stats() string {
	return stats.Stats2String(vmstats)
}
