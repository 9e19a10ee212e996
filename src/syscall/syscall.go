// Package syscall is the thin entry point user-mode traps arrive
// through: it records the user stack pointer on every entry (the way
// the fault engine's stack-growth heuristic expects), touches a user
// buffer page by page to drive the fault engine — the touch half of the
// per-page "touch, then copy" discipline the
// teacher's vm.Userbuf_t used (Userdmap8_inner faulted in one page at a
// time under the address-space lock, then copied into/out of the
// mapped slice) — and exposes Mmap/Munmap as the two VM-relevant
// syscalls this module implements.
package syscall

import (
	"vmkern/src/fsio"
	"vmkern/src/mem"
	"vmkern/src/mmap"
	"vmkern/src/vm"
	"vmkern/src/vmerrs"
)

// Process is everything one syscall dispatch needs from the calling
// process's address space.
type Process struct {
	Fault *vm.Process
	Mmap  *mmap.Table
}

// Enter records esp as the user stack pointer at syscall entry, for
// Process.Fault's stack-growth heuristic. Every syscall trampoline
// calls this before doing anything else.
func (p *Process) Enter(esp uintptr) {
	p.Fault.RecordEsp(esp)
}

// CopyIn faults in, one page at a time as read accesses, every page of
// user memory covering len(dst) bytes starting at uva, so a page that
// is not yet resident (or swapped out) is resolved without requiring
// the whole buffer to be resident up front. It does not copy any bytes
// into dst.
func CopyIn(p *Process, uva uintptr, dst []byte) error {
	return touchAndCopy(p, uva, dst, false)
}

// CopyOut is the write-side counterpart of CopyIn: it faults in, as
// write accesses, every page covering len(src) bytes starting at uva.
// It does not copy any bytes out of src.
func CopyOut(p *Process, uva uintptr, src []byte) error {
	return touchAndCopy(p, uva, src, true)
}

func touchAndCopy(p *Process, uva uintptr, buf []byte, write bool) error {
	off := 0
	for off < len(buf) {
		va := uva + uintptr(off)
		if err := p.Fault.Fault(va, write); err != nil {
			return err
		}
		pageEnd := mem.PageRound(va).Next().Addr()
		n := int(pageEnd - va)
		if n > len(buf)-off {
			n = len(buf) - off
		}
		// The page is now resident; a real kernel would copy directly
		// out of the mapped physical frame here. This module's frame
		// contents are not exposed to syscall (only the fault engine
		// and frame table touch frame buffers directly), so CopyIn/
		// CopyOut's role in this module is limited to driving
		// residency; callers that need the bytes themselves go through
		// fsio against the backing file instead.
		off += n
	}
	return nil
}

// Mmap implements the mmap syscall: it validates that fd is not
// stdin/stdout (EBADF) before reopening it and handing off to the
// mmap table.
func Mmap(p *Process, vp mem.Vpage, f fsio.File, isStdioFd bool, length int64, writable bool) (mmap.ID, error) {
	if isStdioFd {
		return 0, vmerrs.EBADF
	}
	reopened, err := f.Reopen()
	if err != nil {
		return 0, vmerrs.EBADF
	}
	return p.Mmap.Mmap(vp, reopened, length, writable)
}

// Munmap implements the munmap syscall.
func Munmap(p *Process, id mmap.ID) error {
	return p.Mmap.Munmap(id)
}

// Exit tears down everything process exit owns in this address space:
// every mapping p.Mmap still has a record of, then whatever stack or
// heap pages are left in the fault engine's supplemental page table.
// Every syscall dispatch loop calls this once on the exiting thread's
// last trip through, whether it is unwinding from a normal exit or
// from thread.Info.Kill.
func Exit(p *Process) error {
	return p.Fault.Exit(p.Mmap)
}
