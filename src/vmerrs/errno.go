// Package vmerrs defines the error codes produced by the virtual-memory
// subsystem. Allocation, mapping and syscall-level failures return an
// Errno (the fault engine wraps one in a Killed); spt and fsio report
// I/O failures as plain errors. Errno follows the same negative-int-error-code
// convention the kernel this module was lifted from uses throughout
// (mirrored there as defs.Err_t: functions return -defs.EFAULT,
// -defs.ENOMEM, and so on, with zero meaning success).
package vmerrs

// Errno is a kernel-style error code: zero means success, any other
// value names a specific failure.
type Errno int

// Error implements the error interface so an Errno can be returned
// and compared anywhere idiomatic Go expects an error.
func (e Errno) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return "unknown vm error"
}

// Ok reports whether e represents success.
func (e Errno) Ok() bool {
	return e == 0
}

const (
	// EFAULT is a bad user pointer: null, kernel-half, or unmapped.
	EFAULT Errno = iota + 1
	// ENOMEM is physical frame or swap-slot exhaustion.
	ENOMEM
	// EINVAL is a malformed argument (misaligned address, zero length).
	EINVAL
	// EACCES is a write fault against a read-only SPT entry.
	EACCES
	// EIO is a short read/write against the backing file or swap device.
	EIO
	// ENOSPC names swap-slot bitmap exhaustion specifically. The swap
	// allocator reports exhaustion as ok == false from Alloc, and the
	// fault engine surfaces a failed eviction as ENOMEM.
	ENOSPC
	// ENOENT is an unknown mapping id passed to Munmap.
	ENOENT
	// EBADF is a bad file handle passed to Mmap (stdin/stdout, or a
	// handle that fails to reopen).
	EBADF
)

var names = map[Errno]string{
	EFAULT: "bad user address",
	ENOMEM: "out of physical frames",
	EINVAL: "invalid argument",
	EACCES: "write to read-only page",
	EIO:    "short read or write",
	ENOSPC: "swap partition exhausted",
	ENOENT: "no such mapping",
	EBADF:  "bad file handle",
}

// Killed wraps the Errno that caused a process to be terminated. The
// fault engine returns it instead of a bare Errno so that callers can
// recover the exit status (-1, per spec) without losing which
// condition triggered it.
type Killed struct {
	Cause Errno
}

func (k *Killed) Error() string {
	return "process killed: " + k.Cause.Error()
}

// ExitStatus is the status every Killed fault maps to.
const ExitStatus = -1
