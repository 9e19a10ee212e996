// Package thread tracks per-thread liveness and exit status, the same
// map-of-notes shape as the teacher's Threadinfo_t/Tnote_t, stripped of
// the cooperative-scheduler kill-channel machinery that only makes
// sense bound to the teacher's own forked Go runtime (there is no
// runtime.Gptr here to stash a "current thread" pointer in, so
// ownership of an *Info is passed explicitly by the caller rather than
// fetched from the scheduler). What survives is what the fault engine
// actually needs: a place to record that a fault killed a thread, and
// with what cause.
package thread

import (
	"errors"
	"sync"

	"vmkern/src/vmerrs"
)

// Tid identifies a thread within its process.
type Tid int

// Info is one thread's liveness record.
type Info struct {
	mu         sync.Mutex
	tid        Tid
	alive      bool
	killed     bool
	cause      vmerrs.Errno
	exitStatus int
}

func newInfo(tid Tid) *Info {
	return &Info{tid: tid, alive: true}
}

// Tid returns the thread's identifier.
func (i *Info) Tid() Tid {
	return i.tid
}

// Alive reports whether the thread has neither exited nor been
// killed.
func (i *Info) Alive() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.alive
}

// Kill marks the thread as terminated by an unrecoverable fault,
// recording k.Cause and vmerrs.ExitStatus as the exit status. Killing
// an already-dead thread is a no-op: the first fault to kill a thread
// wins.
func (i *Info) Kill(k *vmerrs.Killed) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.alive {
		return
	}
	i.alive = false
	i.killed = true
	i.cause = k.Cause
	i.exitStatus = vmerrs.ExitStatus
}

// Exit marks the thread as having exited normally with status.
func (i *Info) Exit(status int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.alive {
		return
	}
	i.alive = false
	i.exitStatus = status
}

// ExitStatus returns the thread's exit status and whether it died
// from an unrecoverable fault rather than a normal exit. It panics if
// the thread is still alive.
func (i *Info) ExitStatus() (status int, killed bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.alive {
		panic("thread: ExitStatus of a live thread")
	}
	return i.exitStatus, i.killed
}

// HandleFaultErr inspects err as returned by vm.Process.Fault: if it
// is a *vmerrs.Killed, it kills the thread and reports true. Any other
// error (including nil) is left to the caller and reports false.
func (i *Info) HandleFaultErr(err error) bool {
	var k *vmerrs.Killed
	if errors.As(err, &k) {
		i.Kill(k)
		return true
	}
	return false
}

// Table tracks every live thread note in one kernel instance, keyed by
// Tid, mirroring the teacher's Threadinfo_t.Notes map.
type Table struct {
	mu    sync.Mutex
	notes map[Tid]*Info
	next  Tid
}

// NewTable returns an empty thread table.
func NewTable() *Table {
	return &Table{notes: make(map[Tid]*Info)}
}

// Spawn allocates a new Tid and returns its Info.
func (t *Table) Spawn() *Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	info := newInfo(t.next)
	t.notes[info.tid] = info
	return info
}

// Lookup returns the Info for tid, if it is still tracked.
func (t *Table) Lookup(tid Tid) (*Info, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.notes[tid]
	return info, ok
}

// Reap removes tid from the table once its exit status has been
// collected.
func (t *Table) Reap(tid Tid) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.notes, tid)
}
