// Package spt implements the supplemental page table: the per-process
// record of every virtual page a process has ever declared, regardless
// of whether it currently has a physical frame behind it. It is the
// lock-striped hashtable this module's generic Hashtable_t used for
// arbitrary interface{} keys, specialized to a fixed mem.Vpage key and
// to VM-entry values instead of carrying a type switch over
// ustr.Ustr/int/int32/string; the lock-free-read bucket chain and
// atomic pointer splice on Set/Del carry over unchanged.
package spt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"vmkern/src/fsio"
	"vmkern/src/mem"
	"vmkern/src/mmu"
	"vmkern/src/swap"
)

// Kind classifies where a page's contents come from and therefore how
// a fault and an eviction must handle it.
type Kind int

const (
	// KindAnon is a zero-fill-on-demand or already-resident anonymous
	// page: stack and heap, written back to swap when evicted.
	KindAnon Kind = iota
	// KindFile is a demand-paged segment of an executable, backed by a
	// read-only or copy-on-write file region; clean pages are dropped
	// on eviction and simply re-read, dirty ones go to swap.
	KindFile
	// KindMmap is a page from an explicit mmap, written back to its
	// backing file (not swap) on eviction when dirty and writable.
	KindMmap
)

// Residency is the tri-state location of a page's contents.
type Residency int

const (
	NotLoaded Residency = iota
	Resident
	Swapped
)

// Entry is one supplemental page table record. The fault engine and
// mmap.Table.Munmap mutate its fields while holding the entry's own
// lock (Lock/Unlock); frame.Table calls Vpage/PageDir/Evict on a victim
// entry during an eviction scan without taking that lock.
type Entry struct {
	mu sync.Mutex

	vp       mem.Vpage
	kind     Kind
	res      Residency
	writable bool

	pagedir mmu.PageDirectory
	frameNo int
	slot    swap.Slot

	// File-backed fields (KindFile, KindMmap).
	file       File
	fileOffset int64
	fileBytes  int // valid bytes in the final partial page
	swapper    *swap.Table
}

// File is the narrow file handle an Entry needs to read or write its
// backing data; it is satisfied by fsio.File.
type File interface {
	Seek(offset int64) error
	Read(dst []byte) (int, error)
	WriteAt(src []byte, offset int64) (int, error)
}

// NewAnon creates an anonymous entry (heap or stack) not yet resident.
func NewAnon(vp mem.Vpage, pagedir mmu.PageDirectory, writable bool, swapper *swap.Table) *Entry {
	return &Entry{vp: vp, kind: KindAnon, res: NotLoaded, writable: writable, pagedir: pagedir, slot: swap.None, swapper: swapper}
}

// NewFile creates a demand-paged segment entry backed by f at
// [fileOffset, fileOffset+fileBytes); bytes past fileBytes within the
// page are zero-filled.
func NewFile(vp mem.Vpage, pagedir mmu.PageDirectory, writable bool, f File, fileOffset int64, fileBytes int, swapper *swap.Table) *Entry {
	return &Entry{vp: vp, kind: KindFile, res: NotLoaded, writable: writable, pagedir: pagedir, file: f, fileOffset: fileOffset, fileBytes: fileBytes, slot: swap.None, swapper: swapper}
}

// NewMmap creates an explicit mmap entry backed by f at fileOffset.
func NewMmap(vp mem.Vpage, pagedir mmu.PageDirectory, writable bool, f File, fileOffset int64, fileBytes int, swapper *swap.Table) *Entry {
	return &Entry{vp: vp, kind: KindMmap, res: NotLoaded, writable: writable, pagedir: pagedir, file: f, fileOffset: fileOffset, fileBytes: fileBytes, slot: swap.None, swapper: swapper}
}

func (e *Entry) Lock()   { e.mu.Lock() }
func (e *Entry) Unlock() { e.mu.Unlock() }

func (e *Entry) Vpage() mem.Vpage           { return e.vp }
func (e *Entry) PageDir() mmu.PageDirectory { return e.pagedir }
func (e *Entry) Kind() Kind                 { return e.kind }
func (e *Entry) Residency() Residency       { return e.res }
func (e *Entry) Writable() bool             { return e.writable }
func (e *Entry) FrameNo() int               { return e.frameNo }

// SetResident records that frameNo now backs this entry.
func (e *Entry) SetResident(frameNo int) {
	e.res = Resident
	e.frameNo = frameNo
}

// SetSwapped records that this entry's contents live in swap slot s
// and it no longer occupies a frame.
func (e *Entry) SetSwapped(s swap.Slot) {
	e.res = Swapped
	e.slot = s
}

// SetNotLoaded clears residency without assigning a swap slot, used
// when a clean page is simply dropped rather than spilled.
func (e *Entry) SetNotLoaded() {
	e.res = NotLoaded
	e.slot = swap.None
}

// TakeSwapSlot returns this entry's swap slot (swap.None if it has
// none) and clears it, so the caller can free the slot once the page's
// contents have been copied into a fresh frame.
func (e *Entry) TakeSwapSlot() swap.Slot {
	s := e.slot
	e.slot = swap.None
	return s
}

// LoadInto fills data (one page) with this entry's initial or
// swapped-out contents, per its Kind and Residency.
func (e *Entry) LoadInto(data []byte) error {
	switch {
	case e.res == Swapped:
		return e.swapper.Read(e.slot, data)
	case e.kind == KindAnon:
		for i := range data {
			data[i] = 0
		}
		return nil
	default: // KindFile, KindMmap, NotLoaded
		for i := range data {
			data[i] = 0
		}
		if e.file == nil {
			return nil
		}
		fsio.Lock()
		defer fsio.Unlock()
		if err := e.file.Seek(e.fileOffset); err != nil {
			return err
		}
		n, err := e.file.Read(data[:e.fileBytes])
		if err != nil {
			return err
		}
		if n < e.fileBytes {
			return fmt.Errorf("spt: short read at %#x: got %d of %d bytes", e.vp, n, e.fileBytes)
		}
		return nil
	}
}

// Evict implements frame.Owner: it is called by the frame table's
// clock scan with the frame's current contents, already unmapped from
// the page directory. It writes the page back according to Kind,
// dirtiness, and residency rules, and marks the entry not-resident.
func (e *Entry) Evict(data []byte) error {
	dirty := e.pagedir.IsDirty(e.vp)
	switch e.kind {
	case KindMmap:
		if dirty && e.writable {
			fsio.Lock()
			_, err := e.file.WriteAt(data[:e.fileBytes], e.fileOffset)
			fsio.Unlock()
			if err != nil {
				return err
			}
		}
		e.SetNotLoaded()
		return nil
	case KindFile:
		if !dirty {
			e.SetNotLoaded()
			return nil
		}
		s, ok := e.swapper.Alloc()
		if !ok {
			return fmt.Errorf("spt: swap exhausted evicting file page at %#x", e.vp)
		}
		if err := e.swapper.Write(s, data); err != nil {
			return err
		}
		e.SetSwapped(s)
		return nil
	default: // KindAnon
		s, ok := e.swapper.Alloc()
		if !ok {
			return fmt.Errorf("spt: swap exhausted evicting anon page at %#x", e.vp)
		}
		if err := e.swapper.Write(s, data); err != nil {
			return err
		}
		e.SetSwapped(s)
		return nil
	}
}

type elem struct {
	vp    mem.Vpage
	entry *Entry
	next  *elem
}

type bucket struct {
	sync.RWMutex
	first *elem
}

// Table is a per-process supplemental page table: a lock-striped
// hashtable from mem.Vpage to *Entry.
type Table struct {
	buckets []*bucket
}

// New allocates a Table with the given number of buckets.
func New(nbuckets int) *Table {
	t := &Table{buckets: make([]*bucket, nbuckets)}
	for i := range t.buckets {
		t.buckets[i] = &bucket{}
	}
	return t
}

func (t *Table) bucketFor(vp mem.Vpage) *bucket {
	h := uint32(vp>>mem.PGSHIFT) * 2654435761
	return t.buckets[h%uint32(len(t.buckets))]
}

// Insert adds e to the table, keyed by e.Vpage(). It panics if vp is
// already present, mirroring the teacher hashtable's "del/insert of
// non-existing/existing key" invariant violations being programmer
// errors rather than recoverable conditions.
func (t *Table) Insert(e *Entry) {
	b := t.bucketFor(e.vp)
	b.Lock()
	defer b.Unlock()
	for n := b.first; n != nil; n = n.next {
		if n.vp == e.vp {
			panic(fmt.Sprintf("spt: duplicate insert at %#x", e.vp))
		}
	}
	storeptr(&b.first, &elem{vp: e.vp, entry: e, next: b.first})
}

// Search looks up vp without blocking a concurrent Insert/Remove in
// another bucket; within its own bucket it races only with Insert/
// Remove via the atomic pointer chain, never with another Search.
func (t *Table) Search(vp mem.Vpage) (*Entry, bool) {
	b := t.bucketFor(vp)
	for n := loadptr(&b.first); n != nil; n = loadptr(&n.next) {
		if n.vp == vp {
			return n.entry, true
		}
	}
	return nil, false
}

// Remove deletes vp from the table. It panics if vp is absent.
func (t *Table) Remove(vp mem.Vpage) {
	b := t.bucketFor(vp)
	b.Lock()
	defer b.Unlock()
	var last *elem
	for n := b.first; n != nil; n = n.next {
		if n.vp == vp {
			if last == nil {
				storeptr(&b.first, n.next)
			} else {
				storeptr(&last.next, n.next)
			}
			return
		}
		last = n
	}
	panic(fmt.Sprintf("spt: remove of non-existing key %#x", vp))
}

// Iter applies f to every entry in the table; iteration stops early if
// f returns true.
func (t *Table) Iter(f func(*Entry) bool) bool {
	for _, b := range t.buckets {
		b.RLock()
		for n := b.first; n != nil; n = n.next {
			if f(n.entry) {
				b.RUnlock()
				return true
			}
		}
		b.RUnlock()
	}
	return false
}

// Drain empties the table and returns every entry it held, in no
// particular order. Process exit uses this to reclaim whatever
// anonymous and demand-paged entries are left once every explicit
// mapping has already been unmapped: unlike Iter, Drain takes each
// bucket's write lock directly so the caller is free to discard
// entries without the Iter-then-Remove reentrant-lock hazard.
func (t *Table) Drain() []*Entry {
	var out []*Entry
	for _, b := range t.buckets {
		b.Lock()
		for n := b.first; n != nil; n = n.next {
			out = append(out, n.entry)
		}
		storeptr(&b.first, nil)
		b.Unlock()
	}
	return out
}

func loadptr(e **elem) *elem {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(e))
	p := atomic.LoadPointer(ptr)
	return (*elem)(unsafe.Pointer(p))
}

func storeptr(p **elem, n *elem) {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(p))
	atomic.StorePointer(ptr, unsafe.Pointer(n))
}
