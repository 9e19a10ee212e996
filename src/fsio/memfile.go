package fsio

import "fmt"
import "sync"

// MemFile is a File backed by an in-memory byte slice, standing in for
// a real on-disk file in tests and in the end-to-end scenarios from
// spec.md §8 (it is the "file" an mmap round trip writes through to).
// Reopen shares the same backing bytes but maintains its own cursor,
// matching the independence a real file_reopen gives two descriptors
// over the same inode.
type MemFile struct {
	mu     *sync.Mutex
	bytes  *[]byte
	cursor int64
	name   string
}

// NewMemFile creates a file whose initial contents are a copy of data.
func NewMemFile(name string, data []byte) *MemFile {
	b := make([]byte, len(data))
	copy(b, data)
	return &MemFile{mu: &sync.Mutex{}, bytes: &b, name: name}
}

func (f *MemFile) Reopen() (File, error) {
	return &MemFile{mu: f.mu, bytes: f.bytes, name: f.name}, nil
}

func (f *MemFile) Seek(offset int64) error {
	if offset < 0 {
		return fmt.Errorf("fsio: negative seek offset %d", offset)
	}
	f.cursor = offset
	return nil
}

func (f *MemFile) Read(dst []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := *f.bytes
	if f.cursor >= int64(len(b)) {
		return 0, nil
	}
	n := copy(dst, b[f.cursor:])
	f.cursor += int64(n)
	return n, nil
}

// ReadAt implements io.ReaderAt, so a *MemFile can be handed to
// debug/elf.NewFile by the loader package without an adapter.
func (f *MemFile) ReadAt(dst []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := *f.bytes
	if offset < 0 || offset >= int64(len(b)) {
		return 0, fmt.Errorf("fsio: ReadAt offset %d out of range", offset)
	}
	n := copy(dst, b[offset:])
	if n < len(dst) {
		return n, fmt.Errorf("fsio: short ReadAt at offset %d", offset)
	}
	return n, nil
}

func (f *MemFile) WriteAt(src []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	need := offset + int64(len(src))
	if need > int64(len(*f.bytes)) {
		grown := make([]byte, need)
		copy(grown, *f.bytes)
		*f.bytes = grown
	}
	n := copy((*f.bytes)[offset:], src)
	return n, nil
}

func (f *MemFile) Close() error {
	return nil
}

func (f *MemFile) Length() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(*f.bytes)), nil
}

// Snapshot returns a copy of the file's current contents, for tests to
// assert against (spec.md property P5).
func (f *MemFile) Snapshot() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(*f.bytes))
	copy(out, *f.bytes)
	return out
}
