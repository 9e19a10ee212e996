// Package loader populates a fresh process's supplemental page table
// from an ELF executable's PT_LOAD segments, the same debug/elf
// parsing the teacher's cmd/chentry tool uses to validate and patch a
// kernel image's header, here walking the full program header table
// instead of rewriting one field. Each loadable segment becomes a run
// of KindFile spt.Entry pages demand-paged from the executable itself;
// the segment's writable, uninitialized tail (.bss) is zero-filled on
// first fault because fileBytes is clamped to the segment's on-disk
// length.
package loader

import (
	"debug/elf"
	"io"

	"vmkern/src/mem"
	"vmkern/src/mmu"
	"vmkern/src/spt"
	"vmkern/src/swap"
)

// File is the narrow handle loader needs on the already-open
// executable; *fsio.MemFile satisfies it. The fsio.File interface does
// not, since it has no ReadAt.
type File interface {
	io.ReaderAt
	Seek(offset int64) error
	Read(dst []byte) (int, error)
	WriteAt(src []byte, offset int64) (int, error)
}

// segment is the subset of an elf.Prog's fields LoadSegments needs,
// split out so the per-page layout math (segmentPages) can be
// exercised by tests without constructing a real ELF file.
type segment struct {
	vaddr    uint64
	memsz    uint64
	off      uint64
	filesz   uint64
	writable bool
}

type pageLayout struct {
	vp         mem.Vpage
	fileOffset int64
	fileBytes  int
}

// segmentPages computes the page-by-page layout of one loadable
// segment: each page's virtual address, its corresponding file offset
// (valid by the ELF congruence rule that vaddr and off agree modulo
// the page size within a segment), and how many of its bytes come from
// the file as opposed to being zero-filled (the segment's .bss tail).
func segmentPages(seg segment) []pageLayout {
	segStart := mem.PageRound(uintptr(seg.vaddr))
	segEnd := uintptr(seg.vaddr) + uintptr(seg.memsz)
	fileEnd := int64(seg.off) + int64(seg.filesz)

	var pages []pageLayout
	for vaddr := segStart.Addr(); vaddr < segEnd; vaddr += uintptr(mem.PGSIZE) {
		pageFileOffset := int64(seg.off) + (int64(vaddr) - int64(seg.vaddr))
		fileBytes := 0
		if pageFileOffset < fileEnd {
			fileBytes = mem.PGSIZE
			if pageFileOffset+int64(fileBytes) > fileEnd {
				fileBytes = int(fileEnd - pageFileOffset)
			}
		}
		pages = append(pages, pageLayout{vp: mem.PageRound(vaddr), fileOffset: pageFileOffset, fileBytes: fileBytes})
	}
	return pages
}

// LoadSegments reads the ELF program header table from f and inserts
// one spt.Entry per page of every PT_LOAD segment into table. It
// returns the entry point address recorded in the ELF header.
func LoadSegments(f File, table *spt.Table, pagedir mmu.PageDirectory, swapper *swap.Table) (entry uintptr, err error) {
	ef, err := elf.NewFile(f)
	if err != nil {
		return 0, err
	}
	defer ef.Close()

	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		seg := segment{
			vaddr:    prog.Vaddr,
			memsz:    prog.Memsz,
			off:      prog.Off,
			filesz:   prog.Filesz,
			writable: prog.Flags&elf.PF_W != 0,
		}
		for _, pg := range segmentPages(seg) {
			table.Insert(spt.NewFile(pg.vp, pagedir, seg.writable, f, pg.fileOffset, pg.fileBytes, swapper))
		}
	}

	return uintptr(ef.Entry), nil
}
