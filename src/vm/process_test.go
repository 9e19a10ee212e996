package vm

import (
	"errors"
	"testing"

	"vmkern/src/frame"
	"vmkern/src/mem"
	"vmkern/src/mmu"
	"vmkern/src/spt"
	"vmkern/src/swap"
	"vmkern/src/vmerrs"
)

func newProcess(nframes, nslots int) (*Process, *spt.Table, mmu.PageDirectory) {
	spTbl := spt.New(8)
	frTbl := frame.New(nframes)
	pd := mmu.NewSimulated()
	swTbl := swap.New(swap.NewMemDevice(nslots), nslots)
	return NewProcess(spTbl, frTbl, pd, swTbl), spTbl, pd
}

func TestFaultOnUnknownAddressKillsProcess(t *testing.T) {
	p, _, _ := newProcess(4, 4)
	err := p.Fault(0x08000000, false)
	var killed *vmerrs.Killed
	if !errors.As(err, &killed) || killed.Cause != vmerrs.EFAULT {
		t.Fatalf("expected EFAULT kill, got %v", err)
	}
}

func TestFaultResolvesAnonPageAndInstallsMapping(t *testing.T) {
	p, spTbl, pd := newProcess(4, 4)
	vp := mem.Vpage(0x10000000)
	spTbl.Insert(spt.NewAnon(vp, pd, true, swap.New(swap.NewMemDevice(1), 1)))

	if err := p.Fault(vp.Addr(), false); err != nil {
		t.Fatalf("Fault: %v", err)
	}
	if _, _, present := pd.Lookup(vp); !present {
		t.Fatalf("expected mapping to be installed after fault")
	}
}

func TestWriteToReadOnlyPageKillsWithEACCES(t *testing.T) {
	p, spTbl, pd := newProcess(4, 4)
	vp := mem.Vpage(0x10000000)
	spTbl.Insert(spt.NewFile(vp, pd, false, nil, 0, 0, swap.New(swap.NewMemDevice(1), 1)))

	err := p.Fault(vp.Addr(), true)
	var killed *vmerrs.Killed
	if !errors.As(err, &killed) || killed.Cause != vmerrs.EACCES {
		t.Fatalf("expected EACCES kill, got %v", err)
	}
}

func TestStackGrowthWithinSlackIsAccepted(t *testing.T) {
	p, _, pd := newProcess(4, 4)
	p.RecordEsp(mem.PHYS_BASE - 100)
	addr := mem.PHYS_BASE - 100 - 16 // 16 bytes below esp, inside the 32-byte slack

	if err := p.Fault(addr, true); err != nil {
		t.Fatalf("expected stack growth fault to succeed, got %v", err)
	}
	vp := mem.PageRound(addr)
	if _, _, present := pd.Lookup(vp); !present {
		t.Fatalf("expected grown stack page to be mapped")
	}
}

func TestStackGrowthFarBelowEspIsRejected(t *testing.T) {
	p, _, _ := newProcess(4, 4)
	p.RecordEsp(mem.PHYS_BASE - 100)
	addr := mem.PHYS_BASE - 100 - 4096 // far below esp, outside slack

	err := p.Fault(addr, true)
	var killed *vmerrs.Killed
	if !errors.As(err, &killed) || killed.Cause != vmerrs.EFAULT {
		t.Fatalf("expected far-below-esp fault to be rejected, got %v", err)
	}
}

func TestFaultSwapsInEvictedPage(t *testing.T) {
	// One frame total: faulting in a second anon page forces the first
	// to be evicted to swap, then faulting on the first again must read
	// it back.
	p, spTbl, pd := newProcess(1, 4)
	swTbl := p.swapper

	vpA := mem.Vpage(0x10000000)
	vpB := mem.Vpage(0x10001000)
	spTbl.Insert(spt.NewAnon(vpA, pd, true, swTbl))
	spTbl.Insert(spt.NewAnon(vpB, pd, true, swTbl))

	if err := p.Fault(vpA.Addr(), true); err != nil {
		t.Fatalf("fault A: %v", err)
	}
	eA, _ := spTbl.Search(vpA)
	pd.(*mmu.Simulated).Touch(vpA, true) // anon pages go to swap on eviction, dirty or not

	if err := p.Fault(vpB.Addr(), true); err != nil {
		t.Fatalf("fault B (forces eviction of A): %v", err)
	}
	if eA.Residency() != spt.Swapped {
		t.Fatalf("expected A to be swapped out, got %v", eA.Residency())
	}

	if err := p.Fault(vpA.Addr(), false); err != nil {
		t.Fatalf("fault A again (swap in): %v", err)
	}
	if eA.Residency() != spt.Resident {
		t.Fatalf("expected A to be resident again after swap-in")
	}
}

