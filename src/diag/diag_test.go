package diag

import (
	"bytes"
	"strings"
	"testing"

	"vmkern/src/frame"
	"vmkern/src/mem"
	"vmkern/src/mmu"
	"vmkern/src/vmerrs"
)

type dummyOwner struct {
	vp mem.Vpage
	pd mmu.PageDirectory
}

func (d *dummyOwner) Vpage() mem.Vpage           { return d.vp }
func (d *dummyOwner) PageDir() mmu.PageDirectory { return d.pd }
func (d *dummyOwner) Evict(data []byte) error    { return nil }

func TestDumpIncludesAddressAccessAndCause(t *testing.T) {
	s := Dump(0xdeadb000, true, &vmerrs.Killed{Cause: vmerrs.EFAULT})
	if !strings.Contains(s, "0xdeadb000") {
		t.Fatalf("dump missing fault address: %s", s)
	}
	if !strings.Contains(s, "write") {
		t.Fatalf("dump missing access type: %s", s)
	}
	if !strings.Contains(s, "bad user address") {
		t.Fatalf("dump missing cause: %s", s)
	}
}

func TestFrameSnapshotLabelsOccupancy(t *testing.T) {
	ft := frame.New(2)
	pd := mmu.NewSimulated()
	owner := &dummyOwner{vp: mem.Vpage(0x1000), pd: pd}
	frameNo, _, err := ft.Alloc(owner)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	_ = frameNo // left pinned deliberately

	snap := FrameSnapshot(ft)
	if len(snap.Sample) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(snap.Sample))
	}
	states := map[string]bool{}
	for _, s := range snap.Sample {
		states[s.Label["state"][0]] = true
	}
	if !states["pinned"] || !states["free"] {
		t.Fatalf("expected pinned and free states, got %v", states)
	}

	var buf bytes.Buffer
	if err := snap.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected non-empty encoded profile")
	}
}
