// Package diag provides diagnostics for an unrecoverable page fault
// and a snapshot of frame table occupancy. The call-stack walk in Dump
// is the teacher's Callerdump (runtime.Caller, not runtime.Callers/
// CallersFrames, to keep the same plain loop-and-concat shape) aimed
// at one specific, expected failure — an unrecoverable fault — instead
// of an arbitrary unexpected call site. FrameSnapshot packages frame
// occupancy as a pprof profile so existing `go tool pprof` tooling can
// browse it the same way it browses a heap profile, one sample per
// frame labeled by residency.
package diag

import (
	"fmt"
	"runtime"

	"github.com/google/pprof/profile"

	"vmkern/src/frame"
	"vmkern/src/vmerrs"
)

// Dump renders a report for a fault that killed a thread: the
// faulting address, whether the access was a read or write, the
// cause, and the Go call stack that observed it.
func Dump(faultAddr uintptr, write bool, k *vmerrs.Killed) string {
	access := "read"
	if write {
		access = "write"
	}
	s := fmt.Sprintf("page fault: addr=%#x access=%s cause=%v\n", faultAddr, access, k.Cause)
	return s + callerTrace(2)
}

func callerTrace(start int) string {
	i := start
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	return s
}

// FrameSnapshot captures ft's current occupancy as a pprof profile
// with one sample per frame: value 1 under sample type "frames",
// labeled "free", "resident", or "pinned". A diagnostic command can
// write the result with profile.Write and inspect it with
// `go tool pprof -tags`.
func FrameSnapshot(ft *frame.Table) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "frames", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "snapshot", Unit: "count"},
		Period:     1,
	}
	for i, st := range ft.Snapshot() {
		label := "free"
		switch {
		case st.InUse && st.Pinned:
			label = "pinned"
		case st.InUse:
			label = "resident"
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Value: []int64{1},
			Label: map[string][]string{
				"frame": {fmt.Sprintf("%d", i)},
				"state": {label},
			},
		})
	}
	return p
}
