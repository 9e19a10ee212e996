package thread

import (
	"testing"

	"vmkern/src/vmerrs"
)

func TestSpawnLookupReap(t *testing.T) {
	tbl := NewTable()
	info := tbl.Spawn()
	if !info.Alive() {
		t.Fatalf("freshly spawned thread should be alive")
	}
	got, ok := tbl.Lookup(info.Tid())
	if !ok || got != info {
		t.Fatalf("Lookup did not return the spawned thread")
	}
	tbl.Reap(info.Tid())
	if _, ok := tbl.Lookup(info.Tid()); ok {
		t.Fatalf("thread still present after Reap")
	}
}

func TestKillRecordsCauseAndExitStatus(t *testing.T) {
	info := NewTable().Spawn()
	info.Kill(&vmerrs.Killed{Cause: vmerrs.EFAULT})
	if info.Alive() {
		t.Fatalf("killed thread should not be alive")
	}
	status, killed := info.ExitStatus()
	if !killed || status != vmerrs.ExitStatus {
		t.Fatalf("ExitStatus() = (%d, %v), want (%d, true)", status, killed, vmerrs.ExitStatus)
	}
}

func TestSecondKillIsNoop(t *testing.T) {
	info := NewTable().Spawn()
	info.Kill(&vmerrs.Killed{Cause: vmerrs.EFAULT})
	info.Kill(&vmerrs.Killed{Cause: vmerrs.EACCES})
	_, killed := info.ExitStatus()
	if !killed {
		t.Fatalf("expected thread to remain killed")
	}
}

func TestHandleFaultErrOnlyHandlesKilled(t *testing.T) {
	info := NewTable().Spawn()
	if info.HandleFaultErr(nil) {
		t.Fatalf("nil error should not be handled as a kill")
	}
	if info.HandleFaultErr(&vmerrs.Killed{Cause: vmerrs.ENOMEM}) != true {
		t.Fatalf("expected *vmerrs.Killed to be handled")
	}
	if info.Alive() {
		t.Fatalf("thread should be dead after HandleFaultErr")
	}
}

func TestExitStatusPanicsWhileAlive(t *testing.T) {
	info := NewTable().Spawn()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected ExitStatus on a live thread to panic")
		}
	}()
	info.ExitStatus()
}
