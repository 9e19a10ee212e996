package mmu

import "golang.org/x/arch/x86/x86asm"

// ClassifyAccess decodes the instruction bytes that trapped and
// reports whether the decoded instruction's destination operand was
// memory (a write) as opposed to a register (a read of whatever it
// loaded). It is a diagnostic helper for cross-checking that the
// error-code "write" bit a caller supplied agrees with what the
// trapping instruction actually did; nothing in this module calls it,
// and it is not on any path that resolves a fault. mode64 selects 32- or 64-bit
// decoding; this kernel's user mode is 32-bit protected mode.
func ClassifyAccess(code []byte, mode64 bool) (isWrite bool, ok bool) {
	mode := 32
	if mode64 {
		mode = 64
	}
	inst, err := x86asm.Decode(code, mode)
	if err != nil {
		return false, false
	}
	if len(inst.Args) == 0 {
		return false, false
	}
	// By x86 convention the first argument of a two-operand
	// instruction (MOV, ADD, ...) is the destination. A memory
	// destination means the trapping access was a write.
	if _, isMem := inst.Args[0].(x86asm.Mem); isMem {
		return true, true
	}
	// A memory operand elsewhere in the instruction is a read.
	for _, a := range inst.Args[1:] {
		if _, isMem := a.(x86asm.Mem); isMem {
			return false, true
		}
	}
	return false, false
}
