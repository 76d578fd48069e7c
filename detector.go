package wsscan

import (
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// DetectPrologues analyzes raw machine code bytes and returns detected function
// prologues. baseAddr is the virtual address corresponding to the start of code.
// This function performs no I/O and works on any memory dump.
func DetectPrologues(code []byte, baseAddr uint64, arch Arch) ([]Prologue, error) {
	switch arch {
	case ArchAMD64, ArchX86:
		return detectProloguesX86(code, baseAddr, arch.x86Mode()), nil
	case ArchARM64:
		return detectProloguesARM64(code, baseAddr), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArch, arch)
	}
}

func detectProloguesX86(code []byte, baseAddr uint64, mode int) []Prologue {
	var result []Prologue

	fp, sp := x86asm.RBP, x86asm.RSP
	fpName, spName := "rbp", "rsp"
	if mode == 32 {
		fp, sp = x86asm.EBP, x86asm.ESP
		fpName, spName = "ebp", "esp"
	}

	offset := 0
	addr := baseAddr
	var prevInsn *x86asm.Inst

	for offset < len(code) {
		inst, err := x86asm.Decode(code[offset:], mode)
		if err != nil {
			offset++
			addr++
			prevInsn = nil
			continue
		}

		// Pattern 1: Classic frame pointer setup - push rbp; mov rbp, rsp
		if prevInsn != nil &&
			prevInsn.Op == x86asm.PUSH && prevInsn.Args[0] == fp &&
			inst.Op == x86asm.MOV && inst.Args[0] == fp && inst.Args[1] == sp {
			result = append(result, Prologue{
				Address:      addr - uint64(prevInsn.Len),
				Type:         PrologueClassic,
				Instructions: fmt.Sprintf("push %s; mov %s, %s", fpName, fpName, spName),
			})
		}

		// Pattern 2: No-frame-pointer function - sub rsp, imm
		if inst.Op == x86asm.SUB && inst.Args[0] == sp {
			if imm, ok := inst.Args[1].(x86asm.Imm); ok && imm > 0 {
				if prevInsn == nil || prevInsn.Op == x86asm.RET {
					result = append(result, Prologue{
						Address:      addr,
						Type:         PrologueNoFramePointer,
						Instructions: fmt.Sprintf("sub %s, 0x%x", spName, imm),
					})
				}
			}
		}

		// Pattern 3: Push rbp as first instruction
		if inst.Op == x86asm.PUSH && inst.Args[0] == fp {
			if prevInsn == nil || prevInsn.Op == x86asm.RET {
				result = append(result, Prologue{
					Address:      addr,
					Type:         ProloguePushOnly,
					Instructions: "push " + fpName,
				})
			}
		}

		// Pattern 4: Stack allocation with lea - lea rsp, [rsp-imm]
		if inst.Op == x86asm.LEA && inst.Args[0] == sp {
			if prevInsn == nil || prevInsn.Op == x86asm.RET {
				result = append(result, Prologue{
					Address:      addr,
					Type:         PrologueLEABased,
					Instructions: fmt.Sprintf("lea %s, [%s-offset]", spName, spName),
				})
			}
		}

		prevInsn = &inst
		offset += inst.Len
		addr += uint64(inst.Len)
	}

	return result
}

func detectProloguesARM64(code []byte, baseAddr uint64) []Prologue {
	var result []Prologue

	const insnLen = 4
	var prev *arm64asm.Inst

	for offset := 0; offset+insnLen <= len(code); offset += insnLen {
		addr := baseAddr + uint64(offset)
		inst, err := arm64asm.Decode(code[offset : offset+insnLen])
		if err != nil {
			if prev != nil && isFrameRecordStore(*prev) {
				result = append(result, stpOnly(addr-insnLen))
			}
			prev = nil
			continue
		}

		// Frame record: stp x29, x30, [sp, #-N]!, optionally followed by mov x29, sp
		if prev != nil && isFrameRecordStore(*prev) {
			if isFramePointerSetup(inst) {
				result = append(result, Prologue{
					Address:      addr - insnLen,
					Type:         PrologueClassic,
					Instructions: "stp x29, x30, [sp, #-N]!; mov x29, sp",
				})
			} else {
				result = append(result, stpOnly(addr-insnLen))
			}
		}

		// sub sp, sp, #imm at a function boundary
		if inst.Op == arm64asm.SUB && isReg(inst.Args[0], arm64asm.SP) && isReg(inst.Args[1], arm64asm.SP) &&
			(prev == nil || prev.Op == arm64asm.RET) {
			result = append(result, Prologue{
				Address:      addr,
				Type:         PrologueNoFramePointer,
				Instructions: "sub sp, sp, #imm",
			})
		}

		cur := inst
		prev = &cur
	}
	if prev != nil && isFrameRecordStore(*prev) {
		result = append(result, stpOnly(baseAddr+uint64(len(code)/insnLen*insnLen)-insnLen))
	}

	return result
}

func stpOnly(addr uint64) Prologue {
	return Prologue{
		Address:      addr,
		Type:         ProloguePushOnly,
		Instructions: "stp x29, x30, [sp, #-N]!",
	}
}

func isFrameRecordStore(inst arm64asm.Inst) bool {
	if inst.Op != arm64asm.STP {
		return false
	}
	if !isReg(inst.Args[0], arm64asm.X29) || !isReg(inst.Args[1], arm64asm.X30) {
		return false
	}
	mem, ok := inst.Args[2].(arm64asm.MemImmediate)
	return ok && isReg(mem.Base, arm64asm.SP) && mem.Mode == arm64asm.AddrPreIndex
}

func isFramePointerSetup(inst arm64asm.Inst) bool {
	return inst.Op == arm64asm.MOV && isReg(inst.Args[0], arm64asm.X29) && isReg(inst.Args[1], arm64asm.SP)
}

// isReg matches both plain and SP-capable register operands.
func isReg(arg arm64asm.Arg, reg arm64asm.Reg) bool {
	switch a := arg.(type) {
	case arm64asm.Reg:
		return a == reg
	case arm64asm.RegSP:
		return arm64asm.Reg(a) == reg
	}
	return false
}
