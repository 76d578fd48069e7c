package wsscan

import (
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// CallSiteType represents the type of call site instruction.
type CallSiteType string

// Recognized call site instruction types.
const (
	CallSiteCall CallSiteType = "call"
	CallSiteJump CallSiteType = "jump"
)

// AddressingMode represents how the target address is specified.
type AddressingMode string

// Recognized addressing modes for call site instructions.
const (
	AddressingModePCRelative       AddressingMode = "pc-relative"
	AddressingModeAbsolute         AddressingMode = "absolute"
	AddressingModeRegisterIndirect AddressingMode = "register-indirect"
)

// Confidence represents the reliability of a call site detection.
type Confidence string

// Confidence levels for call site detection.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// CallSiteEdge represents a detected call site (call or jump to a function).
type CallSiteEdge struct {
	SourceAddr  uint64         `json:"source_addr"`
	TargetAddr  uint64         `json:"target_addr"`
	Type        CallSiteType   `json:"type"`
	AddressMode AddressingMode `json:"address_mode"`
	Confidence  Confidence     `json:"confidence"`
}

// DetectCallSites analyzes raw machine code bytes and returns detected
// call sites (CALL and JMP instructions with their targets). baseAddr is the
// virtual address corresponding to the start of code. This function performs
// no I/O and works on any memory dump.
func DetectCallSites(code []byte, baseAddr uint64, arch Arch) ([]CallSiteEdge, error) {
	switch arch {
	case ArchAMD64, ArchX86:
		return detectCallSitesX86(code, baseAddr, arch.x86Mode()), nil
	case ArchARM64:
		return detectCallSitesARM64(code, baseAddr), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedArch, arch)
	}
}

// isEndbr matches ENDBR64 (f3 0f 1e fa) and ENDBR32 (f3 0f 1e fb), which
// x86asm cannot decode. They mark CET-protected function entries.
func isEndbr(code []byte) bool {
	return len(code) >= 4 &&
		code[0] == 0xf3 && code[1] == 0x0f && code[2] == 0x1e &&
		(code[3] == 0xfa || code[3] == 0xfb)
}

func detectCallSitesX86(code []byte, baseAddr uint64, mode int) []CallSiteEdge {
	var result []CallSiteEdge

	for offset := 0; offset < len(code); {
		if isEndbr(code[offset:]) {
			offset += 4
			continue
		}

		inst, err := x86asm.Decode(code[offset:], mode)
		if err != nil {
			offset++
			continue
		}
		addr := baseAddr + uint64(offset)

		var edge *CallSiteEdge
		switch inst.Op {
		case x86asm.CALL:
			edge = extractTargetX86(inst, addr, CallSiteCall, ConfidenceHigh)
		case x86asm.JMP:
			// Conditional jumps have their own Op values, so JMP is always
			// unconditional.
			edge = extractTargetX86(inst, addr, CallSiteJump, ConfidenceMedium)
		}
		if edge != nil {
			result = append(result, *edge)
		}

		offset += inst.Len
	}

	return result
}

// extractTargetX86 resolves the target of a CALL or JMP. baseConfidence
// applies to direct and absolute operands; RIP-relative memory operands are
// medium confidence and register-based ones cannot be resolved.
func extractTargetX86(inst x86asm.Inst, sourceAddr uint64, cfType CallSiteType, baseConfidence Confidence) *CallSiteEdge {
	next := sourceAddr + uint64(inst.Len)
	edge := &CallSiteEdge{
		SourceAddr:  sourceAddr,
		Type:        cfType,
		AddressMode: AddressingModeRegisterIndirect,
		Confidence:  ConfidenceNone,
	}

	switch arg := inst.Args[0].(type) {
	case x86asm.Rel:
		edge.TargetAddr = next + uint64(int64(arg))
		edge.AddressMode = AddressingModePCRelative
		edge.Confidence = baseConfidence
	case x86asm.Mem:
		switch {
		case arg.Base == x86asm.RIP && arg.Index == 0:
			// call/jmp [rip+disp32]: the PLT/GOT form of PIE code.
			edge.TargetAddr = next + uint64(arg.Disp)
			edge.AddressMode = AddressingModePCRelative
			edge.Confidence = ConfidenceMedium
		case arg.Base == 0 && arg.Index == 0:
			edge.TargetAddr = uint64(arg.Disp)
			edge.AddressMode = AddressingModeAbsolute
			edge.Confidence = baseConfidence
		}
	case x86asm.Reg:
	default:
		return nil
	}
	return edge
}

func detectCallSitesARM64(code []byte, baseAddr uint64) []CallSiteEdge {
	var result []CallSiteEdge

	const insnLen = 4

	for offset := 0; offset+insnLen <= len(code); offset += insnLen {
		inst, err := arm64asm.Decode(code[offset : offset+insnLen])
		if err != nil {
			continue
		}
		addr := baseAddr + uint64(offset)

		var edge *CallSiteEdge
		switch inst.Op {
		case arm64asm.BL:
			edge = extractTargetARM64(inst, addr, CallSiteCall, ConfidenceHigh)
		case arm64asm.B:
			// B.cond carries a Cond argument and mostly branches inside a
			// function; an unconditional B may be a tail call.
			edge = extractTargetARM64(inst, addr, CallSiteJump, branchConfidenceARM64(inst))
		}
		if edge != nil {
			result = append(result, *edge)
		}
	}

	return result
}

func branchConfidenceARM64(inst arm64asm.Inst) Confidence {
	for _, arg := range inst.Args {
		if _, ok := arg.(arm64asm.Cond); ok {
			return ConfidenceLow
		}
	}
	return ConfidenceMedium
}

// extractTargetARM64 returns nil unless the instruction carries a PC-relative
// offset. B.cond places it after the condition.
func extractTargetARM64(inst arm64asm.Inst, sourceAddr uint64, cfType CallSiteType, confidence Confidence) *CallSiteEdge {
	for _, arg := range inst.Args {
		pcrel, ok := arg.(arm64asm.PCRel)
		if !ok {
			continue
		}
		return &CallSiteEdge{
			SourceAddr:  sourceAddr,
			TargetAddr:  sourceAddr + uint64(int64(pcrel)),
			Type:        cfType,
			AddressMode: AddressingModePCRelative,
			Confidence:  confidence,
		}
	}
	return nil
}
