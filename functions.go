package wsscan

import (
	"cmp"
	"fmt"
	"slices"
)

// DetectionType represents how a function was detected.
type DetectionType string

// Recognized detection types.
const (
	DetectionPrologueOnly DetectionType = "prologue-only"
	DetectionCallTarget   DetectionType = "call-target"
	DetectionJumpTarget   DetectionType = "jump-target"
	DetectionBoth         DetectionType = "both" // Prologue + called/jumped to
)

// FunctionCandidate represents a potential function detected through
// one or more signals (prologue detection, call site analysis, or both).
type FunctionCandidate struct {
	Address       uint64        `json:"address"`
	DetectionType DetectionType `json:"detection_type"`
	PrologueType  PrologueType  `json:"prologue_type,omitempty"`
	CalledFrom    []uint64      `json:"called_from,omitempty"`
	JumpedFrom    []uint64      `json:"jumped_from,omitempty"`
	Confidence    Confidence    `json:"confidence"`
}

func (c *FunctionCandidate) addSource(edge CallSiteEdge) {
	if edge.Type == CallSiteCall {
		c.CalledFrom = append(c.CalledFrom, edge.SourceAddr)
	} else {
		c.JumpedFrom = append(c.JumpedFrom, edge.SourceAddr)
	}
}

// DetectFunctions combines prologue detection and call site analysis to
// identify function entry points. Addresses found by both methods get high
// confidence. Results are sorted by address.
func DetectFunctions(code []byte, baseAddr uint64, arch Arch) ([]FunctionCandidate, error) {
	prologues, err := DetectPrologues(code, baseAddr, arch)
	if err != nil {
		return nil, fmt.Errorf("failed to detect prologues: %w", err)
	}
	edges, err := DetectCallSites(code, baseAddr, arch)
	if err != nil {
		return nil, fmt.Errorf("failed to detect call sites: %w", err)
	}

	candidates := make(map[uint64]*FunctionCandidate)
	for _, p := range prologues {
		candidates[p.Address] = &FunctionCandidate{
			Address:       p.Address,
			DetectionType: DetectionPrologueOnly,
			PrologueType:  p.Type,
			Confidence:    ConfidenceMedium,
		}
	}

	// Unconditional jumps count too: they are often tail calls.
	for _, edge := range edges {
		if edge.Confidence != ConfidenceHigh && edge.Confidence != ConfidenceMedium {
			continue
		}

		c, ok := candidates[edge.TargetAddr]
		switch {
		case ok && c.PrologueType != "":
			c.DetectionType = DetectionBoth
			c.Confidence = ConfidenceHigh
		case !ok:
			c = &FunctionCandidate{
				Address:       edge.TargetAddr,
				DetectionType: DetectionCallTarget,
				Confidence:    ConfidenceMedium,
			}
			if edge.Type == CallSiteJump {
				c.DetectionType = DetectionJumpTarget
			}
			candidates[edge.TargetAddr] = c
		}
		c.addSource(edge)
	}

	result := make([]FunctionCandidate, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, *c)
	}
	slices.SortFunc(result, func(a, b FunctionCandidate) int {
		return cmp.Compare(a.Address, b.Address)
	})
	return result, nil
}
