package wsscan

// CodeDetector decides whether a byte buffer resembles executable code.
type CodeDetector interface {
	IsCode(content []byte) bool
}

// DefaultMinCallTargets is the number of distinct in-buffer call targets that
// marks a buffer as code when no other evidence was found.
const DefaultMinCallTargets = 2

// PatternDetector is a CodeDetector backed by function detection: prologues
// and call sites are combined by DetectFunctions.
type PatternDetector struct {
	Arch Arch
	// MinCallTargets is the number of distinct called addresses inside the
	// buffer required when no function was confirmed. Zero disables the check.
	MinCallTargets int
}

// NewPatternDetector returns a detector for arch with default thresholds.
func NewPatternDetector(arch Arch) *PatternDetector {
	return &PatternDetector{
		Arch:           arch,
		MinCallTargets: DefaultMinCallTargets,
	}
}

// IsCode reports whether content holds a function candidate. A candidate
// counts when it has a strong prologue, when its prologue is also the target
// of a call or jump, or when enough calls land inside the buffer.
// Unsupported architectures never match.
func (d *PatternDetector) IsCode(content []byte) bool {
	if len(content) == 0 {
		return false
	}

	candidates, err := DetectFunctions(content, 0, d.Arch)
	if err != nil {
		return false
	}

	size := uint64(len(content))
	targets := 0
	for _, c := range candidates {
		if c.PrologueType.strong() {
			return true
		}
		if c.Address >= size {
			continue
		}
		switch c.DetectionType {
		case DetectionBoth:
			return true
		case DetectionCallTarget:
			targets++
			if d.MinCallTargets > 0 && targets >= d.MinCallTargets {
				return true
			}
		}
	}
	return false
}
