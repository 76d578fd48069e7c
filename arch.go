package wsscan

import "errors"

// Arch is an instruction set the code-pattern detector can decode.
type Arch string

// Supported architectures.
const (
	ArchAMD64 Arch = "amd64"
	ArchX86   Arch = "386"
	ArchARM64 Arch = "arm64"
)

// ErrUnsupportedArch is returned for architectures the detectors cannot decode.
var ErrUnsupportedArch = errors.New("unsupported architecture")

// Supported reports whether a is one of the decodable architectures.
func (a Arch) Supported() bool {
	switch a {
	case ArchAMD64, ArchX86, ArchARM64:
		return true
	}
	return false
}

// x86Mode returns the x86asm decoding mode for a, or 0 when a is not an x86
// architecture.
func (a Arch) x86Mode() int {
	switch a {
	case ArchAMD64:
		return 64
	case ArchX86:
		return 32
	}
	return 0
}
