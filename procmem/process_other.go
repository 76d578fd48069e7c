//go:build !linux

package procmem

import (
	"errors"
	"fmt"

	"github.com/maxgio92/wsscan"
)

// ErrUnsupportedPlatform is returned by Open outside Linux.
var ErrUnsupportedPlatform = errors.New("process memory access is only supported on linux")

// Process is a read-only handle to the memory of a live process.
type Process struct {
	pid int
}

// Open returns ErrUnsupportedPlatform.
func Open(pid int) (*Process, error) {
	return nil, fmt.Errorf("process %d: %w", pid, ErrUnsupportedPlatform)
}

// PID returns the process id.
func (p *Process) PID() int {
	return p.pid
}

// DEPEnabled reports whether the process runs with non-executable pages.
func (p *Process) DEPEnabled() bool {
	return true
}

// Mappings returns ErrUnsupportedPlatform.
func (p *Process) Mappings() ([]Mapping, error) {
	return nil, ErrUnsupportedPlatform
}

// Regions returns ErrUnsupportedPlatform.
func (p *Process) Regions() ([]*wsscan.PageRegion, error) {
	return nil, ErrUnsupportedPlatform
}

// ReadMemory returns ErrUnsupportedPlatform.
func (p *Process) ReadMemory(addr uint64, buf []byte) (int, error) {
	return 0, ErrUnsupportedPlatform
}

// Close releases the handle.
func (p *Process) Close() error {
	return nil
}
