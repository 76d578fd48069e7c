//go:build linux

package procmem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/maxgio92/wsscan"
)

// readImpliesExec is the READ_IMPLIES_EXEC personality flag.
const readImpliesExec = 0x0400000

// Process is a read-only handle to the memory of a live process. It is safe
// for concurrent use.
type Process struct {
	pid     int
	procDir string
	dep     bool

	memOnce sync.Once
	mem     *os.File
	memErr  error
}

// Open returns a handle to the process pid.
func Open(pid int) (*Process, error) {
	procDir := filepath.Join("/proc", strconv.Itoa(pid))
	if _, err := os.Stat(procDir); err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}
	return &Process{
		pid:     pid,
		procDir: procDir,
		dep:     readDEP(procDir),
	}, nil
}

// readDEP reports whether non-executable pages are enforced for the process.
// It errs on the side of DEP being enabled when the personality is unreadable.
func readDEP(procDir string) bool {
	//nolint:gosec // G304: Path is from /proc filesystem for system information.
	data, err := os.ReadFile(filepath.Join(procDir, "personality"))
	if err != nil {
		return true
	}
	persona, err := strconv.ParseUint(strings.TrimSpace(string(data)), 16, 64)
	if err != nil {
		return true
	}
	return persona&readImpliesExec == 0
}

// PID returns the process id.
func (p *Process) PID() int {
	return p.pid
}

// DEPEnabled reports whether the process runs with non-executable pages.
func (p *Process) DEPEnabled() bool {
	return p.dep
}

// Mappings reads the current memory map of the process.
func (p *Process) Mappings() ([]Mapping, error) {
	//nolint:gosec // G304: Path is from /proc filesystem for system information.
	f, err := os.Open(filepath.Join(p.procDir, "maps"))
	if err != nil {
		return nil, fmt.Errorf("failed to open maps of process %d: %w", p.pid, err)
	}
	defer f.Close() // nolint:errcheck

	return ParseMaps(f)
}

// Regions returns one region per mapping of the process, with metadata
// already filled.
func (p *Process) Regions() ([]*wsscan.PageRegion, error) {
	mappings, err := p.Mappings()
	if err != nil {
		return nil, err
	}
	regions := make([]*wsscan.PageRegion, 0, len(mappings))
	for _, m := range mappings {
		regions = append(regions, wsscan.NewPageRegion(p, m.Metadata(p.dep)))
	}
	return regions, nil
}

// Region returns a region starting at addr whose metadata is resolved from
// the memory map when first needed.
func (p *Process) Region(addr uint64) *wsscan.PageRegion {
	return wsscan.NewLazyPageRegion(p, addr, p.lookup)
}

func (p *Process) lookup(addr uint64) (wsscan.Metadata, error) {
	mappings, err := p.Mappings()
	if err != nil {
		return wsscan.Metadata{}, err
	}
	for _, m := range mappings {
		if addr >= m.Start && addr < m.End {
			md := m.Metadata(p.dep)
			md.StartVA = addr
			return md, nil
		}
	}
	return wsscan.Metadata{}, fmt.Errorf("no mapping contains 0x%x", addr)
}

// ReadMemory reads len(buf) bytes at addr of the process memory. It returns
// the number of bytes read, which may be short at the end of a mapping.
func (p *Process) ReadMemory(addr uint64, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	local := []unix.Iovec{{Base: (*byte)(unsafe.Pointer(&buf[0]))}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}

	n, err := unix.ProcessVMReadv(p.pid, local, remote, 0)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, unix.ENOSYS) && !errors.Is(err, unix.EPERM) {
		return n, fmt.Errorf("process_vm_readv 0x%x: %w", addr, err)
	}
	return p.readMemFile(addr, buf)
}

func (p *Process) readMemFile(addr uint64, buf []byte) (int, error) {
	p.memOnce.Do(func() {
		//nolint:gosec // G304: Path is from /proc filesystem for system information.
		p.mem, p.memErr = os.Open(filepath.Join(p.procDir, "mem"))
	})
	if p.memErr != nil {
		return 0, fmt.Errorf("failed to open process memory: %w", p.memErr)
	}
	n, err := p.mem.ReadAt(buf, int64(addr))
	if n > 0 {
		return n, nil
	}
	return 0, fmt.Errorf("read 0x%x: %w", addr, err)
}

// Close releases the handle.
func (p *Process) Close() error {
	if p.mem != nil {
		return p.mem.Close()
	}
	return nil
}
