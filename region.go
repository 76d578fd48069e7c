package wsscan

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrMetadataUnavailable is returned when region metadata cannot be filled.
	ErrMetadataUnavailable = errors.New("region metadata unavailable")
	// ErrUnreadable is returned when no byte of a region could be read.
	ErrUnreadable = errors.New("region content unreadable")
)

// Metadata describes one region of a process address space.
type Metadata struct {
	StartVA        uint64      `json:"start_va"`
	RegionStart    uint64      `json:"region_start"`
	RegionEnd      uint64      `json:"region_end"`
	MappingType    MappingType `json:"mapping_type"`
	Protection     Protection  `json:"protection"`
	InitialProtect Protection  `json:"initial_protect"`
	DEPEnabled     bool        `json:"dep_enabled"`
	// MappedName is the resolved file name of the mapping, empty when the
	// mapping has none.
	MappedName string `json:"mapped_name,omitempty"`
	// RealMapping is set when the mapping is backed by a file that still
	// exists on disk.
	RealMapping bool `json:"real_mapping"`
}

// Size returns the extent of the whole region.
func (m Metadata) Size() uint64 {
	if m.RegionEnd < m.RegionStart {
		return 0
	}
	return m.RegionEnd - m.RegionStart
}

// HasMappedName reports whether the region resolves to a mapped file name.
func (m Metadata) HasMappedName() bool {
	return m.MappedName != ""
}

// IsRealMapping reports whether the region is a file-backed mapping.
func (m Metadata) IsRealMapping() bool {
	return m.RealMapping
}

// Region is a lazily populated view of one memory region of a target process.
// Metadata must be filled before Metadata is read, and content must be loaded
// before Content is read.
type Region interface {
	IsMetadataFilled() bool
	// FillMetadata is idempotent and may be retried by the caller.
	FillMetadata() error
	Metadata() Metadata
	// LoadContent reads the region bytes from the target process.
	LoadContent() error
	Content() []byte
	// Release drops the loaded content.
	Release()
}

// MemoryReader reads memory of a target process. Implementations must be
// safe for concurrent use.
type MemoryReader interface {
	ReadMemory(addr uint64, buf []byte) (int, error)
}

// MetadataFiller resolves the metadata of the region starting at startVA.
type MetadataFiller func(startVA uint64) (Metadata, error)

// PageRegion is a Region backed by a MemoryReader.
type PageRegion struct {
	reader  MemoryReader
	filler  MetadataFiller
	maxLoad uint64

	mu      sync.Mutex
	md      Metadata
	filled  bool
	content []byte
}

// NewPageRegion returns a region whose metadata is already known.
func NewPageRegion(reader MemoryReader, md Metadata) *PageRegion {
	return &PageRegion{
		reader:  reader,
		md:      md,
		filled:  true,
		maxLoad: DefaultMaxLoadSize,
	}
}

// NewLazyPageRegion returns a region whose metadata is resolved on the first
// FillMetadata call.
func NewLazyPageRegion(reader MemoryReader, startVA uint64, filler MetadataFiller) *PageRegion {
	return &PageRegion{
		reader:  reader,
		filler:  filler,
		md:      Metadata{StartVA: startVA},
		maxLoad: DefaultMaxLoadSize,
	}
}

// SetMaxLoadSize caps the number of bytes LoadContent reads. Zero keeps the
// current cap.
func (p *PageRegion) SetMaxLoadSize(n uint64) {
	if n == 0 {
		return
	}
	p.mu.Lock()
	p.maxLoad = n
	p.mu.Unlock()
}

func (p *PageRegion) IsMetadataFilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filled
}

func (p *PageRegion) FillMetadata() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.filled {
		return nil
	}
	if p.filler == nil {
		return ErrMetadataUnavailable
	}
	md, err := p.filler(p.md.StartVA)
	if err != nil {
		return fmt.Errorf("%w: 0x%x: %v", ErrMetadataUnavailable, p.md.StartVA, err)
	}
	p.md = md
	p.filled = true
	return nil
}

func (p *PageRegion) Metadata() Metadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.md
}

func (p *PageRegion) LoadContent() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.filled {
		return ErrMetadataUnavailable
	}
	if p.content != nil {
		return nil
	}

	start := p.md.StartVA
	if start < p.md.RegionStart {
		start = p.md.RegionStart
	}
	if start >= p.md.RegionEnd {
		return fmt.Errorf("%w: empty extent at 0x%x", ErrUnreadable, start)
	}
	size := p.md.RegionEnd - start
	if size > p.maxLoad {
		size = p.maxLoad
	}

	buf := make([]byte, size)
	n, err := p.reader.ReadMemory(start, buf)
	if n <= 0 {
		if err == nil {
			err = fmt.Errorf("no bytes read")
		}
		return fmt.Errorf("%w: 0x%x: %v", ErrUnreadable, start, err)
	}
	p.content = buf[:n]
	return nil
}

func (p *PageRegion) Content() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content
}

func (p *PageRegion) Release() {
	p.mu.Lock()
	p.content = nil
	p.mu.Unlock()
}

// loadBase returns the address the loaded content starts at.
func loadBase(md Metadata) uint64 {
	if md.StartVA < md.RegionStart {
		return md.RegionStart
	}
	return md.StartVA
}
