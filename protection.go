package wsscan

import (
	"fmt"
	"strings"
)

// Protection is a page-protection bitset using the Win32 constant values.
type Protection uint32

// Generic page-protection flags.
const (
	PageNoAccess         Protection = 0x01
	PageReadOnly         Protection = 0x02
	PageReadWrite        Protection = 0x04
	PageWriteCopy        Protection = 0x08
	PageExecute          Protection = 0x10
	PageExecuteRead      Protection = 0x20
	PageExecuteReadWrite Protection = 0x40
	PageExecuteWriteCopy Protection = 0x80
	PageGuard            Protection = 0x100
	PageNoCache          Protection = 0x200
	PageWriteCombine     Protection = 0x400
)

// Section-map flags carried by image sections.
const (
	SectionMapExecute         Protection = 0x08
	SectionMapExecuteExplicit Protection = 0x20
)

const pageExecuteAny = PageExecute | PageExecuteRead | PageExecuteReadWrite | PageExecuteWriteCopy

var protectionNames = []struct {
	flag Protection
	name string
}{
	{PageNoAccess, "NOACCESS"},
	{PageReadOnly, "READONLY"},
	{PageReadWrite, "READWRITE"},
	{PageWriteCopy, "WRITECOPY"},
	{PageExecute, "EXECUTE"},
	{PageExecuteRead, "EXECUTE_READ"},
	{PageExecuteReadWrite, "EXECUTE_READWRITE"},
	{PageExecuteWriteCopy, "EXECUTE_WRITECOPY"},
	{PageGuard, "GUARD"},
	{PageNoCache, "NOCACHE"},
	{PageWriteCombine, "WRITECOMBINE"},
}

// Has reports whether any bit of flags is set in p.
func (p Protection) Has(flags Protection) bool {
	return p&flags != 0
}

func (p Protection) String() string {
	if p == 0 {
		return "0"
	}
	var parts []string
	rest := p
	for _, n := range protectionNames {
		if p&n.flag != 0 {
			parts = append(parts, n.name)
			rest &^= n.flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// MarshalText implements encoding.TextMarshaler.
func (p Protection) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// MappingType is the kind of backing of a memory region.
type MappingType uint32

// Mapping types, numerically equal to MEM_PRIVATE, MEM_MAPPED and MEM_IMAGE.
const (
	MappingPrivate MappingType = 0x20000
	MappingMapped  MappingType = 0x40000
	MappingImage   MappingType = 0x1000000
)

func (m MappingType) String() string {
	switch m {
	case MappingPrivate:
		return "private"
	case MappingMapped:
		return "mapped"
	case MappingImage:
		return "image"
	default:
		return fmt.Sprintf("unknown(0x%x)", uint32(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m MappingType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
