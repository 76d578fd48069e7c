package procmem

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/maxgio92/wsscan"
)

const (
	deletedSuffix = " (deleted)"
	memfdPrefix   = "/memfd:"
)

// Mapping is one line of a /proc/<pid>/maps file.
type Mapping struct {
	Start    uint64
	End      uint64
	Perms    string
	Offset   uint64
	Inode    uint64
	Pathname string
}

// ParseMaps parses the content of a /proc/<pid>/maps file.
func ParseMaps(r io.Reader) ([]Mapping, error) {
	var mappings []Mapping

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m, err := parseMapsLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		mappings = append(mappings, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read maps: %w", err)
	}
	return mappings, nil
}

// Format: address perms offset dev inode pathname
func parseMapsLine(line string) (Mapping, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Mapping{}, fmt.Errorf("malformed maps entry %q", line)
	}

	start, end, ok := strings.Cut(fields[0], "-")
	if !ok {
		return Mapping{}, fmt.Errorf("malformed address range %q", fields[0])
	}
	var (
		m   Mapping
		err error
	)
	if m.Start, err = strconv.ParseUint(start, 16, 64); err != nil {
		return Mapping{}, fmt.Errorf("invalid start address: %w", err)
	}
	if m.End, err = strconv.ParseUint(end, 16, 64); err != nil {
		return Mapping{}, fmt.Errorf("invalid end address: %w", err)
	}
	if len(fields[1]) != 4 {
		return Mapping{}, fmt.Errorf("malformed perms %q", fields[1])
	}
	m.Perms = fields[1]
	if m.Offset, err = strconv.ParseUint(fields[2], 16, 64); err != nil {
		return Mapping{}, fmt.Errorf("invalid offset: %w", err)
	}
	if m.Inode, err = strconv.ParseUint(fields[4], 10, 64); err != nil {
		return Mapping{}, fmt.Errorf("invalid inode: %w", err)
	}
	if len(fields) > 5 {
		m.Pathname = strings.Join(fields[5:], " ")
	}
	return m, nil
}

// Protection translates the rwxp permissions to the wsscan protection flags.
func (m Mapping) Protection() wsscan.Protection {
	r, w, x := m.Perms[0] == 'r', m.Perms[1] == 'w', m.Perms[2] == 'x'
	switch {
	case x && w:
		return wsscan.PageExecuteReadWrite
	case x && r:
		return wsscan.PageExecuteRead
	case x:
		return wsscan.PageExecute
	case w:
		return wsscan.PageReadWrite
	case r:
		return wsscan.PageReadOnly
	default:
		return wsscan.PageNoAccess
	}
}

// Metadata returns the region metadata of m for a process whose DEP state
// is dep.
func (m Mapping) Metadata(dep bool) wsscan.Metadata {
	prot := m.Protection()
	md := wsscan.Metadata{
		StartVA:        m.Start,
		RegionStart:    m.Start,
		RegionEnd:      m.End,
		MappingType:    wsscan.MappingPrivate,
		Protection:     prot,
		InitialProtect: prot,
		DEPEnabled:     dep,
	}

	switch name := m.Pathname; {
	case name == "[vdso]" || name == "[vsyscall]":
		md.MappingType = wsscan.MappingImage
		md.MappedName = name
	case strings.HasPrefix(name, "/"):
		md.MappingType = wsscan.MappingMapped
		md.MappedName = strings.TrimSuffix(name, deletedSuffix)
		md.RealMapping = !strings.HasSuffix(name, deletedSuffix) &&
			!strings.HasPrefix(name, memfdPrefix)
	}
	return md
}
