package wsscan

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// ScanStatus is the verdict carried by a Report.
type ScanStatus int

// Recognized scan statuses.
const (
	StatusNotSuspicious ScanStatus = iota
	StatusSuspicious
	StatusError
)

func (s ScanStatus) String() string {
	switch s {
	case StatusNotSuspicious:
		return "not-suspicious"
	case StatusSuspicious:
		return "suspicious"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ScanStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PEInfo describes the PE structure found in a region.
type PEInfo struct {
	Machine         uint16 `json:"machine"`
	Characteristics uint16 `json:"characteristics"`
	Sections        int    `json:"sections"`
	Is64Bit         bool   `json:"is_64bit"`
	// HeaderWiped is set when the NT headers were found without a DOS header.
	HeaderWiped bool `json:"header_wiped"`
}

// Report is the verdict for one suspicious region of a working set.
type Report struct {
	Base          uint64      `json:"base"`
	Size          uint64      `json:"size"`
	Status        ScanStatus  `json:"status"`
	HasPE         bool        `json:"has_pe"`
	HasShellcode  bool        `json:"has_shellcode"`
	IsExecutable  bool        `json:"is_executable"`
	IsDoppel      bool        `json:"is_doppel"`
	Protection    Protection  `json:"protection"`
	MappingType   MappingType `json:"mapping_type"`
	MappedName    string      `json:"mapped_name,omitempty"`
	PEInfo        *PEInfo     `json:"pe_info,omitempty"`
	ContentDigest uint64      `json:"content_digest"`
}

// newShellcodeReport returns a report spanning the whole region.
func newShellcodeReport(md Metadata) *Report {
	return &Report{
		Base:         md.RegionStart,
		Size:         md.Size(),
		Status:       StatusSuspicious,
		HasPE:        false,
		HasShellcode: true,
	}
}

// stamp sets the fields that do not depend on which inspection path produced
// the report.
func (r *Report) stamp(md Metadata, doppel bool, content []byte) {
	r.IsExecutable = true
	r.Protection = md.Protection
	r.IsDoppel = doppel
	r.MappingType = md.MappingType
	r.MappedName = md.MappedName
	r.ContentDigest = xxh3.Hash(content)
}
