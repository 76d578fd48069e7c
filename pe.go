package wsscan

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
)

// PEScanner looks for a PE structure in the loaded content of a region.
type PEScanner interface {
	// ScanPE returns a report describing the PE found in content, or nil.
	ScanPE(md Metadata, content []byte) *Report
}

const (
	peAlignment    = 0x1000
	dosLfanewOff   = 0x3c
	dosHeaderSize  = 0x40
	maxLfanew      = 0x400
	ntSearchWindow = 0x400
)

var ntSignature = []byte{'P', 'E', 0, 0}

// HeaderScanner finds PE images by their headers at page-aligned offsets of
// the loaded content. Images whose DOS header was wiped are recognized by
// their NT headers alone.
type HeaderScanner struct{}

// NewHeaderScanner returns the default PEScanner.
func NewHeaderScanner() *HeaderScanner {
	return &HeaderScanner{}
}

func (s *HeaderScanner) ScanPE(md Metadata, content []byte) *Report {
	base := loadBase(md)
	for off := 0; off+dosHeaderSize <= len(content); off += peAlignment {
		page := content[off:]

		info, imageSize, ok := parseImage(page)
		if !ok {
			continue
		}

		size := uint64(len(page))
		if imageSize != 0 && uint64(imageSize) < size {
			size = uint64(imageSize)
		}
		return &Report{
			Base:   base + uint64(off),
			Size:   size,
			Status: StatusSuspicious,
			HasPE:  true,
			PEInfo: info,
		}
	}
	return nil
}

// parseImage validates the PE headers at the start of page.
func parseImage(page []byte) (*PEInfo, uint32, bool) {
	if page[0] == 'M' && page[1] == 'Z' {
		lfanew := binary.LittleEndian.Uint32(page[dosLfanewOff:])
		if lfanew >= dosHeaderSize && lfanew <= maxLfanew &&
			int(lfanew)+len(ntSignature) <= len(page) &&
			bytes.Equal(page[lfanew:lfanew+4], ntSignature) {
			return openImage(page, false)
		}
	}

	ntOff := findNTHeaders(page)
	if ntOff < 0 {
		return nil, 0, false
	}
	// Rebuild a DOS header so debug/pe can follow e_lfanew.
	patched := make([]byte, len(page))
	copy(patched, page)
	patched[0], patched[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(patched[dosLfanewOff:], uint32(ntOff))
	return openImage(patched, true)
}

// findNTHeaders searches the first bytes of page for an NT signature
// followed by a known machine type.
func findNTHeaders(page []byte) int {
	limit := min(len(page), ntSearchWindow)
	for off := dosHeaderSize; off+len(ntSignature)+2 <= limit; off += 8 {
		if !bytes.Equal(page[off:off+4], ntSignature) {
			continue
		}
		switch binary.LittleEndian.Uint16(page[off+4:]) {
		case pe.IMAGE_FILE_MACHINE_I386, pe.IMAGE_FILE_MACHINE_AMD64, pe.IMAGE_FILE_MACHINE_ARM64:
			return off
		}
	}
	return -1
}

func openImage(image []byte, wiped bool) (*PEInfo, uint32, bool) {
	f, err := pe.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, 0, false
	}
	defer f.Close()

	info := &PEInfo{
		Machine:         f.Machine,
		Characteristics: f.Characteristics,
		Sections:        len(f.Sections),
		HeaderWiped:     wiped,
	}
	var imageSize uint32
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		imageSize = oh.SizeOfImage
	case *pe.OptionalHeader64:
		imageSize = oh.SizeOfImage
		info.Is64Bit = true
	default:
		// Object files carry no optional header and are not loaded images.
		return nil, 0, false
	}
	return info, imageSize, true
}
