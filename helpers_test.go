package wsscan_test

import (
	"encoding/binary"
	"errors"

	"github.com/maxgio92/wsscan"
)

// fakeRegion is a Region whose collaborator behavior is scripted per test.
type fakeRegion struct {
	md      wsscan.Metadata
	filled  bool
	fillErr error
	data    []byte
	loadErr error

	content  []byte
	fills    int
	loads    int
	releases int
}

func (f *fakeRegion) IsMetadataFilled() bool { return f.filled }

func (f *fakeRegion) FillMetadata() error {
	f.fills++
	if f.fillErr != nil {
		return f.fillErr
	}
	f.filled = true
	return nil
}

func (f *fakeRegion) Metadata() wsscan.Metadata { return f.md }

func (f *fakeRegion) LoadContent() error {
	f.loads++
	if f.loadErr != nil {
		return f.loadErr
	}
	f.content = f.data
	return nil
}

func (f *fakeRegion) Content() []byte { return f.content }

func (f *fakeRegion) Release() {
	f.releases++
	f.content = nil
}

// stubPE returns report for every region when set.
type stubPE struct {
	report *wsscan.Report
	calls  int
}

func (s *stubPE) ScanPE(md wsscan.Metadata, content []byte) *wsscan.Report {
	s.calls++
	if s.report == nil {
		return nil
	}
	r := *s.report
	return &r
}

type stubCode struct {
	match bool
	calls int
}

func (s *stubCode) IsCode(content []byte) bool {
	s.calls++
	return s.match
}

var errUnreadable = errors.New("read failed")

// buildPE64 returns a minimal PE32+ image of size bytes with one section and
// the given SizeOfImage. When wipeDOS is set the MZ header is zeroed, leaving
// only the NT headers at 0x80.
func buildPE64(size int, sizeOfImage uint32, wipeDOS bool) []byte {
	const (
		lfanew       = 0x80
		fileHdrOff   = lfanew + 4
		optHdrOff    = fileHdrOff + 20
		optHdrSize   = 0xF0
		sectHdrOff   = optHdrOff + optHdrSize
		peMagic64    = 0x20b
		machineAMD64 = 0x8664
	)
	img := make([]byte, size)
	le := binary.LittleEndian

	if !wipeDOS {
		img[0], img[1] = 'M', 'Z'
		le.PutUint32(img[0x3c:], lfanew)
	}
	copy(img[lfanew:], []byte{'P', 'E', 0, 0})

	le.PutUint16(img[fileHdrOff:], machineAMD64)
	le.PutUint16(img[fileHdrOff+2:], 1)           // NumberOfSections
	le.PutUint16(img[fileHdrOff+16:], optHdrSize) // SizeOfOptionalHeader
	le.PutUint16(img[fileHdrOff+18:], 0x0022)     // EXECUTABLE_IMAGE | LARGE_ADDRESS_AWARE

	le.PutUint16(img[optHdrOff:], peMagic64)
	le.PutUint32(img[optHdrOff+32:], 0x1000)      // SectionAlignment
	le.PutUint32(img[optHdrOff+36:], 0x200)       // FileAlignment
	le.PutUint32(img[optHdrOff+56:], sizeOfImage) // SizeOfImage
	le.PutUint32(img[optHdrOff+60:], 0x400)       // SizeOfHeaders
	le.PutUint32(img[optHdrOff+108:], 16)         // NumberOfRvaAndSizes

	copy(img[sectHdrOff:], []byte(".text"))
	le.PutUint32(img[sectHdrOff+8:], 0x1000)      // VirtualSize
	le.PutUint32(img[sectHdrOff+12:], 0x1000)     // VirtualAddress
	le.PutUint32(img[sectHdrOff+36:], 0x60000020) // CODE | EXECUTE | READ

	return img
}

// codeBytes is x86-64 code with a classic prologue.
var codeBytes = []byte{0x90, 0x55, 0x48, 0x89, 0xe5, 0x48, 0x83, 0xec, 0x20, 0xc3}
