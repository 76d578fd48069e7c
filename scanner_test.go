package wsscan_test

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/wsscan"
)

const (
	regionStart = uint64(0x7ff600000000)
	regionEnd   = regionStart + 0x10000
)

func newRegion(mapping wsscan.MappingType, prot wsscan.Protection, data []byte) *fakeRegion {
	return &fakeRegion{
		md: wsscan.Metadata{
			StartVA:     regionStart + 0x1000,
			RegionStart: regionStart,
			RegionEnd:   regionEnd,
			MappingType: mapping,
			Protection:  prot,
			DEPEnabled:  true,
		},
		filled: true,
		data:   data,
	}
}

func peReport() *wsscan.Report {
	return &wsscan.Report{
		Base:   regionStart + 0x1000,
		Size:   0x2000,
		Status: wsscan.StatusSuspicious,
		HasPE:  true,
	}
}

func TestScanRemote_ImageWithMappedNameIsSuppressed(t *testing.T) {
	contents := [][]byte{nil, codeBytes, buildPE64(0x2000, 0x2000, false)}

	for _, content := range contents {
		region := newRegion(wsscan.MappingImage, wsscan.PageExecuteRead, content)
		region.md.MappedName = `C:\Windows\System32\kernel32.dll`

		out := wsscan.NewScanner(wsscan.DefaultConfig()).Classify(region)
		assert.Equal(t, wsscan.OutcomeSuppressed, out.Kind)
		assert.Equal(t, wsscan.StageLegitimacy, out.Stage)
		assert.Equal(t, wsscan.ReasonImageBacked, out.Reason)
		assert.Nil(t, out.Report)
		assert.Zero(t, region.loads)
	}
}

func TestScanRemote_ImageWithoutMappedNameIsDoppel(t *testing.T) {
	t.Run("pe", func(t *testing.T) {
		region := newRegion(wsscan.MappingImage, wsscan.SectionMapExecute, []byte{0xcc})
		scanner := wsscan.NewScanner(wsscan.DefaultConfig(),
			wsscan.WithPEScanner(&stubPE{report: peReport()}))

		report := scanner.ScanRemote(region)
		require.NotNil(t, report)
		assert.True(t, report.IsDoppel)
		assert.True(t, report.HasPE)
	})

	t.Run("shellcode", func(t *testing.T) {
		region := newRegion(wsscan.MappingImage, wsscan.SectionMapExecute, []byte{0xcc})
		scanner := wsscan.NewScanner(wsscan.DefaultConfig(),
			wsscan.WithPEScanner(&stubPE{}),
			wsscan.WithCodeDetector(&stubCode{match: true}))

		report := scanner.ScanRemote(region)
		require.NotNil(t, report)
		assert.True(t, report.IsDoppel)
		assert.True(t, report.HasShellcode)
	})

	t.Run("nothing", func(t *testing.T) {
		region := newRegion(wsscan.MappingImage, wsscan.SectionMapExecute, []byte{0xcc})
		scanner := wsscan.NewScanner(wsscan.DefaultConfig(),
			wsscan.WithPEScanner(&stubPE{}),
			wsscan.WithCodeDetector(&stubCode{}))

		out := scanner.Classify(region)
		assert.Equal(t, wsscan.OutcomeSuppressed, out.Kind)
		assert.Equal(t, wsscan.ReasonNoArtefact, out.Reason)
	})
}

func TestScanRemote_RealMappingIsSuppressed(t *testing.T) {
	for _, prot := range []wsscan.Protection{
		wsscan.PageReadOnly,
		wsscan.PageExecute,
		wsscan.PageExecuteRead,
		wsscan.PageExecuteReadWrite,
		wsscan.PageExecuteWriteCopy,
	} {
		region := newRegion(wsscan.MappingMapped, prot, buildPE64(0x2000, 0x2000, false))
		region.md.MappedName = "/usr/lib/libfoo.so"
		region.md.RealMapping = true

		cfg := wsscan.DefaultConfig()
		cfg.ScanData = true
		assert.Nil(t, wsscan.NewScanner(cfg).ScanRemote(region), "protection=%s", prot)
	}
}

func TestScanRemote_PEIndependentOfShellcodeSetting(t *testing.T) {
	for _, detect := range []bool{true, false} {
		for _, mapping := range []wsscan.MappingType{wsscan.MappingPrivate, wsscan.MappingMapped} {
			region := newRegion(mapping, wsscan.PageExecuteReadWrite, buildPE64(0x3000, 0x2000, false))
			code := &stubCode{match: true}

			cfg := wsscan.DefaultConfig()
			cfg.DetectShellcode = detect
			report := wsscan.NewScanner(cfg, wsscan.WithCodeDetector(code)).ScanRemote(region)

			require.NotNil(t, report)
			assert.True(t, report.HasPE)
			assert.False(t, report.HasShellcode)
			assert.Equal(t, regionStart+0x1000, report.Base)
			assert.Equal(t, uint64(0x2000), report.Size)
			assert.Zero(t, code.calls, "code detector must not run after a PE match")
		}
	}
}

func TestScanRemote_ShellcodeDisabled(t *testing.T) {
	region := newRegion(wsscan.MappingPrivate, wsscan.PageExecuteReadWrite, codeBytes)
	code := &stubCode{match: true}

	cfg := wsscan.DefaultConfig()
	cfg.DetectShellcode = false
	out := wsscan.NewScanner(cfg, wsscan.WithCodeDetector(code)).Classify(region)

	assert.Equal(t, wsscan.OutcomeSuppressed, out.Kind)
	assert.Equal(t, wsscan.ReasonShellcodeDisabled, out.Reason)
	assert.Zero(t, code.calls)
}

func TestScanRemote_ShellcodeSpansRegion(t *testing.T) {
	region := newRegion(wsscan.MappingPrivate, wsscan.PageExecuteReadWrite, codeBytes)

	report := wsscan.NewScanner(wsscan.DefaultConfig()).ScanRemote(region)
	require.NotNil(t, report)
	assert.False(t, report.HasPE)
	assert.True(t, report.HasShellcode)
	assert.Equal(t, wsscan.StatusSuspicious, report.Status)
	assert.Equal(t, regionStart, report.Base)
	assert.Equal(t, regionEnd-regionStart, report.Size)
	assert.True(t, report.IsExecutable)
	assert.False(t, report.IsDoppel)
	assert.Equal(t, wsscan.PageExecuteReadWrite, report.Protection)
	assert.Equal(t, wsscan.MappingPrivate, report.MappingType)
	assert.NotZero(t, report.ContentDigest)
}

func TestScanRemote_NotExecutable(t *testing.T) {
	region := newRegion(wsscan.MappingPrivate, wsscan.PageReadWrite, codeBytes)

	out := wsscan.NewScanner(wsscan.DefaultConfig()).Classify(region)
	assert.Equal(t, wsscan.OutcomeSuppressed, out.Kind)
	assert.Equal(t, wsscan.StageExecutable, out.Stage)
	assert.Equal(t, wsscan.ReasonNotExecutable, out.Reason)
	assert.Zero(t, region.loads)
}

func TestScanRemote_ScanDataWithoutDEP(t *testing.T) {
	region := newRegion(wsscan.MappingPrivate, wsscan.PageReadWrite, codeBytes)
	region.md.DEPEnabled = false

	cfg := wsscan.DefaultConfig()
	cfg.ScanData = true
	report := wsscan.NewScanner(cfg).ScanRemote(region)
	require.NotNil(t, report)
	assert.True(t, report.IsExecutable)
	assert.Equal(t, wsscan.PageReadWrite, report.Protection)
}

func TestScanRemote_MetadataUnavailable(t *testing.T) {
	region := newRegion(wsscan.MappingPrivate, wsscan.PageExecuteReadWrite, codeBytes)
	region.filled = false
	region.fillErr = wsscan.ErrMetadataUnavailable

	out := wsscan.NewScanner(wsscan.DefaultConfig()).Classify(region)
	assert.Equal(t, wsscan.OutcomeSuppressed, out.Kind)
	assert.Equal(t, wsscan.StageMetadata, out.Stage)
	assert.Equal(t, wsscan.ReasonMetadataUnavailable, out.Reason)
	assert.Equal(t, 1, region.fills)
}

func TestScanRemote_FillsMetadataOnDemand(t *testing.T) {
	region := newRegion(wsscan.MappingPrivate, wsscan.PageExecuteReadWrite, codeBytes)
	region.filled = false

	report := wsscan.NewScanner(wsscan.DefaultConfig()).ScanRemote(region)
	require.NotNil(t, report)
	assert.Equal(t, 1, region.fills)
}

func TestScanRemote_ContentUnreadable(t *testing.T) {
	region := newRegion(wsscan.MappingPrivate, wsscan.PageExecuteReadWrite, codeBytes)
	region.loadErr = errUnreadable
	pe := &stubPE{report: peReport()}

	out := wsscan.NewScanner(wsscan.DefaultConfig(), wsscan.WithPEScanner(pe)).Classify(region)
	assert.Equal(t, wsscan.OutcomeSuppressed, out.Kind)
	assert.Equal(t, wsscan.StageArtefact, out.Stage)
	assert.Equal(t, wsscan.ReasonContentUnreadable, out.Reason)
	assert.Zero(t, pe.calls)
}

func TestScanRemote_ReleasesContent(t *testing.T) {
	region := newRegion(wsscan.MappingPrivate, wsscan.PageExecuteReadWrite, codeBytes)

	require.NotNil(t, wsscan.NewScanner(wsscan.DefaultConfig()).ScanRemote(region))
	assert.Equal(t, 1, region.releases)
	assert.Nil(t, region.Content())
}

// sizeRecorder serves codeBytes followed by zeros and records the largest
// request.
type sizeRecorder struct {
	mu      sync.Mutex
	largest int
}

func (s *sizeRecorder) ReadMemory(addr uint64, buf []byte) (int, error) {
	s.mu.Lock()
	s.largest = max(s.largest, len(buf))
	s.mu.Unlock()
	copy(buf, codeBytes)
	return len(buf), nil
}

func TestScanRemote_AppliesMaxLoadSize(t *testing.T) {
	reader := &sizeRecorder{}
	region := wsscan.NewPageRegion(reader, wsscan.Metadata{
		StartVA:     regionStart,
		RegionStart: regionStart,
		RegionEnd:   regionStart + 0x100000,
		MappingType: wsscan.MappingPrivate,
		Protection:  wsscan.PageExecuteReadWrite,
		DEPEnabled:  true,
	})

	cfg := wsscan.DefaultConfig()
	cfg.MaxLoadSize = 0x1000
	report := wsscan.NewScanner(cfg).ScanRemote(region)

	require.NotNil(t, report)
	assert.Equal(t, 0x1000, reader.largest)
	assert.Equal(t, uint64(0x100000), report.Size, "shellcode report spans the whole region")
}

func TestScanRemote_Deterministic(t *testing.T) {
	region := newRegion(wsscan.MappingImage, wsscan.PageExecuteRead, codeBytes)
	scanner := wsscan.NewScanner(wsscan.DefaultConfig())

	first := scanner.ScanRemote(region)
	second := scanner.ScanRemote(region)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
	assert.NotSame(t, first, second)
}

func TestScanRemote_Concurrent(t *testing.T) {
	scanner := wsscan.NewScanner(wsscan.DefaultConfig())
	mem := &memory{base: regionStart, data: append(append([]byte{}, codeBytes...), make([]byte, 0x1000)...)}

	var wg sync.WaitGroup
	reports := make([]*wsscan.Report, 16)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			region := wsscan.NewPageRegion(mem, wsscan.Metadata{
				StartVA:     regionStart,
				RegionStart: regionStart,
				RegionEnd:   regionStart + 0x1000,
				MappingType: wsscan.MappingPrivate,
				Protection:  wsscan.PageExecuteRead,
				DEPEnabled:  true,
			})
			reports[i] = scanner.ScanRemote(region)
		}(i)
	}
	wg.Wait()

	for _, r := range reports {
		require.NotNil(t, r)
		assert.Equal(t, *reports[0], *r)
	}
}

func TestScanner_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.TraceLevel)
	scanner := wsscan.NewScanner(wsscan.DefaultConfig(), wsscan.WithLogger(logger))

	scanner.ScanRemote(newRegion(wsscan.MappingPrivate, wsscan.PageExecuteReadWrite, codeBytes))
	scanner.ScanRemote(newRegion(wsscan.MappingPrivate, wsscan.PageReadOnly, codeBytes))

	output := buf.String()
	assert.Contains(t, output, "Scanning executable area")
	assert.Contains(t, output, `"reason":"not-executable"`)
	assert.Contains(t, output, `"component":"wsscan"`)
	assert.Equal(t, 2, strings.Count(output, "\n"))
}

func TestScanner_SilentByDefault(t *testing.T) {
	scanner := wsscan.NewScanner(wsscan.DefaultConfig())
	assert.Equal(t, wsscan.DefaultConfig(), scanner.Config())
	assert.Nil(t, scanner.ScanRemote(newRegion(wsscan.MappingPrivate, wsscan.PageReadOnly, nil)))
}
