package wsscan

import (
	"strconv"

	"github.com/rs/zerolog"
)

// Stage names reported in an Outcome.
const (
	StageMetadata   = "metadata"
	StageExecutable = "executable"
	StageLegitimacy = "legitimacy"
	StageArtefact   = "artefact"
)

// Scanner classifies single regions of a working set. A Scanner holds no
// per-region state and is safe for concurrent use as long as each goroutine
// classifies its own Region.
type Scanner struct {
	cfg    Config
	pe     PEScanner
	code   CodeDetector
	logger zerolog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used for debug and trace events.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger.With().Str("component", "wsscan").Logger()
	}
}

// WithPEScanner replaces the structural PE scanner.
func WithPEScanner(p PEScanner) Option {
	return func(s *Scanner) {
		s.pe = p
	}
}

// WithCodeDetector replaces the generic code-pattern detector.
func WithCodeDetector(d CodeDetector) Option {
	return func(s *Scanner) {
		s.code = d
	}
}

// NewScanner returns a Scanner for cfg. Collaborators default to
// HeaderScanner and a PatternDetector for cfg.Arch.
func NewScanner(cfg Config, opts ...Option) *Scanner {
	s := &Scanner{
		cfg:    cfg,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pe == nil {
		s.pe = NewHeaderScanner()
	}
	if s.code == nil {
		s.code = NewPatternDetector(cfg.Arch)
	}
	return s
}

// Config returns a copy of the scanner configuration.
func (s *Scanner) Config() Config {
	return s.cfg
}

// ScanRemote classifies r and returns its report, or nil when the region is
// benign or cannot be evaluated.
func (s *Scanner) ScanRemote(r Region) *Report {
	return s.Classify(r).Report
}

// Classify runs the region through the metadata, executability, legitimacy
// and artefact stages in order. The first stage that does not continue
// decides the outcome.
func (s *Scanner) Classify(r Region) Outcome {
	if out := s.ensureMetadata(r); out.Kind != OutcomeContinue {
		return s.logDrop(r, out)
	}
	md := r.Metadata()

	if !IsExecutable(md, s.cfg) {
		return s.logDrop(r, suppressed(StageExecutable, ReasonNotExecutable))
	}

	legit := CheckLegitimacy(md)
	if legit.Suppressed {
		return s.logDrop(r, suppressed(StageLegitimacy, legit.Reason))
	}

	s.logger.Debug().
		Str("start_va", hexAddr(md.StartVA)).
		Stringer("mapping", md.MappingType).
		Stringer("protection", md.Protection).
		Msg("Scanning executable area")

	defer r.Release()
	report, reason := s.ScanExecutableArea(r)
	if report == nil {
		return s.logDrop(r, suppressed(StageArtefact, reason))
	}
	report.stamp(md, legit.Doppel, r.Content())
	return reported(StageArtefact, report)
}

func (s *Scanner) ensureMetadata(r Region) Outcome {
	if r.IsMetadataFilled() {
		return continueOutcome()
	}
	if err := r.FillMetadata(); err != nil {
		s.logger.Trace().Err(err).Msg("Region metadata unavailable")
		return suppressed(StageMetadata, ReasonMetadataUnavailable)
	}
	return continueOutcome()
}

// loadLimiter is implemented by regions whose load size can be capped.
type loadLimiter interface {
	SetMaxLoadSize(n uint64)
}

// ScanExecutableArea loads the region content and looks for a PE structure,
// falling back to the code-pattern detector when DetectShellcode is set. The
// load is capped at MaxLoadSize for regions that accept a cap. The content
// stays loaded for the caller to inspect and release.
func (s *Scanner) ScanExecutableArea(r Region) (*Report, SuppressReason) {
	if l, ok := r.(loadLimiter); ok {
		l.SetMaxLoadSize(s.cfg.MaxLoadSize)
	}
	if err := r.LoadContent(); err != nil {
		s.logger.Trace().Err(err).Msg("Region content unreadable")
		return nil, ReasonContentUnreadable
	}
	md := r.Metadata()
	content := r.Content()

	if report := s.pe.ScanPE(md, content); report != nil {
		return report, ReasonNone
	}
	if !s.cfg.DetectShellcode {
		return nil, ReasonShellcodeDisabled
	}
	if !s.code.IsCode(content) {
		return nil, ReasonNoArtefact
	}
	return newShellcodeReport(md), ReasonNone
}

func (s *Scanner) logDrop(r Region, out Outcome) Outcome {
	if e := s.logger.Trace(); e.Enabled() {
		var va uint64
		if r.IsMetadataFilled() {
			va = r.Metadata().StartVA
		}
		e.Str("start_va", hexAddr(va)).
			Str("stage", out.Stage).
			Str("reason", string(out.Reason)).
			Msg("Region dropped")
	}
	return out
}

func hexAddr(addr uint64) string {
	return "0x" + strconv.FormatUint(addr, 16)
}
