package wsscan

// SuppressReason names why a region produced no report.
type SuppressReason string

// Reasons a region is dropped.
const (
	ReasonNone                SuppressReason = ""
	ReasonMetadataUnavailable SuppressReason = "metadata-unavailable"
	ReasonNotExecutable       SuppressReason = "not-executable"
	ReasonImageBacked         SuppressReason = "image-backed"
	ReasonFileMapped          SuppressReason = "file-mapped"
	ReasonContentUnreadable   SuppressReason = "content-unreadable"
	ReasonShellcodeDisabled   SuppressReason = "shellcode-disabled"
	ReasonNoArtefact          SuppressReason = "no-artefact"
)

// OutcomeKind tags the result of a pipeline stage.
type OutcomeKind int

// Outcome kinds.
const (
	OutcomeContinue OutcomeKind = iota
	OutcomeSuppressed
	OutcomeReport
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeContinue:
		return "continue"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeReport:
		return "report"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of classifying a region. Reason is set only
// for OutcomeSuppressed and Report only for OutcomeReport.
type Outcome struct {
	Kind   OutcomeKind
	Stage  string
	Reason SuppressReason
	Report *Report
}

func continueOutcome() Outcome {
	return Outcome{Kind: OutcomeContinue}
}

func suppressed(stage string, reason SuppressReason) Outcome {
	return Outcome{Kind: OutcomeSuppressed, Stage: stage, Reason: reason}
}

func reported(stage string, r *Report) Outcome {
	return Outcome{Kind: OutcomeReport, Stage: stage, Report: r}
}
