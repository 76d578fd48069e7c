package wsscan

// Legitimacy is the verdict of CheckLegitimacy.
type Legitimacy struct {
	// Suppressed is set for ordinary mappings that must not be reported.
	Suppressed bool
	Reason     SuppressReason
	// Doppel marks an image section without a mapped file name.
	Doppel bool
}

// CheckLegitimacy decides whether an executable region is a known-benign
// mapping. It must only be called for regions IsExecutable accepted.
func CheckLegitimacy(md Metadata) Legitimacy {
	switch md.MappingType {
	case MappingImage:
		if md.HasMappedName() {
			return Legitimacy{Suppressed: true, Reason: ReasonImageBacked}
		}
		return Legitimacy{Doppel: true}
	case MappingMapped:
		if md.IsRealMapping() {
			return Legitimacy{Suppressed: true, Reason: ReasonFileMapped}
		}
	}
	return Legitimacy{}
}
