package wsscan

// IsExecutable reports whether the region is executable, either by its page
// flags or, when cfg.ScanData is set, because DEP does not protect it.
// Both the current and the initial protection are consulted.
func IsExecutable(md Metadata, cfg Config) bool {
	if md.MappingType == MappingImage {
		const imageExec = SectionMapExecute | SectionMapExecuteExplicit
		if md.Protection.Has(imageExec) || md.InitialProtect.Has(imageExec) {
			return true
		}
	}
	if md.Protection.Has(pageExecuteAny) || md.InitialProtect.Has(pageExecuteAny) {
		return true
	}
	if cfg.ScanData {
		return IsPotentiallyExecutable(md)
	}
	return false
}

// IsPotentiallyExecutable reports whether a readable page can run code
// because the owning process runs without DEP.
func IsPotentiallyExecutable(md Metadata) bool {
	if md.DEPEnabled {
		return false
	}
	return md.Protection.Has(PageReadOnly | PageReadWrite)
}
