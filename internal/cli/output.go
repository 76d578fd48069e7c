package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/maxgio92/wsscan"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(s); f {
	case formatTable, formatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

func writeReports(w io.Writer, format outputFormat, reports []*wsscan.Report) error {
	if reports == nil {
		reports = []*wsscan.Report{}
	}
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case formatTable:
		return writeTable(w, reports)
	}
	return fmt.Errorf("unsupported format: %s", format)
}

func writeTable(w io.Writer, reports []*wsscan.Report) error {
	if len(reports) == 0 {
		_, err := fmt.Fprintln(w, "No suspicious regions found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BASE\tSIZE\tARTEFACT\tMAPPING\tPROTECTION\tDOPPEL\tNAME\tDIGEST")
	for _, r := range reports {
		name := r.MappedName
		if name == "" {
			name = "-"
		}
		_, _ = fmt.Fprintf(tw, "0x%x\t%d\t%s\t%s\t%s\t%t\t%s\t%016x\n",
			r.Base, r.Size, artefact(r), r.MappingType, r.Protection, r.IsDoppel, name, r.ContentDigest)
	}
	return tw.Flush()
}

func artefact(r *wsscan.Report) string {
	switch {
	case r.HasPE && r.PEInfo != nil && r.PEInfo.HeaderWiped:
		return "pe (wiped header)"
	case r.HasPE:
		return "pe"
	case r.HasShellcode:
		return "shellcode"
	}
	return "-"
}
