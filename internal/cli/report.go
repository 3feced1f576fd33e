// Package cli formats folio's command output.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hyperjump/folio/internal/models"
)

// OutputFormat is the format for report output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (want text or json)", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteBuildReport writes a build summary to w in the given format.
func WriteBuildReport(w io.Writer, report *models.BuildReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	fmt.Fprintf(w, "Built %d files in %dms (%d written, %d unchanged)\n",
		len(report.Pages), report.Duration, report.Written, len(report.Pages)-report.Written)
	fmt.Fprintf(w, "  posts: %d  projects: %d  galleries: %d  images: %d\n",
		report.Posts, report.Projects, report.Galleries, report.Assets)
	if len(report.Removed) > 0 {
		fmt.Fprintf(w, "Removed %d stale paths:\n", len(report.Removed))
		for _, r := range report.Removed {
			fmt.Fprintf(w, "  - %s\n", r)
		}
	}
	if report.Warnings > 0 {
		fmt.Fprintf(w, "%d warnings (see log)\n", report.Warnings)
	}
	return nil
}

// WriteImportReport writes a photo import summary to w in the given format.
func WriteImportReport(w io.Writer, report *models.ImportReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	if len(report.Files) == 0 {
		fmt.Fprintln(w, "No JPEG files found; nothing imported.")
		return nil
	}
	if report.Resizer == "" {
		fmt.Fprintln(w, "No image converter found; copying photos unresized.")
	}
	for i, f := range report.Files {
		prefix := fmt.Sprintf("[%d/%d] %s", i+1, len(report.Files), f.Name)
		if f.Error != "" {
			fmt.Fprintf(w, "%s: FAILED: %s\n", prefix, f.Error)
			continue
		}
		fmt.Fprintf(w, "%s: %s -> %s\n", prefix, humanize.Bytes(uint64(f.SourceBytes)), humanize.Bytes(uint64(f.DestBytes)))
	}
	fmt.Fprintf(w, "Imported %d of %d photos into %s (%s -> %s)\n",
		report.Imported, len(report.Files), report.Destination,
		humanize.Bytes(uint64(report.TotalSourceBytes())), humanize.Bytes(uint64(report.TotalDestBytes())))
	if report.Failed > 0 {
		fmt.Fprintf(w, "%d failed\n", report.Failed)
	}
	return nil
}

// Status is what `folio status` reports.
type Status struct {
	OutputDir   string                `json:"output_dir"`
	OutputFiles int                   `json:"output_files"`
	OutputBytes int64                 `json:"output_bytes"`
	Builds      int64                 `json:"builds"`
	Recent      []*models.BuildRecord `json:"recent,omitempty"`
}

// WriteStatus writes the build status to w in the given format. now is used for
// relative times.
func WriteStatus(w io.Writer, st *Status, format OutputFormat, now time.Time) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Output: %s (%d files, %s)\n", st.OutputDir, st.OutputFiles, humanize.Bytes(uint64(st.OutputBytes)))
	if st.Builds == 0 {
		fmt.Fprintln(w, "No builds recorded.")
		return nil
	}
	fmt.Fprintf(w, "Builds recorded: %d\n", st.Builds)
	for _, b := range st.Recent {
		fmt.Fprintf(w, "  %s  %s  %d files, %d removed, %d warnings, %dms\n",
			b.ID[:min(8, len(b.ID))], humanize.RelTime(b.StartedAt, now, "ago", "from now"),
			b.Pages, b.Removed, b.Warnings, b.Duration)
	}
	return nil
}
