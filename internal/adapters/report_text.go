package adapters

import (
	"fmt"
	"io"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/mattn/go-runewidth"

	"pixi-outdated/internal/ports"
	"pixi-outdated/internal/types"
)

const commonSectionTitle = "All Platforms"

var reportColumns = []string{"NAME", "CURRENT", "LATEST", "KIND"}

// TextReportWriter renders a coalesced report as aligned tables.
type TextReportWriter struct {
	Out io.Writer
}

func NewTextReportWriter(out io.Writer) TextReportWriter {
	return TextReportWriter{Out: out}
}

func (w TextReportWriter) Write(report types.CoalescedReport) error {
	var b strings.Builder
	if !report.HasUpdates() {
		b.WriteString(noUpdatesLine(report.Unchecked))
	}
	if report.Coalesced() && len(report.Common) > 0 {
		writeSection(&b, commonSectionTitle, report.Common)
	}
	for _, platform := range report.Platforms {
		entries := report.PerPlatform[platform]
		if len(entries) == 0 {
			continue
		}
		writeSection(&b, "Platform: "+platform, entries)
	}
	if len(report.Unchecked) > 0 {
		writeUnchecked(&b, report.Unchecked)
	}
	if _, err := io.WriteString(w.Out, b.String()); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write report").
			WithCause(err)
	}
	return nil
}

// noUpdatesLine only claims everything is current when every package was
// actually checked.
func noUpdatesLine(unchecked []types.UncheckedEntry) string {
	if len(unchecked) == 0 {
		return "All packages are up to date.\n"
	}
	seen := map[types.PackageIdentity]struct{}{}
	for _, entry := range unchecked {
		seen[entry.Identity] = struct{}{}
	}
	noun := "packages"
	if len(seen) == 1 {
		noun = "package"
	}
	return fmt.Sprintf("No updates found among checked packages; %d %s could not be checked.\n", len(seen), noun)
}

func writeSection(b *strings.Builder, title string, entries []types.OutdatedEntry) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "%s (%d)\n", title, len(entries))
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.Identity.Name,
			entry.CurrentVersion,
			entry.LatestVersion,
			string(entry.Identity.Ecosystem),
		})
	}
	writeTable(b, reportColumns, rows)
}

func writeUnchecked(b *strings.Builder, entries []types.UncheckedEntry) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "Could not check (%d)\n", len(entries))
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.Identity.Name,
			entry.CurrentVersion,
			strings.Join(entry.Platforms, ","),
			entry.Reason,
		})
	}
	writeTable(b, []string{"NAME", "CURRENT", "PLATFORMS", "REASON"}, rows)
}

// writeTable pads every column but the last to its widest display cell.
func writeTable(b *strings.Builder, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = runewidth.StringWidth(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if width := runewidth.StringWidth(cell); width > widths[i] {
				widths[i] = width
			}
		}
	}
	writeRow(b, headers, widths)
	for _, row := range rows {
		writeRow(b, row, widths)
	}
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		if i == len(cells)-1 {
			b.WriteString(cell)
			break
		}
		b.WriteString(runewidth.FillRight(cell, widths[i]))
		b.WriteString("  ")
	}
	b.WriteString("\n")
}

var _ ports.ReportWriterPort = TextReportWriter{}
