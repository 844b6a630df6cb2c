package adapters

import (
	"encoding/json"
	"io"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/iancoleman/orderedmap"

	"pixi-outdated/internal/ports"
	"pixi-outdated/internal/types"
)

type jsonEntry struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Channel  string `json:"channel,omitempty"`
	Current  string `json:"current_version"`
	Latest   string `json:"latest_version"`
	Explicit bool   `json:"is_explicit"`
}

type jsonUnchecked struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	Channel   string   `json:"channel,omitempty"`
	Current   string   `json:"current_version"`
	Platforms []string `json:"platforms"`
	Reason    string   `json:"reason"`
}

// JSONReportWriter emits the report as one JSON document. Keys of
// per_platform follow the requested platform order.
type JSONReportWriter struct {
	Out io.Writer
}

func NewJSONReportWriter(out io.Writer) JSONReportWriter {
	return JSONReportWriter{Out: out}
}

func (w JSONReportWriter) Write(report types.CoalescedReport) error {
	doc := orderedmap.New()
	platforms := report.Platforms
	if platforms == nil {
		platforms = []string{}
	}
	doc.Set("platforms", platforms)
	if report.Coalesced() {
		doc.Set("common", toJSONEntries(report.Common))
	}
	perPlatform := orderedmap.New()
	for _, platform := range report.Platforms {
		perPlatform.Set(platform, toJSONEntries(report.PerPlatform[platform]))
	}
	doc.Set("per_platform", perPlatform)
	unchecked := make([]jsonUnchecked, 0, len(report.Unchecked))
	for _, entry := range report.Unchecked {
		unchecked = append(unchecked, jsonUnchecked{
			Name:      entry.Identity.Name,
			Kind:      string(entry.Identity.Ecosystem),
			Channel:   entry.Identity.Channel,
			Current:   entry.CurrentVersion,
			Platforms: entry.Platforms,
			Reason:    entry.Reason,
		})
	}
	doc.Set("unchecked", unchecked)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode report").
			WithCause(err)
	}
	data = append(data, '\n')
	if _, err := w.Out.Write(data); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write report").
			WithCause(err)
	}
	return nil
}

func toJSONEntries(entries []types.OutdatedEntry) []jsonEntry {
	out := make([]jsonEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, jsonEntry{
			Name:     entry.Identity.Name,
			Kind:     string(entry.Identity.Ecosystem),
			Channel:  entry.Identity.Channel,
			Current:  entry.CurrentVersion,
			Latest:   entry.LatestVersion,
			Explicit: entry.Explicit,
		})
	}
	return out
}

var _ ports.ReportWriterPort = JSONReportWriter{}
