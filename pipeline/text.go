// Package pipeline orchestrates the full clip generation flow across
// ingestion, transcription, curation, vision, retrieval, editing,
// overlay, packaging and distribution.
package pipeline

import (
	"strings"

	"clipforge/transcription"
)

// TextForRange joins the text of every segment that overlaps the
// [start, end) interval. Segments touching only at a boundary are
// excluded.
func TextForRange(transcript *transcription.Result, start, end float64) string {
	var parts []string
	for _, seg := range transcript.Segments {
		lo := start
		if seg.Start > lo {
			lo = seg.Start
		}
		hi := end
		if seg.End < hi {
			hi = seg.End
		}
		if lo < hi {
			parts = append(parts, strings.TrimSpace(seg.Text))
		}
	}
	return strings.Join(parts, " ")
}
