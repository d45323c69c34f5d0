package overlay

import (
	"strings"

	"clipforge/transcription"
)

// CaptionGroup is a run of words displayed together as one subtitle line.
type CaptionGroup struct {
	Words []transcription.Word `json:"words"`
	Start float64              `json:"start"`
	End   float64              `json:"end"`
	Text  string               `json:"text"`
}

// ChunkWords splits words into fixed-size caption groups. The final group
// holds the remainder.
func ChunkWords(words []transcription.Word, maxWords int) []CaptionGroup {
	if maxWords <= 0 {
		maxWords = 3
	}

	var groups []CaptionGroup
	var chunk []transcription.Word
	for _, word := range words {
		chunk = append(chunk, word)
		if len(chunk) >= maxWords {
			groups = append(groups, newGroup(chunk))
			chunk = nil
		}
	}
	if len(chunk) > 0 {
		groups = append(groups, newGroup(chunk))
	}
	return groups
}

func newGroup(words []transcription.Word) CaptionGroup {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return CaptionGroup{
		Words: append([]transcription.Word(nil), words...),
		Start: words[0].Start,
		End:   words[len(words)-1].End,
		Text:  strings.Join(parts, " "),
	}
}
