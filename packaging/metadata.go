// Package packaging prepares a rendered clip for publishing: titles,
// descriptions, tags and a thumbnail frame.
package packaging

import (
	"fmt"
	"strings"

	"clipforge/intelligence"
)

// Metadata is the publish-ready description of one clip.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"category_id"`
}

const maxTitleLen = 100

// GenerateMetadata builds upload metadata from the curated clip. When the
// clip has no title, the opening transcript words stand in.
func GenerateMetadata(clip intelligence.ViralClip, transcriptText string) Metadata {
	title := strings.TrimSpace(clip.Title)
	if title == "" {
		title = titleFromText(transcriptText)
	}
	if runes := []rune(title); len(runes) > maxTitleLen {
		title = string(runes[:maxTitleLen-3]) + "..."
	}

	var b strings.Builder
	b.WriteString(title)
	if clip.Reasoning != "" {
		b.WriteString("\n\n")
		b.WriteString(clip.Reasoning)
	}
	b.WriteString("\n\n#shorts")
	if clip.Category != "" {
		b.WriteString(" #" + strings.ToLower(strings.ReplaceAll(clip.Category, " ", "")))
	}

	tags := []string{"shorts", "viral", "clips"}
	if clip.Category != "" {
		tags = append(tags, strings.ToLower(clip.Category))
	}

	return Metadata{
		Title:       title,
		Description: b.String(),
		Tags:        tags,
		CategoryID:  "24",
	}
}

// titleFromText takes the first few words of the transcript as a title.
func titleFromText(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "Untitled Clip"
	}
	if len(fields) > 8 {
		fields = fields[:8]
	}
	return fmt.Sprintf("%s...", strings.Join(fields, " "))
}
