package overlay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"clipforge/config"
	"clipforge/transcription"
)

func words(texts ...string) []transcription.Word {
	out := make([]transcription.Word, len(texts))
	for i, t := range texts {
		out[i] = transcription.Word{Text: t, Start: float64(i), End: float64(i) + 0.8}
	}
	return out
}

func TestChunkWords(t *testing.T) {
	groups := ChunkWords(words("a", "b", "c", "d", "e"), 2)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].Text != "a b" || groups[1].Text != "c d" || groups[2].Text != "e" {
		t.Errorf("group texts wrong: %+v", groups)
	}

	// Group timing spans first word start to last word end.
	if groups[0].Start != 0 || groups[0].End != 1.8 {
		t.Errorf("group 0 span = (%v, %v), want (0, 1.8)", groups[0].Start, groups[0].End)
	}

	// Round trip: every input word appears exactly once, in order.
	var collected []string
	for _, g := range groups {
		for _, w := range g.Words {
			collected = append(collected, w.Text)
		}
	}
	if strings.Join(collected, " ") != "a b c d e" {
		t.Errorf("words lost or reordered: %v", collected)
	}
}

func TestChunkWordsEmpty(t *testing.T) {
	if got := ChunkWords(nil, 3); len(got) != 0 {
		t.Errorf("expected no groups for no words, got %+v", got)
	}
}

func TestChunkWordsExactMultiple(t *testing.T) {
	groups := ChunkWords(words("a", "b", "c", "d"), 2)
	if len(groups) != 2 {
		t.Errorf("expected 2 groups, got %d", len(groups))
	}
}

func TestBurnNoWordsCopiesThrough(t *testing.T) {
	workspace := t.TempDir()
	src := filepath.Join(workspace, "clean.mp4")
	if err := os.WriteFile(src, []byte("video-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	o := NewSubtitleOverlay(config.OverlayConfig{MaxWordsPerLine: 3}, workspace, zerolog.Nop())
	out := filepath.Join(workspace, "final.mp4")
	if err := o.Burn(src, &transcription.Result{}, out); err != nil {
		t.Fatalf("Burn: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil || string(raw) != "video-bytes" {
		t.Errorf("passthrough copy failed: %q, %v", raw, err)
	}
}

func TestWriteASS(t *testing.T) {
	workspace := t.TempDir()
	o := NewSubtitleOverlay(config.OverlayConfig{
		FontSize:         72,
		MaxWordsPerLine:  3,
		TextColor:        "#FFFFFF",
		HighlightColor:   "#FFD700",
		StrokeWidth:      3,
		VerticalPosition: 0.7,
	}, workspace, zerolog.Nop())

	groups := ChunkWords(words("hello", "world"), 3)
	assPath := filepath.Join(workspace, "captions.ass")
	if err := o.writeASS(groups, assPath); err != nil {
		t.Fatalf("writeASS: %v", err)
	}

	raw, err := os.ReadFile(assPath)
	if err != nil {
		t.Fatal(err)
	}
	content := string(raw)
	if !strings.Contains(content, "[Script Info]") || !strings.Contains(content, "[Events]") {
		t.Errorf("missing ASS sections")
	}
	// One dialogue event per word state.
	if got := strings.Count(content, "Dialogue:"); got != 2 {
		t.Errorf("dialogue events = %d, want 2", got)
	}
	// Highlight color in BGR order.
	if !strings.Contains(content, "&H0000D7FF") {
		t.Errorf("highlight color override missing:\n%s", content)
	}
}

func TestASSColor(t *testing.T) {
	tests := []struct {
		hex  string
		want string
	}{
		{"#FFFFFF", "&H00FFFFFF"},
		{"#FFD700", "&H0000D7FF"},
		{"#FF0000", "&H000000FF"},
		{"bogus", "&H00FFFFFF"},
	}
	for _, tt := range tests {
		if got := assColor(tt.hex); got != tt.want {
			t.Errorf("assColor(%q) = %q, want %q", tt.hex, got, tt.want)
		}
	}
}

func TestFormatASSTimestamp(t *testing.T) {
	tests := []struct {
		secs float64
		want string
	}{
		{0, "0:00:00.00"},
		{75.5, "0:01:15.50"},
		{3661.25, "1:01:01.25"},
	}
	for _, tt := range tests {
		if got := formatASSTimestamp(tt.secs); got != tt.want {
			t.Errorf("formatASSTimestamp(%v) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}
