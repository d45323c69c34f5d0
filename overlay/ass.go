package overlay

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// burnASS renders word-highlight captions as an ASS subtitle track and
// burns it with the ass filter. Used when no TTF font is available for
// rasterized captions; libass supplies its own font fallback.
func (o *SubtitleOverlay) burnASS(videoPath string, groups []CaptionGroup, outputPath string) error {
	assPath := filepath.Join(o.workspace, "captions.ass")
	if err := o.writeASS(groups, assPath); err != nil {
		return err
	}
	defer os.Remove(assPath)

	// Escape for the filter expression parser.
	assArg := strings.ReplaceAll(filepath.ToSlash(assPath), ":", "\\:")

	base := ffmpeg.Input(videoPath)
	subbed := base.Video().Filter("ass", ffmpeg.Args{assArg})

	err := ffmpeg.Output([]*ffmpeg.Stream{subbed, base.Audio()}, outputPath, ffmpeg.KwArgs{
		"c:v":    "libx264",
		"c:a":    "copy",
		"preset": "fast",
	}).OverWriteOutput().WithOutput(io.Discard, io.Discard).Run()
	if err != nil {
		return fmt.Errorf("burn ASS subtitles: %w", err)
	}
	return nil
}

// writeASS emits one dialogue event per word state, restyling the active
// word inline.
func (o *SubtitleOverlay) writeASS(groups []CaptionGroup, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create ASS file: %w", err)
	}
	defer f.Close()

	marginV := int(1920 * (1 - o.cfg.VerticalPosition))

	fmt.Fprintln(f, "[Script Info]")
	fmt.Fprintln(f, "ScriptType: v4.00+")
	fmt.Fprintln(f, "PlayResX: 1080")
	fmt.Fprintln(f, "PlayResY: 1920")
	fmt.Fprintln(f)
	fmt.Fprintln(f, "[V4+ Styles]")
	fmt.Fprintln(f, "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding")
	fmt.Fprintf(f, "Style: Default,Arial,%.0f,%s,%s,&H00000000,&H00000000,-1,0,0,0,100,100,0,0,1,%d,0,2,40,40,%d,1\n",
		o.cfg.FontSize, assColor(o.cfg.TextColor), assColor(o.cfg.TextColor), o.cfg.StrokeWidth, marginV)
	fmt.Fprintln(f)
	fmt.Fprintln(f, "[Events]")
	fmt.Fprintln(f, "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text")

	highlight := assColor(o.cfg.HighlightColor)
	plain := assColor(o.cfg.TextColor)
	for _, group := range groups {
		for wi, word := range group.Words {
			parts := make([]string, len(group.Words))
			for i, w := range group.Words {
				if i == wi {
					parts[i] = fmt.Sprintf("{\\c%s&}%s{\\c%s&}", highlight, w.Text, plain)
				} else {
					parts[i] = w.Text
				}
			}

			start := word.Start
			end := word.End
			if wi < len(group.Words)-1 {
				end = group.Words[wi+1].Start
			}
			fmt.Fprintf(f, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
				formatASSTimestamp(start), formatASSTimestamp(end), strings.Join(parts, " "))
		}
	}
	return nil
}

// assColor converts "#RRGGBB" to ASS &HAABBGGRR (alpha 0).
func assColor(hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return "&H00FFFFFF"
	}
	r, g, b := hex[0:2], hex[2:4], hex[4:6]
	return fmt.Sprintf("&H00%s%s%s", strings.ToUpper(b), strings.ToUpper(g), strings.ToUpper(r))
}

// formatASSTimestamp converts seconds to h:mm:ss.cc.
func formatASSTimestamp(seconds float64) string {
	hours := int(seconds / 3600)
	minutes := int(seconds/60) % 60
	secs := int(seconds) % 60
	centis := int((seconds - float64(int(seconds))) * 100)
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centis)
}
