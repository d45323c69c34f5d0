package overlay

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"clipforge/config"
	"clipforge/media"
	"clipforge/transcription"
)

// SubtitleOverlay burns word-highlight captions into a rendered video.
// Each caption state (which word of which group is active) is rasterized
// once to a transparent PNG and composited with a time-gated overlay; a
// missing font falls back to an ASS subtitle burn.
type SubtitleOverlay struct {
	cfg       config.OverlayConfig
	workspace string
	logger    zerolog.Logger
}

// NewSubtitleOverlay wires an overlay writing temp images into
// workspaceDir.
func NewSubtitleOverlay(cfg config.OverlayConfig, workspaceDir string, logger zerolog.Logger) *SubtitleOverlay {
	return &SubtitleOverlay{
		cfg:       cfg,
		workspace: workspaceDir,
		logger:    logger.With().Str("component", "overlay").Logger(),
	}
}

// Burn writes videoPath plus captions to outputPath. A transcript with no
// words copies the video through unchanged.
func (o *SubtitleOverlay) Burn(videoPath string, transcript *transcription.Result, outputPath string) error {
	words := transcript.AllWords()
	if len(words) == 0 {
		o.logger.Warn().Msg("no words in transcript, passing video through")
		return copyFile(videoPath, outputPath)
	}

	info, err := media.Probe(videoPath)
	if err != nil {
		return fmt.Errorf("probe video: %w", err)
	}

	groups := ChunkWords(words, o.cfg.MaxWordsPerLine)

	if _, err := os.Stat(o.cfg.FontPath); err != nil {
		o.logger.Warn().Str("font", o.cfg.FontPath).Msg("font not found, using ASS fallback")
		return o.burnASS(videoPath, groups, outputPath)
	}

	states, cleanup, err := o.renderStates(groups, info.Width, info.Height)
	if err != nil {
		o.logger.Warn().Err(err).Msg("caption rasterization failed, using ASS fallback")
		return o.burnASS(videoPath, groups, outputPath)
	}
	defer cleanup()

	base := ffmpeg.Input(videoPath)
	layered := base.Video()
	for _, st := range states {
		img := ffmpeg.Input(st.path, ffmpeg.KwArgs{"loop": 1})
		layered = layered.Overlay(img, "", ffmpeg.KwArgs{
			"enable": fmt.Sprintf("between(t,%.3f,%.3f)", st.start, st.end),
		})
	}

	err = ffmpeg.Output([]*ffmpeg.Stream{layered, base.Audio()}, outputPath, ffmpeg.KwArgs{
		"c:v":      "libx264",
		"c:a":      "copy",
		"preset":   "fast",
		"shortest": "",
	}).OverWriteOutput().WithOutput(io.Discard, io.Discard).Run()
	if err != nil {
		return fmt.Errorf("burn captions: %w", err)
	}

	o.logger.Info().Str("output", outputPath).Int("groups", len(groups)).Msg("captions burned")
	return nil
}

type captionState struct {
	path  string
	start float64
	end   float64
}

// renderStates rasterizes one PNG per caption state. The plain group
// image spans the whole group window; a highlighted image per word is
// layered above it during that word's timing.
func (o *SubtitleOverlay) renderStates(groups []CaptionGroup, width, height int) ([]captionState, func(), error) {
	var states []captionState
	var files []string
	cleanup := func() {
		for _, f := range files {
			os.Remove(f)
		}
	}

	for gi, group := range groups {
		plain := filepath.Join(o.workspace, fmt.Sprintf("caption_%03d_plain.png", gi))
		if err := o.renderStateImage(group, -1, width, height, plain); err != nil {
			cleanup()
			return nil, nil, err
		}
		files = append(files, plain)
		states = append(states, captionState{path: plain, start: group.Start, end: group.End})

		for wi, word := range group.Words {
			path := filepath.Join(o.workspace, fmt.Sprintf("caption_%03d_%02d.png", gi, wi))
			if err := o.renderStateImage(group, wi, width, height, path); err != nil {
				cleanup()
				return nil, nil, err
			}
			files = append(files, path)
			states = append(states, captionState{path: path, start: word.Start, end: word.End})
		}
	}
	return states, cleanup, nil
}

// renderStateImage draws the caption line with word highlightIdx in the
// highlight color, or all words plain when highlightIdx is -1. The line
// is centered horizontally at the configured vertical position.
func (o *SubtitleOverlay) renderStateImage(group CaptionGroup, highlightIdx, width, height int, outPath string) error {
	dc := gg.NewContext(width, height)
	if err := dc.LoadFontFace(o.cfg.FontPath, o.cfg.FontSize); err != nil {
		return fmt.Errorf("load font: %w", err)
	}

	spaceW, _ := dc.MeasureString(" ")
	var totalW float64
	widths := make([]float64, len(group.Words))
	for i, word := range group.Words {
		w, _ := dc.MeasureString(word.Text)
		widths[i] = w
		totalW += w
		if i > 0 {
			totalW += spaceW
		}
	}

	x := (float64(width) - totalW) / 2
	y := float64(height) * o.cfg.VerticalPosition

	stroke := float64(o.cfg.StrokeWidth)
	for i, word := range group.Words {
		// Stroke via offset draws, then the fill on top.
		dc.SetHexColor("#000000")
		for dy := -stroke; dy <= stroke; dy++ {
			for dx := -stroke; dx <= stroke; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				dc.DrawString(word.Text, x+dx, y+dy)
			}
		}

		if i == highlightIdx {
			dc.SetHexColor(o.cfg.HighlightColor)
		} else {
			dc.SetHexColor(o.cfg.TextColor)
		}
		dc.DrawString(word.Text, x, y)
		x += widths[i] + spaceW
	}

	if err := dc.SavePNG(outPath); err != nil {
		return fmt.Errorf("save caption image: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy video: %w", err)
	}
	return nil
}
