package editing

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"clipforge/config"
	"clipforge/media"
	"clipforge/vision"
)

// Compositor renders final vertical videos from a RenderPlan. The face
// layer is produced by streaming raw frames through the per-frame crop
// rectangles, then composited over a blurred background with b-roll
// overlays in a single filter graph per clip.
type Compositor struct {
	cfg       config.EditingConfig
	workspace string
	logger    zerolog.Logger
}

// NewCompositor wires a compositor writing temp files into workspaceDir.
func NewCompositor(cfg config.EditingConfig, workspaceDir string, logger zerolog.Logger) *Compositor {
	return &Compositor{
		cfg:       cfg,
		workspace: workspaceDir,
		logger:    logger.With().Str("component", "compositor").Logger(),
	}
}

// Render composites every clip in the plan and concatenates them into
// plan.OutputPath. A plan with no usable crop data produces no file and
// no error.
func (c *Compositor) Render(plan *RenderPlan) error {
	var usable []vision.ClipCropData
	for _, cd := range plan.ClipCropData {
		if len(cd.Frames) > 0 {
			usable = append(usable, cd)
		}
	}
	if len(usable) == 0 {
		c.logger.Warn().Msg("no clips to render")
		return nil
	}

	info, err := media.Probe(plan.SourceVideoPath)
	if err != nil {
		return fmt.Errorf("probe source: %w", err)
	}

	var segments []string
	for _, cropData := range usable {
		segment, err := c.renderClip(plan, cropData, info)
		if err != nil {
			return fmt.Errorf("render clip %s: %w", cropData.ClipID, err)
		}
		segments = append(segments, segment)
	}

	if err := c.concatSegments(segments, plan.OutputPath); err != nil {
		return err
	}
	for _, s := range segments {
		os.Remove(s)
	}

	c.logger.Info().Str("output", plan.OutputPath).Int("clips", len(segments)).Msg("render complete")
	return nil
}

func (c *Compositor) renderClip(plan *RenderPlan, cropData vision.ClipCropData, info *media.VideoInfo) (string, error) {
	frames := cropData.Frames
	startT := frames[0].Timestamp
	endT := frames[len(frames)-1].Timestamp
	duration := endT - startT

	facePath := filepath.Join(c.workspace, fmt.Sprintf("face_%s.mp4", cropData.ClipID))
	if err := c.generateFaceTrack(plan.SourceVideoPath, cropData, info, facePath); err != nil {
		return "", fmt.Errorf("face track: %w", err)
	}
	defer os.Remove(facePath)

	segmentPath := filepath.Join(c.workspace, fmt.Sprintf("segment_%s.mp4", cropData.ClipID))
	if err := c.composeSegment(plan, facePath, startT, duration, segmentPath); err != nil {
		return "", err
	}
	return segmentPath, nil
}

// generateFaceTrack decodes the clip's frames, applies the per-frame crop
// and re-encodes the cropped stream. The crop size is constant across a
// clip; only the x offset moves.
func (c *Compositor) generateFaceTrack(sourcePath string, cropData vision.ClipCropData, info *media.VideoInfo, outPath string) error {
	frames := cropData.Frames
	cropW, cropH := frames[0].CropW, frames[0].CropH

	stream, err := media.OpenRawStream(sourcePath, frames[0].Timestamp, frames[len(frames)-1].Timestamp, info.Width, info.Height, "rgb24")
	if err != nil {
		return fmt.Errorf("open source stream: %w", err)
	}
	defer stream.Close()

	pr, pw := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		errc <- ffmpeg.Input("pipe:", ffmpeg.KwArgs{
			"format":    "rawvideo",
			"pix_fmt":   "rgb24",
			"s":         fmt.Sprintf("%dx%d", cropW, cropH),
			"framerate": info.FPS,
		}).Output(outPath, ffmpeg.KwArgs{
			"c:v":     c.cfg.VideoCodec,
			"preset":  c.cfg.Preset,
			"pix_fmt": "yuv420p",
		}).OverWriteOutput().WithOutput(io.Discard, io.Discard).WithInput(pr).Run()
	}()

	cropped := make([]byte, cropW*cropH*3)
	writeErr := func() error {
		defer pw.Close()
		for i := 0; i < len(frames); i++ {
			pixels, err := stream.Next()
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					return nil
				}
				return err
			}
			crop := frames[i]
			x := clamp(crop.CropX, 0, info.Width-cropW)
			y := clamp(crop.CropY, 0, info.Height-cropH)
			for row := 0; row < cropH; row++ {
				srcOff := ((y+row)*info.Width + x) * 3
				copy(cropped[row*cropW*3:(row+1)*cropW*3], pixels[srcOff:srcOff+cropW*3])
			}
			if _, err := pw.Write(cropped); err != nil {
				return err
			}
		}
		return nil
	}()
	encErr := <-errc

	if writeErr != nil && !errors.Is(writeErr, io.ErrClosedPipe) {
		return fmt.Errorf("crop frames: %w", writeErr)
	}
	if encErr != nil {
		return fmt.Errorf("encode face track: %w", encErr)
	}
	return nil
}

// composeSegment builds the layered filter graph for one clip: blurred
// full-frame background, centered face track, then b-roll overlays gated
// by enable windows. B-roll layers sit above the face layer.
func (c *Compositor) composeSegment(plan *RenderPlan, facePath string, startT, duration float64, outPath string) error {
	src := ffmpeg.Input(plan.SourceVideoPath, ffmpeg.KwArgs{
		"ss": fmt.Sprintf("%.3f", startT),
		"t":  fmt.Sprintf("%.3f", duration),
	})

	bg := src.Video().
		Filter("scale", ffmpeg.Args{fmt.Sprintf("-2:%d", c.cfg.OutputHeight)}).
		Filter("crop", ffmpeg.Args{fmt.Sprintf("%d:%d", c.cfg.OutputWidth, c.cfg.OutputHeight)}).
		Filter("boxblur", ffmpeg.Args{fmt.Sprintf("%d:5", c.cfg.BlurRadius)})

	face := ffmpeg.Input(facePath)
	layered := bg.Overlay(face, "", ffmpeg.KwArgs{"x": "(W-w)/2", "y": "(H-h)/2"})

	endT := startT + duration
	for _, br := range plan.BRollSegments {
		if max64(startT, br.Start) >= min64(endT, br.End) {
			continue
		}
		if _, err := os.Stat(br.VideoPath); err != nil {
			c.logger.Warn().Str("b_roll", br.VideoPath).Msg("b-roll file missing, skipping")
			continue
		}
		relStart := max64(0, br.Start-startT)
		relEnd := min64(duration, br.End-startT)

		overlay := ffmpeg.Input(br.VideoPath).Video().
			Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d:force_original_aspect_ratio=increase", c.cfg.OutputWidth, c.cfg.OutputHeight)}).
			Filter("crop", ffmpeg.Args{fmt.Sprintf("%d:%d", c.cfg.OutputWidth, c.cfg.OutputHeight)})
		layered = layered.Overlay(overlay, "", ffmpeg.KwArgs{
			"enable": fmt.Sprintf("between(t,%.3f,%.3f)", relStart, relEnd),
		})
	}

	err := ffmpeg.Output([]*ffmpeg.Stream{layered, src.Audio()}, outPath, ffmpeg.KwArgs{
		"c:v":      c.cfg.VideoCodec,
		"c:a":      c.cfg.AudioCodec,
		"preset":   c.cfg.Preset,
		"shortest": "",
	}).OverWriteOutput().WithOutput(io.Discard, io.Discard).Run()
	if err != nil {
		return fmt.Errorf("compose segment: %w", err)
	}
	return nil
}

// RenderStoryMode builds a narration-driven video: each b-roll fills its
// scheduled span, scaled to cover the frame, looped when too short, with
// the narration audio attached. The audio duration is authoritative.
func (c *Compositor) RenderStoryMode(plan *RenderPlan) error {
	if len(plan.BRollSegments) == 0 {
		c.logger.Warn().Msg("no b-roll segments, nothing to render")
		return nil
	}

	audioInfo, err := media.Probe(plan.SourceAudioPath)
	if err != nil {
		return fmt.Errorf("probe narration: %w", err)
	}

	var pieces []string
	for i, br := range plan.BRollSegments {
		d := br.End - br.Start
		if d <= 0 {
			continue
		}
		piecePath := filepath.Join(c.workspace, fmt.Sprintf("story_piece_%03d.mp4", i))
		if err := c.renderStoryPiece(br.VideoPath, d, piecePath); err != nil {
			return fmt.Errorf("story piece %d: %w", i, err)
		}
		pieces = append(pieces, piecePath)
	}
	if len(pieces) == 0 {
		c.logger.Warn().Msg("no usable b-roll pieces")
		return nil
	}
	defer func() {
		for _, p := range pieces {
			os.Remove(p)
		}
	}()

	listPath, err := c.writeConcatList(pieces)
	if err != nil {
		return err
	}
	defer os.Remove(listPath)

	video := ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0})
	audio := ffmpeg.Input(plan.SourceAudioPath)
	err = ffmpeg.Output([]*ffmpeg.Stream{video.Video(), audio.Audio()}, plan.OutputPath, ffmpeg.KwArgs{
		"c:v": "copy",
		"c:a": c.cfg.AudioCodec,
		"t":   fmt.Sprintf("%.3f", audioInfo.Duration),
	}).OverWriteOutput().WithOutput(io.Discard, io.Discard).Run()
	if err != nil {
		return fmt.Errorf("assemble story video: %w", err)
	}

	c.logger.Info().Str("output", plan.OutputPath).Int("scenes", len(pieces)).Msg("story render complete")
	return nil
}

// renderStoryPiece encodes one scene: b-roll scaled to cover the output
// frame, center cropped, looped to fill the scene duration.
func (c *Compositor) renderStoryPiece(videoPath string, duration float64, outPath string) error {
	piece := ffmpeg.Input(videoPath, ffmpeg.KwArgs{"stream_loop": -1}).Video().
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d:force_original_aspect_ratio=increase", c.cfg.OutputWidth, c.cfg.OutputHeight)}).
		Filter("crop", ffmpeg.Args{fmt.Sprintf("%d:%d", c.cfg.OutputWidth, c.cfg.OutputHeight)}).
		Filter("fps", ffmpeg.Args{fmt.Sprintf("%g", c.cfg.OutputFPS)})

	err := ffmpeg.Output([]*ffmpeg.Stream{piece}, outPath, ffmpeg.KwArgs{
		"t":       fmt.Sprintf("%.3f", duration),
		"c:v":     c.cfg.VideoCodec,
		"preset":  c.cfg.Preset,
		"pix_fmt": "yuv420p",
		"an":      "",
	}).OverWriteOutput().WithOutput(io.Discard, io.Discard).Run()
	if err != nil {
		return fmt.Errorf("encode piece: %w", err)
	}
	return nil
}

func (c *Compositor) concatSegments(segments []string, outputPath string) error {
	listPath, err := c.writeConcatList(segments)
	if err != nil {
		return err
	}
	defer os.Remove(listPath)

	err = ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0}).
		Output(outputPath, ffmpeg.KwArgs{"c": "copy"}).
		OverWriteOutput().WithOutput(io.Discard, io.Discard).Run()
	if err != nil {
		return fmt.Errorf("concat segments: %w", err)
	}
	return nil
}

func (c *Compositor) writeConcatList(files []string) (string, error) {
	listPath := filepath.Join(c.workspace, "concat_list.txt")
	f, err := os.Create(listPath)
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}
	defer f.Close()
	for _, path := range files {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		fmt.Fprintf(f, "file '%s'\n", abs)
	}
	return listPath, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
