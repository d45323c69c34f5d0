package vision

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"clipforge/config"
	"clipforge/media"
)

// frameStream abstracts media.RawStream for tests.
type frameStream interface {
	Next() ([]byte, error)
	Close() error
}

// SmartCropper scans each selected clip, tracks the dominant face and emits
// a stabilized per-frame crop rectangle sequence at the configured aspect
// ratio. Crop data is cached per clip id in the workspace to avoid
// rescanning on reruns.
type SmartCropper struct {
	cfg       config.VisionConfig
	detector  FaceDetector
	workspace string
	logger    zerolog.Logger

	// Seams for tests; production uses the media package.
	probe        func(path string) (*media.VideoInfo, error)
	openStream   func(path string, start, end float64, w, h int) (frameStream, error)
	detectScenes func(path string, start, end, threshold float64) ([]float64, error)
}

// NewSmartCropper wires a cropper with the given detection backend.
func NewSmartCropper(cfg config.VisionConfig, detector FaceDetector, workspaceDir string, logger zerolog.Logger) *SmartCropper {
	return &SmartCropper{
		cfg:       cfg,
		detector:  detector,
		workspace: workspaceDir,
		logger:    logger.With().Str("component", "cropper").Logger(),
		probe:     media.Probe,
		openStream: func(path string, start, end float64, w, h int) (frameStream, error) {
			return media.OpenRawStream(path, start, end, w, h, "gray")
		},
		detectScenes: media.DetectScenes,
	}
}

// ProcessClips generates crop data for each clip. Clips yielding zero
// frames are omitted. An unopenable video yields an empty result, logged
// rather than raised; per-frame read failures truncate that clip only.
func (c *SmartCropper) ProcessClips(videoPath string, clips []TimeRange, videoID string) []ClipCropData {
	info, err := c.probe(videoPath)
	if err != nil {
		c.logger.Error().Err(err).Str("video", videoPath).Msg("failed to open video")
		return nil
	}
	if info.Width <= 0 || info.Height <= 0 || info.FPS <= 0 {
		c.logger.Error().Str("video", videoPath).Msg("video has no usable video stream")
		return nil
	}

	c.logger.Info().
		Int("width", info.Width).
		Int("height", info.Height).
		Float64("fps", info.FPS).
		Int("clips", len(clips)).
		Msg("processing clips")

	var results []ClipCropData
	for _, clip := range clips {
		clipID := fmt.Sprintf("%s_%d_%d", videoID, int(clip.Start), int(clip.End))

		if cached, ok := c.loadCache(clipID); ok {
			c.logger.Info().Str("clip", clipID).Int("frames", len(cached.Frames)).Msg("crop data cache hit")
			results = append(results, cached)
			continue
		}

		data := c.processSingleClip(videoPath, clip, clipID, videoID, info)
		if len(data.Frames) == 0 {
			c.logger.Warn().Str("clip", clipID).Msg("clip yielded no frames, skipping")
			continue
		}
		results = append(results, data)
		c.saveCache(data)
	}
	return results
}

func (c *SmartCropper) processSingleClip(videoPath string, clip TimeRange, clipID, videoID string, info *media.VideoInfo) ClipCropData {
	data := ClipCropData{ClipID: clipID, VideoID: videoID}

	cuts := c.cutFrameSet(videoPath, clip, info.FPS)

	detW, detH := detectionSize(info.Width, info.Height, c.cfg.DetectionWidth)
	scaleBack := float64(info.Width) / float64(detW)

	stream, err := c.openStream(videoPath, clip.Start, clip.End, detW, detH)
	if err != nil {
		c.logger.Error().Err(err).Str("clip", clipID).Msg("failed to open frame stream")
		return data
	}
	defer stream.Close()

	startFrame := int(clip.Start * info.FPS)
	stabilizer := NewStabilizer(c.cfg.StabilizationFactor)

	for i := 0; ; i++ {
		pixels, err := stream.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				c.logger.Warn().Err(err).Str("clip", clipID).Int("frame", i).Msg("frame read failed, truncating clip")
			}
			break
		}

		frameIndex := startFrame + i
		if cuts[frameIndex] {
			stabilizer.Reset()
		}

		anchorX, anchorY := c.anchorFor(pixels, detW, detH, scaleBack, info)
		smoothX, _ := stabilizer.Update(anchorX, anchorY)

		crop := computeCrop(smoothX, info.Width, info.Height, c.cfg.VerticalCropRatio)
		crop.Timestamp = float64(frameIndex) / info.FPS
		crop.FrameIndex = frameIndex
		data.Frames = append(data.Frames, crop)
	}

	return data
}

// anchorFor picks the tracking anchor: the center of the largest detected
// face, or the default anchor (horizontal center, vertical upper third)
// when nothing is found. Area ties break on first detection.
func (c *SmartCropper) anchorFor(pixels []byte, detW, detH int, scaleBack float64, info *media.VideoInfo) (float64, float64) {
	boxes := c.detector.DetectFaces(pixels, detW, detH)
	if len(boxes) == 0 {
		return float64(info.Width) / 2, float64(info.Height) / 3
	}

	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.Area() > best.Area() {
			best = b
		}
	}

	cx := (float64(best.X) + float64(best.W)/2) * scaleBack
	cy := (float64(best.Y) + float64(best.H)/2) * scaleBack
	return cx, cy
}

// cutFrameSet maps detected scene-change timestamps to frame indices.
// Detection failures degrade to "no cuts": tracking still works, it just
// never resets mid-clip.
func (c *SmartCropper) cutFrameSet(videoPath string, clip TimeRange, fps float64) map[int]bool {
	cuts := make(map[int]bool)
	times, err := c.detectScenes(videoPath, clip.Start, clip.End, c.cfg.SceneThreshold)
	if err != nil {
		c.logger.Warn().Err(err).Msg("scene detection failed, continuing without cuts")
		return cuts
	}
	for _, t := range times {
		cuts[int(t*fps)] = true
	}
	return cuts
}

// computeCrop builds a full-height crop of the target aspect ratio centered
// on the smoothed x, clamped inside the frame.
func computeCrop(centerX float64, frameW, frameH int, ratio float64) FrameCrop {
	cropH := frameH
	cropW := int(math.Round(float64(frameH) * ratio))
	if cropW > frameW {
		cropW = frameW
	}

	cropX := int(math.Round(centerX)) - cropW/2
	if cropX < 0 {
		cropX = 0
	}
	if cropX > frameW-cropW {
		cropX = frameW - cropW
	}

	return FrameCrop{CropX: cropX, CropY: 0, CropW: cropW, CropH: cropH}
}

// detectionSize scales the source down to the detection width, preserving
// aspect; dimensions are forced even for the rawvideo pipe.
func detectionSize(srcW, srcH, targetW int) (int, int) {
	if targetW <= 0 || targetW > srcW {
		targetW = srcW
	}
	h := srcH * targetW / srcW
	if targetW%2 != 0 {
		targetW--
	}
	if h%2 != 0 {
		h--
	}
	return targetW, h
}

func (c *SmartCropper) cachePath(clipID string) string {
	return filepath.Join(c.workspace, fmt.Sprintf("crops_%s.json", clipID))
}

// loadCache treats any read or decode failure as a miss.
func (c *SmartCropper) loadCache(clipID string) (ClipCropData, bool) {
	var data ClipCropData
	raw, err := os.ReadFile(c.cachePath(clipID))
	if err != nil {
		return data, false
	}
	if err := json.Unmarshal(raw, &data); err != nil || len(data.Frames) == 0 {
		c.logger.Debug().Str("clip", clipID).Msg("discarding unreadable crop cache")
		return ClipCropData{}, false
	}
	return data, true
}

func (c *SmartCropper) saveCache(data ClipCropData) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(c.cachePath(data.ClipID), raw, 0o644); err != nil {
		c.logger.Warn().Err(err).Str("clip", data.ClipID).Msg("failed to write crop cache")
	}
}
