package vision

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"clipforge/config"
	"clipforge/media"
)

type fakeDetector struct {
	boxes [][]Box
	calls int
}

func (f *fakeDetector) DetectFaces(pixels []byte, width, height int) []Box {
	var out []Box
	if f.calls < len(f.boxes) {
		out = f.boxes[f.calls]
	}
	f.calls++
	return out
}

type fakeStream struct {
	frames int
	served int
	width  int
	height int
}

func (f *fakeStream) Next() ([]byte, error) {
	if f.served >= f.frames {
		return nil, io.EOF
	}
	f.served++
	return make([]byte, f.width*f.height), nil
}

func (f *fakeStream) Close() error { return nil }

func testCropper(t *testing.T, detector FaceDetector, frames int, info *media.VideoInfo) *SmartCropper {
	t.Helper()
	cfg := config.VisionConfig{
		DetectionWidth:      640,
		StabilizationFactor: 0.1,
		VerticalCropRatio:   9.0 / 16.0,
		SceneThreshold:      0.4,
	}
	c := NewSmartCropper(cfg, detector, t.TempDir(), zerolog.Nop())
	c.probe = func(string) (*media.VideoInfo, error) { return info, nil }
	c.openStream = func(path string, start, end float64, w, h int) (frameStream, error) {
		return &fakeStream{frames: frames, width: w, height: h}, nil
	}
	c.detectScenes = func(string, float64, float64, float64) ([]float64, error) {
		return nil, nil
	}
	return c
}

func TestProcessClipsCropInvariants(t *testing.T) {
	info := &media.VideoInfo{Width: 1920, Height: 1080, FPS: 30, Duration: 60}

	// Faces near the left edge, the center and the right edge.
	det := &fakeDetector{boxes: [][]Box{
		{{X: 0, Y: 100, W: 80, H: 80, Score: 10}},
		{{X: 280, Y: 100, W: 80, H: 80, Score: 10}},
		{{X: 600, Y: 100, W: 80, H: 80, Score: 10}},
	}}
	c := testCropper(t, det, 3, info)

	results := c.ProcessClips("in.mp4", []TimeRange{{Start: 2, End: 2.1}}, "vid1")
	if len(results) != 1 {
		t.Fatalf("expected 1 clip result, got %d", len(results))
	}
	data := results[0]
	if data.ClipID != "vid1_2_2" {
		t.Errorf("unexpected clip id %q", data.ClipID)
	}
	if len(data.Frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(data.Frames))
	}

	wantW := int(math.Round(1080 * 9.0 / 16.0))
	for i, fr := range data.Frames {
		if fr.CropH != 1080 {
			t.Errorf("frame %d: crop height %d, want full height", i, fr.CropH)
		}
		if fr.CropW != wantW {
			t.Errorf("frame %d: crop width %d, want %d", i, fr.CropW, wantW)
		}
		if fr.CropX < 0 || fr.CropX+fr.CropW > 1920 {
			t.Errorf("frame %d: crop x %d out of bounds", i, fr.CropX)
		}
		if fr.CropY != 0 {
			t.Errorf("frame %d: crop y %d, want 0", i, fr.CropY)
		}
		wantIdx := int(2.0*30) + i
		if fr.FrameIndex != wantIdx {
			t.Errorf("frame %d: index %d, want %d", i, fr.FrameIndex, wantIdx)
		}
	}
}

func TestProcessClipsFallbackAnchor(t *testing.T) {
	info := &media.VideoInfo{Width: 1920, Height: 1080, FPS: 30, Duration: 60}
	c := testCropper(t, &fakeDetector{}, 1, info)

	results := c.ProcessClips("in.mp4", []TimeRange{{Start: 0, End: 0.05}}, "vid1")
	if len(results) != 1 || len(results[0].Frames) != 1 {
		t.Fatalf("expected a single frame result, got %+v", results)
	}

	// No faces: crop centers on frame midpoint.
	fr := results[0].Frames[0]
	wantX := 1920/2 - fr.CropW/2
	if fr.CropX != wantX {
		t.Errorf("fallback crop x = %d, want %d", fr.CropX, wantX)
	}
}

func TestProcessClipsOmitsEmptyClips(t *testing.T) {
	info := &media.VideoInfo{Width: 1920, Height: 1080, FPS: 30, Duration: 60}
	c := testCropper(t, &fakeDetector{}, 0, info)

	results := c.ProcessClips("in.mp4", []TimeRange{{Start: 0, End: 1}}, "vid1")
	if len(results) != 0 {
		t.Errorf("zero-frame clip should be omitted, got %d results", len(results))
	}
}

func TestProcessClipsUnreadableVideo(t *testing.T) {
	c := testCropper(t, &fakeDetector{}, 0, nil)
	c.probe = func(string) (*media.VideoInfo, error) { return nil, os.ErrNotExist }

	results := c.ProcessClips("missing.mp4", []TimeRange{{Start: 0, End: 1}}, "vid1")
	if results != nil {
		t.Errorf("unreadable video should yield nil, got %+v", results)
	}
}

func TestProcessClipsCacheRoundTrip(t *testing.T) {
	info := &media.VideoInfo{Width: 1920, Height: 1080, FPS: 30, Duration: 60}
	c := testCropper(t, &fakeDetector{}, 2, info)

	first := c.ProcessClips("in.mp4", []TimeRange{{Start: 1, End: 1.1}}, "vid1")
	if len(first) != 1 {
		t.Fatalf("expected 1 result, got %d", len(first))
	}
	if _, err := os.Stat(filepath.Join(c.workspace, "crops_vid1_1_1.json")); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	// Second run must not touch the stream.
	c.openStream = func(string, float64, float64, int, int) (frameStream, error) {
		t.Fatal("stream opened despite cache")
		return nil, nil
	}
	second := c.ProcessClips("in.mp4", []TimeRange{{Start: 1, End: 1.1}}, "vid1")
	if len(second) != 1 || len(second[0].Frames) != len(first[0].Frames) {
		t.Fatalf("cache round trip mismatch: %+v", second)
	}
}

func TestComputeCropClamping(t *testing.T) {
	tests := []struct {
		name    string
		centerX float64
		wantX   int
	}{
		{"far left", -500, 0},
		{"far right", 5000, 1920 - 608},
		{"centered", 960, 960 - 608/2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crop := computeCrop(tt.centerX, 1920, 1080, 9.0/16.0)
			if crop.CropX != tt.wantX {
				t.Errorf("crop x = %d, want %d", crop.CropX, tt.wantX)
			}
		})
	}
}

func TestDetectionSize(t *testing.T) {
	w, h := detectionSize(1920, 1080, 640)
	if w != 640 || h != 360 {
		t.Errorf("got %dx%d, want 640x360", w, h)
	}
	w, h = detectionSize(320, 240, 640)
	if w != 320 || h != 240 {
		t.Errorf("small source should not upscale, got %dx%d", w, h)
	}
}
