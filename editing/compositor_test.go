package editing

import (
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"clipforge/config"
	"clipforge/media"
	"clipforge/vision"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
}

func testEditingConfig() config.EditingConfig {
	return config.EditingConfig{
		OutputWidth:  1080,
		OutputHeight: 1920,
		OutputFPS:    30,
		BlurRadius:   20,
		VideoCodec:   "libx264",
		AudioCodec:   "aac",
		Preset:       "ultrafast",
	}
}

func TestRenderEmptyPlan(t *testing.T) {
	workspace := t.TempDir()
	c := NewCompositor(testEditingConfig(), workspace, zerolog.Nop())

	out := filepath.Join(workspace, "final.mp4")
	err := c.Render(&RenderPlan{OutputPath: out})
	if err != nil {
		t.Fatalf("empty plan should not error: %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("empty plan should not produce an output file")
	}
}

func TestRenderPlanWithOnlyEmptyClips(t *testing.T) {
	workspace := t.TempDir()
	c := NewCompositor(testEditingConfig(), workspace, zerolog.Nop())

	out := filepath.Join(workspace, "final.mp4")
	plan := &RenderPlan{
		SourceVideoPath: "missing.mp4",
		ClipCropData:    []vision.ClipCropData{{ClipID: "vid_0_5"}},
		OutputPath:      out,
	}
	if err := c.Render(plan); err != nil {
		t.Fatalf("plan with only frameless clips should not error: %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("no output expected for frameless clips")
	}
}

func TestRenderStoryModeNoBRoll(t *testing.T) {
	workspace := t.TempDir()
	c := NewCompositor(testEditingConfig(), workspace, zerolog.Nop())

	out := filepath.Join(workspace, "story.mp4")
	err := c.RenderStoryMode(&RenderPlan{SourceAudioPath: "voice.wav", OutputPath: out})
	if err != nil {
		t.Fatalf("empty story plan should not error: %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("no output expected without b-roll")
	}
}

func TestWriteConcatList(t *testing.T) {
	workspace := t.TempDir()
	c := NewCompositor(testEditingConfig(), workspace, zerolog.Nop())

	seg := filepath.Join(workspace, "segment_a.mp4")
	listPath, err := c.writeConcatList([]string{seg})
	if err != nil {
		t.Fatalf("writeConcatList: %v", err)
	}
	raw, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	want := "file '" + seg + "'\n"
	if string(raw) != want {
		t.Errorf("concat list = %q, want %q", raw, want)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want int
	}{
		{-5, 0, 10, 0},
		{15, 0, 10, 10},
		{5, 0, 10, 5},
	}
	for _, tt := range tests {
		if got := clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestRenderEndToEnd(t *testing.T) {
	skipIfNoFFmpeg(t)
	if testing.Short() {
		t.Skip("short mode")
	}

	workspace := t.TempDir()
	source := filepath.Join(workspace, "source.mp4")
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", "testsrc=duration=2:size=1280x720:rate=30",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=2",
		"-c:v", "libx264", "-preset", "ultrafast", "-c:a", "aac", "-shortest", source)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("generate test video: %v\n%s", err, out)
	}

	var frames []vision.FrameCrop
	for i := 0; i < 30; i++ {
		frames = append(frames, vision.FrameCrop{
			Timestamp:  float64(i) / 30,
			FrameIndex: i,
			CropX:      200,
			CropY:      0,
			CropW:      404,
			CropH:      720,
		})
	}

	c := NewCompositor(testEditingConfig(), workspace, zerolog.Nop())
	out := filepath.Join(workspace, "final.mp4")
	plan := &RenderPlan{
		SourceVideoPath: source,
		ClipCropData:    []vision.ClipCropData{{ClipID: "test_0_1", VideoID: "test", Frames: frames}},
		OutputPath:      out,
	}
	if err := c.Render(plan); err != nil {
		t.Fatalf("Render: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}

	// The crop plan spans [0, 29/30]s, so the rendered clip should run
	// that long, give or take a frame.
	probe, err := media.Probe(out)
	if err != nil {
		t.Fatalf("probe output: %v", err)
	}
	wantDuration := 29.0 / 30
	frameTolerance := 1.5 / 30
	if diff := math.Abs(probe.Duration - wantDuration); diff > frameTolerance {
		t.Errorf("output duration = %.3fs, want %.3fs within %.3fs", probe.Duration, wantDuration, frameTolerance)
	}
	if probe.Width != 1080 || probe.Height != 1920 {
		t.Errorf("output dimensions = %dx%d, want 1080x1920", probe.Width, probe.Height)
	}
}
