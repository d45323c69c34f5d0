package media

import (
	"math"
	"testing"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 29.97002997002997},
		{"25", 25},
		{"0/0", 0},
		{"garbage", 0},
		{"x/y", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseFrameRate(tt.in); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSceneOutput(t *testing.T) {
	stderr := `
[Parsed_showinfo_1 @ 0x5595] n:   0 pts:  12345 pts_time:1.2345  pos: 100 fmt:yuv420p
[Parsed_showinfo_1 @ 0x5595] n:   1 pts:  98765 pts_time:4.5     pos: 200 fmt:yuv420p
frame=  2 fps=0.0 q=-0.0 size=N/A
[Parsed_showinfo_1 @ 0x5595] color_range:tv color_spaces:bt709
`
	scenes := parseSceneOutput(stderr)
	if len(scenes) != 2 {
		t.Fatalf("parsed %d scenes, want 2: %v", len(scenes), scenes)
	}
	if math.Abs(scenes[0]-1.2345) > 1e-9 || math.Abs(scenes[1]-4.5) > 1e-9 {
		t.Errorf("scenes = %v", scenes)
	}
}

func TestParseSceneOutputEmpty(t *testing.T) {
	if scenes := parseSceneOutput("frame= 10 fps=30\n"); len(scenes) != 0 {
		t.Errorf("expected no scenes, got %v", scenes)
	}
}

func TestDetectScenesRejectsInvertedRange(t *testing.T) {
	if _, err := DetectScenes("in.mp4", 10, 5, 0.4); err == nil {
		t.Fatal("expected range error")
	}
}
