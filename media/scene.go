package media

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// DetectScenes finds scene-change timestamps (seconds, absolute to the
// source) within [start, end] using ffmpeg's scene filter. The showinfo
// output lands on stderr; timestamps are parsed out of it and offset back
// to absolute time.
func DetectScenes(input string, start, end, threshold float64) ([]float64, error) {
	if end <= start {
		return nil, fmt.Errorf("invalid scene range: end %.2f <= start %.2f", end, start)
	}

	var stderr bytes.Buffer
	err := ffmpeg.Input(input, ffmpeg.KwArgs{"ss": start, "t": end - start}).
		Output("pipe:", ffmpeg.KwArgs{
			"vf": fmt.Sprintf("select='gt(scene,%f)',showinfo", threshold),
			"f":  "null",
		}).
		WithOutput(io.Discard, &stderr).
		Run()
	if err != nil {
		// The null muxer run can report spurious conversion errors while
		// still emitting usable showinfo lines.
		if !strings.Contains(stderr.String(), "pts_time:") {
			return nil, fmt.Errorf("scene detection failed: %w", err)
		}
	}

	cuts := parseSceneOutput(stderr.String())
	for i := range cuts {
		cuts[i] += start
	}
	return cuts, nil
}

// parseSceneOutput extracts pts_time values from showinfo stderr lines.
func parseSceneOutput(output string) []float64 {
	var scenes []float64
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "pts_time:") {
			continue
		}
		parts := strings.Split(line, "pts_time:")
		if len(parts) != 2 {
			continue
		}
		fields := strings.Fields(strings.TrimSpace(parts[1]))
		if len(fields) == 0 {
			continue
		}
		if seconds, err := strconv.ParseFloat(fields[0], 64); err == nil {
			scenes = append(scenes, seconds)
		}
	}
	return scenes
}
