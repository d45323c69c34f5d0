package packaging

import (
	"fmt"
	"io"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ExtractThumbnail grabs a single frame at the given timestamp, typically
// the hook moment at the start of the clip.
func ExtractThumbnail(videoPath string, timestamp float64, outputPath string) error {
	err := ffmpeg.Input(videoPath, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", timestamp)}).
		Output(outputPath, ffmpeg.KwArgs{"vframes": 1, "q:v": 2}).
		OverWriteOutput().WithOutput(io.Discard, io.Discard).Run()
	if err != nil {
		return fmt.Errorf("extract thumbnail: %w", err)
	}
	return nil
}
