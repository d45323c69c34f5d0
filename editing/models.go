package editing

import "clipforge/vision"

// BRollSegment schedules one library video over a span of the timeline.
// Start and End are absolute source timestamps.
type BRollSegment struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	VideoPath string  `json:"video_path"`
}

// RenderPlan is everything the compositor needs for one output video.
type RenderPlan struct {
	SourceVideoPath string                `json:"source_video_path"`
	SourceAudioPath string                `json:"source_audio_path,omitempty"`
	ClipCropData    []vision.ClipCropData `json:"clip_crop_data"`
	BRollSegments   []BRollSegment        `json:"b_roll_segments"`
	OutputPath      string                `json:"output_path"`
}
