// Package vision produces per-frame crop rectangles that keep the dominant
// face inside a vertical reframe of the source video.
package vision

// TimeRange is a selected slice of the source timeline, in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// FrameCrop is the crop rectangle for one processed source frame.
// Immutable once produced; owned by the clip that generated it.
type FrameCrop struct {
	Timestamp  float64 `json:"timestamp"`
	FrameIndex int     `json:"frame_index"`
	CropX      int     `json:"crop_x"`
	CropY      int     `json:"crop_y"`
	CropW      int     `json:"crop_w"`
	CropH      int     `json:"crop_h"`
}

// ClipCropData is the full crop-rectangle sequence for one selected clip,
// ordered by ascending frame index.
type ClipCropData struct {
	ClipID  string      `json:"clip_id"`
	VideoID string      `json:"video_id"`
	Frames  []FrameCrop `json:"frames"`
}

// Box is a detected face bounding box in source pixel coordinates.
type Box struct {
	X     int
	Y     int
	W     int
	H     int
	Score float32
}

// Area returns the box area used to rank competing detections.
func (b Box) Area() int {
	return b.W * b.H
}

// FaceDetector locates faces in a grayscale frame. Backends are chosen at
// construction time; pixels are row-major gray8 of the given dimensions.
type FaceDetector interface {
	DetectFaces(pixels []byte, width, height int) []Box
}
