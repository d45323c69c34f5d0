package intelligence

// ViralClip is a selected segment with high engagement potential.
type ViralClip struct {
	StartTime     float64 `json:"start_time"`
	EndTime       float64 `json:"end_time"`
	Title         string  `json:"title"`
	ViralityScore int     `json:"virality_score"`
	Reasoning     string  `json:"reasoning,omitempty"`
	Category      string  `json:"category,omitempty"`
}

// Duration returns the clip length in seconds.
func (c ViralClip) Duration() float64 {
	return c.EndTime - c.StartTime
}

// CurationResult is the full output of one curation pass.
type CurationResult struct {
	VideoID string      `json:"video_id"`
	Clips   []ViralClip `json:"clips"`
}
