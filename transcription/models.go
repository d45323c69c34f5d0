package transcription

// Word is a single transcribed word with its timing.
type Word struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Segment is a contiguous run of speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Result is a full transcript for one source video.
type Result struct {
	VideoID  string    `json:"video_id"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []Segment `json:"segments"`
}

// AllWords flattens segment word lists in order.
func (r *Result) AllWords() []Word {
	var words []Word
	for _, seg := range r.Segments {
		words = append(words, seg.Words...)
	}
	return words
}

// Text joins all segment texts.
func (r *Result) Text() string {
	var out string
	for i, seg := range r.Segments {
		if i > 0 {
			out += " "
		}
		out += seg.Text
	}
	return out
}
