// Package queue moves render jobs between the API and workers over Kafka.
package queue

// Job is one unit of pipeline work. Exactly the fields a worker needs to
// call pipeline.Run; results land in the shared output directory.
type Job struct {
	ID        string   `json:"id"`
	URL       string   `json:"url,omitempty"`
	Topic     string   `json:"topic,omitempty"`
	Mode      string   `json:"mode"`
	AudioPath string   `json:"audio_path,omitempty"`
	Upload    bool     `json:"upload"`
	Platforms []string `json:"platforms,omitempty"`
}

// Valid reports whether the job names enough input for its mode.
func (j *Job) Valid() bool {
	if j.Mode == "story" {
		return j.AudioPath != ""
	}
	return j.URL != ""
}
