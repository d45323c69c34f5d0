package intelligence

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	cohereoption "github.com/cohere-ai/cohere-go/v2/option"
	"github.com/rs/zerolog"

	"clipforge/config"
	"clipforge/transcription"
)

// chatClient is the slice of the Cohere client the curator uses.
type chatClient interface {
	Chat(ctx context.Context, request *cohere.ChatRequest, opts ...cohereoption.RequestOption) (*cohere.NonStreamedChatResponse, error)
}

// Curator asks an LLM to pick viral-worthy segments from a transcript.
// An empty result is a valid outcome, not an error.
type Curator struct {
	client chatClient
	cfg    config.IntelligenceConfig
	logger zerolog.Logger
}

// NewCurator builds a curator against the Cohere chat API.
func NewCurator(cfg config.IntelligenceConfig, logger zerolog.Logger) *Curator {
	// Force HTTP/1.1 to avoid HTTP/2 protocol errors against the Cohere API
	httpClient := &http.Client{
		Timeout: 120 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(cfg.CohereAPIKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &Curator{
		client: client,
		cfg:    cfg,
		logger: logger.With().Str("component", "curator").Logger(),
	}
}

// Curate analyzes a transcript and returns clip candidates ordered as the
// model produced them. focusTopic narrows selection when non-empty.
func (c *Curator) Curate(ctx context.Context, transcript *transcription.Result, focusTopic string) (*CurationResult, error) {
	result := &CurationResult{VideoID: transcript.VideoID}

	text := formatTranscript(transcript)
	if strings.TrimSpace(text) == "" {
		c.logger.Warn().Str("video_id", transcript.VideoID).Msg("empty transcript, nothing to curate")
		return result, nil
	}

	topic := focusTopic
	if topic == "" {
		topic = "General Virality"
	}

	preamble := fmt.Sprintf(editorSystemPrompt, c.cfg.MinClipSecs, c.cfg.MaxClipSecs, c.cfg.MaxClips)
	message := fmt.Sprintf(editorUserPrompt, topic, text)

	model := c.cfg.Model
	resp, err := c.client.Chat(ctx, &cohere.ChatRequest{
		Message:  message,
		Model:    &model,
		Preamble: &preamble,
	})
	if err != nil {
		return nil, fmt.Errorf("curation chat error: %w", err)
	}

	clips, err := parseClips(resp.Text)
	if err != nil {
		return nil, fmt.Errorf("parse curation response: %w", err)
	}

	result.Clips = c.filter(clips, transcript.Duration)
	c.logger.Info().
		Int("raw", len(clips)).
		Int("kept", len(result.Clips)).
		Msg("curation complete")
	return result, nil
}

// filter drops clips with impossible bounds or out-of-range durations
// and caps the count at MaxClips.
func (c *Curator) filter(clips []ViralClip, videoDuration float64) []ViralClip {
	var kept []ViralClip
	for _, clip := range clips {
		if clip.StartTime < 0 || clip.EndTime <= clip.StartTime {
			continue
		}
		if videoDuration > 0 && clip.EndTime > videoDuration {
			clip.EndTime = videoDuration
		}
		d := clip.Duration()
		if c.cfg.MinClipSecs > 0 && d < float64(c.cfg.MinClipSecs) {
			continue
		}
		if c.cfg.MaxClipSecs > 0 && d > float64(c.cfg.MaxClipSecs) {
			continue
		}
		kept = append(kept, clip)
		if c.cfg.MaxClips > 0 && len(kept) >= c.cfg.MaxClips {
			break
		}
	}
	return kept
}

// parseClips tolerates markdown code fences and leading prose around the
// JSON object.
func parseClips(text string) ([]ViralClip, error) {
	raw := strings.TrimSpace(text)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	if i := strings.Index(raw, "{"); i > 0 {
		raw = raw[i:]
	}
	if i := strings.LastIndex(raw, "}"); i >= 0 && i < len(raw)-1 {
		raw = raw[:i+1]
	}

	var wrapper struct {
		Clips []ViralClip `json:"clips"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Clips, nil
}

// formatTranscript renders segments with [MM:SS] markers so the model
// can reference timestamps.
func formatTranscript(transcript *transcription.Result) string {
	var b strings.Builder
	for _, seg := range transcript.Segments {
		mins := int(seg.Start) / 60
		secs := int(seg.Start) % 60
		fmt.Fprintf(&b, "[%02d:%02d] %s\n", mins, secs, strings.TrimSpace(seg.Text))
	}
	return b.String()
}
