package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Transcriber turns an audio file into a word-timestamped transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, videoID string) (*Result, error)
}

// Engine transcribes audio through an OpenAI-compatible transcriptions
// endpoint and caches results per video id in the workspace. Cache hits
// skip the network entirely; a corrupt cache file is recomputed.
type Engine struct {
	endpoint  string
	apiKey    string
	model     string
	language  string
	workspace string
	client    *http.Client
	logger    zerolog.Logger
}

// NewEngine builds a transcriber against the given endpoint, e.g.
// https://api.openai.com/v1/audio/transcriptions.
func NewEngine(endpoint, apiKey, model, language, workspaceDir string, logger zerolog.Logger) *Engine {
	return &Engine{
		endpoint:  endpoint,
		apiKey:    apiKey,
		model:     model,
		language:  language,
		workspace: workspaceDir,
		client:    &http.Client{Timeout: 10 * time.Minute},
		logger:    logger.With().Str("component", "transcriber").Logger(),
	}
}

func (e *Engine) cachePath(videoID string) string {
	return filepath.Join(e.workspace, fmt.Sprintf("transcript_%s.json", videoID))
}

// Transcribe returns the cached transcript when one exists, otherwise
// calls the API and caches the result.
func (e *Engine) Transcribe(ctx context.Context, audioPath, videoID string) (*Result, error) {
	if cached, ok := e.loadCache(videoID); ok {
		e.logger.Info().Str("video_id", videoID).Msg("transcript cache hit")
		return cached, nil
	}

	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	e.logger.Info().Str("audio", audioPath).Msg("transcribing")
	started := time.Now()

	result, err := e.request(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	result.VideoID = videoID

	e.logger.Info().
		Dur("elapsed", time.Since(started)).
		Int("segments", len(result.Segments)).
		Msg("transcription complete")

	e.saveCache(result)
	return result, nil
}

// verboseResponse mirrors the verbose_json response shape. Word entries
// use "word" on the wire.
type verboseResponse struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

func (e *Engine) request(ctx context.Context, audioPath string) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		f.Close()
		return nil, fmt.Errorf("read audio: %w", err)
	}
	f.Close()

	writer.WriteField("model", e.model)
	writer.WriteField("response_format", "verbose_json")
	writer.WriteField("timestamp_granularities[]", "word")
	writer.WriteField("timestamp_granularities[]", "segment")
	if e.language != "" && e.language != "auto" {
		writer.WriteField("language", e.language)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("transcription API status %d: %s", resp.StatusCode, string(msg))
	}

	var decoded verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return assemble(&decoded), nil
}

// assemble attaches top-level words to their enclosing segments. A word
// belongs to the first segment whose span contains its start time.
func assemble(resp *verboseResponse) *Result {
	result := &Result{Language: resp.Language, Duration: resp.Duration}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}

	for _, w := range resp.Words {
		word := Word{Text: w.Word, Start: w.Start, End: w.End}
		placed := false
		for i := range result.Segments {
			if word.Start >= result.Segments[i].Start && word.Start < result.Segments[i].End {
				result.Segments[i].Words = append(result.Segments[i].Words, word)
				placed = true
				break
			}
		}
		if !placed && len(result.Segments) > 0 {
			last := len(result.Segments) - 1
			result.Segments[last].Words = append(result.Segments[last].Words, word)
		}
	}
	return result
}

func (e *Engine) loadCache(videoID string) (*Result, bool) {
	raw, err := os.ReadFile(e.cachePath(videoID))
	if err != nil {
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		e.logger.Warn().Err(err).Str("video_id", videoID).Msg("corrupt transcript cache, reprocessing")
		return nil, false
	}
	return &result, true
}

func (e *Engine) saveCache(result *Result) {
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(e.cachePath(result.VideoID), raw, 0o644); err != nil {
		e.logger.Warn().Err(err).Msg("failed to write transcript cache")
	}
}
