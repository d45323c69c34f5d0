package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"clipforge/editing"
	"clipforge/transcription"
)

// minSceneDuration is the shortest span a story scene may cover before a
// sentence boundary is allowed to cut it.
const minSceneDuration = 3.0

// visualMatcher finds library footage for a piece of narration.
type visualMatcher interface {
	FindMatch(ctx context.Context, text string) (string, error)
	Reset()
}

// StoryBuilder turns a narration audio track into a render plan: scenes
// are cut at sentence boundaries once long enough, and each scene is
// matched against the b-roll library.
type StoryBuilder struct {
	transcriber transcription.Transcriber
	matcher     visualMatcher
	logger      zerolog.Logger
}

// NewStoryBuilder wires a builder over the given transcription and
// matching backends.
func NewStoryBuilder(transcriber transcription.Transcriber, matcher visualMatcher, logger zerolog.Logger) *StoryBuilder {
	return &StoryBuilder{
		transcriber: transcriber,
		matcher:     matcher,
		logger:      logger.With().Str("component", "story").Logger(),
	}
}

// BuildPlan transcribes the narration and schedules one b-roll per scene.
// A scene without a match reuses the previous scene's footage.
func (b *StoryBuilder) BuildPlan(ctx context.Context, audioPath, outputPath string) (*editing.RenderPlan, *transcription.Result, error) {
	if b.matcher == nil {
		return nil, nil, fmt.Errorf("story mode requires a footage library and embedding key")
	}
	videoID := "story_" + strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))

	transcript, err := b.transcriber.Transcribe(ctx, audioPath, videoID)
	if err != nil {
		return nil, nil, fmt.Errorf("transcribe narration: %w", err)
	}
	if len(transcript.Segments) == 0 {
		return nil, transcript, fmt.Errorf("no segments in narration transcript")
	}

	var bRolls []editing.BRollSegment
	var sceneText strings.Builder
	sceneStart := transcript.Segments[0].Start

	for i, seg := range transcript.Segments {
		sceneText.WriteString(" ")
		sceneText.WriteString(seg.Text)

		isLast := i == len(transcript.Segments)-1
		longEnough := seg.End-sceneStart >= minSceneDuration
		sentenceEnd := endsSentence(seg.Text)

		if !isLast && !(longEnough && sentenceEnd) {
			continue
		}

		query := strings.TrimSpace(sceneText.String())
		matchPath, err := b.matcher.FindMatch(ctx, query)
		if err != nil {
			// Retrieval failures degrade to a no-match; the scene falls
			// back to the previous footage below.
			b.logger.Warn().Err(err).Str("query", query).Msg("scene match failed")
			matchPath = ""
		}

		switch {
		case matchPath != "":
			bRolls = append(bRolls, editing.BRollSegment{Start: sceneStart, End: seg.End, VideoPath: matchPath})
		case len(bRolls) > 0:
			prev := bRolls[len(bRolls)-1]
			b.logger.Warn().Str("query", query).Msg("no visual match, reusing previous scene")
			bRolls = append(bRolls, editing.BRollSegment{Start: sceneStart, End: seg.End, VideoPath: prev.VideoPath})
		default:
			b.logger.Warn().Str("query", query).Msg("no visual match for opening scene, skipping")
		}

		sceneStart = seg.End
		sceneText.Reset()
	}

	plan := &editing.RenderPlan{
		SourceAudioPath: audioPath,
		BRollSegments:   bRolls,
		OutputPath:      outputPath,
	}
	return plan, transcript, nil
}

func endsSentence(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasSuffix(t, ".") || strings.HasSuffix(t, "?") || strings.HasSuffix(t, "!")
}
