package retrieval

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// querier is the slice of Store the matcher needs.
type querier interface {
	Query(embedding []float32, topK int) ([]Match, error)
}

// Matcher finds library b-roll for transcript segments. Recently used
// videos are held out for a sliding window of matches so consecutive
// scenes do not reuse the same footage.
type Matcher struct {
	store     querier
	embedder  Embedder
	topK      int
	threshold float64
	window    int
	logger    zerolog.Logger

	recent []string
}

// NewMatcher builds a matcher with the given ranking parameters.
// window is the number of subsequent matches a used video stays excluded
// for; zero disables deduplication.
func NewMatcher(store querier, embedder Embedder, topK int, threshold float64, window int, logger zerolog.Logger) *Matcher {
	return &Matcher{
		store:     store,
		embedder:  embedder,
		topK:      topK,
		threshold: threshold,
		window:    window,
		logger:    logger.With().Str("component", "matcher").Logger(),
	}
}

// FindMatch returns the library path best matching the text, or empty
// string when nothing is close enough. A successful match enters the
// exclusion window.
func (m *Matcher) FindMatch(ctx context.Context, text string) (string, error) {
	vectors, err := m.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return "", fmt.Errorf("no embedding for query")
	}

	matches, err := m.store.Query(vectors[0], m.topK)
	if err != nil {
		return "", fmt.Errorf("query store: %w", err)
	}

	for _, match := range matches {
		if m.recentlyUsed(match.ContentID) {
			continue
		}
		if match.Distance > m.threshold {
			// Results are sorted; everything after is farther still.
			break
		}
		m.markUsed(match.ContentID)
		m.logger.Debug().
			Str("path", match.Path).
			Float64("distance", match.Distance).
			Msg("matched b-roll")
		return match.Path, nil
	}

	m.logger.Debug().Str("text", truncate(text, 60)).Msg("no b-roll match")
	return "", nil
}

// Reset clears the exclusion window, for reuse across independent runs.
func (m *Matcher) Reset() {
	m.recent = nil
}

func (m *Matcher) recentlyUsed(contentID string) bool {
	for _, id := range m.recent {
		if id == contentID {
			return true
		}
	}
	return false
}

func (m *Matcher) markUsed(contentID string) {
	if m.window <= 0 {
		return
	}
	m.recent = append(m.recent, contentID)
	if len(m.recent) > m.window {
		m.recent = m.recent[len(m.recent)-m.window:]
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
