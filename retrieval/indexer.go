package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"clipforge/media"
)

const framesPerVideo = 3

var videoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
}

// Indexer scans the b-roll library directory and embeds each video into
// the vector store. Indexing is incremental: videos whose content id is
// already stored are skipped.
type Indexer struct {
	store    *Store
	embedder Embedder
	library  string
	logger   zerolog.Logger

	// Serializes scans; the store tolerates concurrent readers but a
	// single writer keeps sqlite happy.
	mu sync.Mutex

	extractFrames func(path string, count int) ([][]byte, error)
}

// NewIndexer wires an indexer over the given store and embedding backend.
func NewIndexer(store *Store, embedder Embedder, libraryDir string, logger zerolog.Logger) *Indexer {
	return &Indexer{
		store:         store,
		embedder:      embedder,
		library:       libraryDir,
		logger:        logger.With().Str("component", "indexer").Logger(),
		extractFrames: media.ExtractFrames,
	}
}

// ContentID derives a stable identifier from the video's absolute path.
// Renaming or moving a file causes a re-index under a new id.
func ContentID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])
}

// Scan walks the library and indexes every new video. Corrupt or
// unreadable videos are logged and skipped; the scan itself fails only
// on store or filesystem errors.
func (ix *Indexer) Scan(ctx context.Context) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	entries, err := os.ReadDir(ix.library)
	if err != nil {
		return 0, fmt.Errorf("read library dir: %w", err)
	}

	indexed := 0
	for _, entry := range entries {
		if entry.IsDir() || !videoExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return indexed, err
		}

		path := filepath.Join(ix.library, entry.Name())
		contentID := ContentID(path)

		has, err := ix.store.Has(contentID)
		if err != nil {
			return indexed, err
		}
		if has {
			continue
		}

		if err := ix.indexVideo(ctx, contentID, path); err != nil {
			ix.logger.Warn().Err(err).Str("video", path).Msg("skipping unindexable video")
			continue
		}
		indexed++
	}

	if indexed > 0 {
		ix.logger.Info().Int("new", indexed).Msg("library scan complete")
	}
	return indexed, nil
}

func (ix *Indexer) indexVideo(ctx context.Context, contentID, path string) error {
	frames, err := ix.extractFrames(path, framesPerVideo)
	if err != nil {
		return fmt.Errorf("extract frames: %w", err)
	}

	vectors, err := ix.embedder.EmbedImages(ctx, frames)
	if err != nil {
		return fmt.Errorf("embed frames: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("no embeddings for %s", path)
	}

	return ix.store.Put(contentID, path, meanVector(vectors))
}

// meanVector averages per-frame embeddings into one video-level vector.
func meanVector(vectors [][]float32) []float32 {
	mean := make([]float32, len(vectors[0]))
	for _, vec := range vectors {
		for i, v := range vec {
			if i < len(mean) {
				mean[i] += v
			}
		}
	}
	for i := range mean {
		mean[i] /= float32(len(vectors))
	}
	return mean
}
