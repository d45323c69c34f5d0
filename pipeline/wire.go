package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"clipforge/config"
	"clipforge/distribution"
	"clipforge/editing"
	"clipforge/ingestion"
	"clipforge/intelligence"
	"clipforge/overlay"
	"clipforge/retrieval"
	"clipforge/transcription"
	"clipforge/vision"
)

// Build assembles a Manager with production collaborators from config.
// Optional pieces degrade gracefully: no Cohere key means no curation or
// b-roll, no cascade file means no face detection, no service account
// means no uploads.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Manager, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	workspace := cfg.Paths.WorkspaceDir

	var history ingestion.History
	if cfg.Downloader.RedisAddr != "" {
		rh, err := ingestion.NewRedisHistory(cfg.Downloader.RedisAddr, cfg.Downloader.RedisPassword, cfg.Downloader.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("redis history: %w", err)
		}
		history = rh
	} else {
		history = ingestion.NewFileHistory(cfg.Paths.HistoryFile)
	}

	deps := Deps{
		Downloader:  ingestion.NewDownloader(cfg.Downloader, workspace, history, logger),
		Transcriber: transcription.NewEngine(cfg.Transcription.Endpoint, cfg.Transcription.APIKey, cfg.Transcription.Model, cfg.Transcription.Language, workspace, logger),
		Curator:     intelligence.NewCurator(cfg.Intelligence, logger),
		Compositor:  editing.NewCompositor(cfg.Editing, workspace, logger),
		Overlay:     overlay.NewSubtitleOverlay(cfg.Overlay, workspace, logger),
		Uploaders:   map[string]uploader{},
	}

	detector, err := vision.NewPigoDetector(cfg.Vision.CascadeFile, cfg.Vision.MinFaceQuality)
	if err != nil {
		return nil, fmt.Errorf("face detector: %w", err)
	}
	deps.Cropper = vision.NewSmartCropper(cfg.Vision, detector, workspace, logger)

	if cfg.Intelligence.CohereAPIKey != "" {
		store, err := retrieval.OpenStore(cfg.Paths.IndexFile)
		if err != nil {
			return nil, fmt.Errorf("library index: %w", err)
		}
		embedder := retrieval.NewCohereEmbedder(cfg.Intelligence.CohereAPIKey, cfg.Retrieval.EmbedModel)
		deps.Indexer = retrieval.NewIndexer(store, embedder, cfg.Paths.LibraryDir, logger)
		deps.Matcher = retrieval.NewMatcher(store, embedder, cfg.Retrieval.TopK, cfg.Retrieval.DistanceThreshold, cfg.Retrieval.DeduplicationWindow, logger)
	} else {
		logger.Warn().Msg("COHERE_API_KEY not set, b-roll matching disabled")
	}

	if cfg.Distribution.YouTubeServiceAccount != "" {
		yt, err := distribution.NewYouTubeUploader(ctx, cfg.Distribution.YouTubeServiceAccount, cfg.Distribution.YouTubePrivacy, logger)
		if err != nil {
			return nil, fmt.Errorf("youtube uploader: %w", err)
		}
		deps.Uploaders["youtube"] = yt
	}
	if cfg.Distribution.S3Bucket != "" {
		archiver, err := distribution.NewS3Archiver(ctx, cfg.Distribution.S3Bucket, cfg.Distribution.S3Region, cfg.Distribution.S3Prefix, logger)
		if err != nil {
			return nil, fmt.Errorf("s3 archiver: %w", err)
		}
		deps.Uploaders["s3"] = archiver
	}

	return NewManager(cfg, deps, logger), nil
}
