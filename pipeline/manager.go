package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"clipforge/config"
	"clipforge/editing"
	"clipforge/ingestion"
	"clipforge/intelligence"
	"clipforge/packaging"
	"clipforge/transcription"
	"clipforge/vision"
)

// Stage failure sentinels, for callers that branch on where a run died.
var (
	ErrDownload      = errors.New("download failed")
	ErrTranscription = errors.New("transcription failed")
	ErrCuration      = errors.New("curation failed")
	ErrRender        = errors.New("render failed")
)

// Options selects what one pipeline run does.
type Options struct {
	URL       string
	Topic     string
	Mode      string // "viral" or "story"
	AudioPath string
	Upload    bool
	Platforms []string
	KeepTemp  bool
}

type downloader interface {
	Fetch(ctx context.Context, url string) (*ingestion.Download, error)
}

type curator interface {
	Curate(ctx context.Context, transcript *transcription.Result, focusTopic string) (*intelligence.CurationResult, error)
}

// LibraryIndexer refreshes the b-roll library before a run. The API's
// rescan endpoint drives it directly as well.
type LibraryIndexer interface {
	Scan(ctx context.Context) (int, error)
}

type cropper interface {
	ProcessClips(videoPath string, clips []vision.TimeRange, videoID string) []vision.ClipCropData
}

type compositor interface {
	Render(plan *editing.RenderPlan) error
	RenderStoryMode(plan *editing.RenderPlan) error
}

type subtitleBurner interface {
	Burn(videoPath string, transcript *transcription.Result, outputPath string) error
}

type uploader interface {
	Upload(ctx context.Context, videoPath string, md packaging.Metadata) (string, error)
}

// Deps are the collaborators a Manager drives. Uploaders is keyed by
// platform name and may be empty.
type Deps struct {
	Downloader  downloader
	Transcriber transcription.Transcriber
	Curator     curator
	Indexer     LibraryIndexer
	Matcher     visualMatcher
	Cropper     cropper
	Compositor  compositor
	Overlay     subtitleBurner
	Uploaders   map[string]uploader
}

// Manager runs the end-to-end pipeline and owns workspace hygiene.
type Manager struct {
	cfg    *config.Config
	deps   Deps
	logger zerolog.Logger

	extractThumbnail func(videoPath string, timestamp float64, outputPath string) error
}

// NewManager wires a pipeline manager.
func NewManager(cfg *config.Config, deps Deps, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:              cfg,
		deps:             deps,
		logger:           logger.With().Str("component", "pipeline").Logger(),
		extractThumbnail: packaging.ExtractThumbnail,
	}
}

// Indexer returns the b-roll library indexer, nil when retrieval is
// not configured.
func (m *Manager) Indexer() LibraryIndexer {
	return m.deps.Indexer
}

// Run executes one pipeline pass. The workspace is cleaned afterwards,
// on success and on failure alike, unless KeepTemp is set.
func (m *Manager) Run(ctx context.Context, opts Options) (err error) {
	m.logger.Info().Str("mode", opts.Mode).Msg("starting pipeline")

	defer func() {
		if !opts.KeepTemp {
			m.Cleanup()
		}
	}()

	if opts.Mode == "story" {
		return m.runStoryMode(ctx, opts)
	}
	return m.runViralMode(ctx, opts)
}

func (m *Manager) runViralMode(ctx context.Context, opts Options) error {
	if opts.URL == "" {
		return fmt.Errorf("%w: url is required for viral mode", ErrDownload)
	}

	dl, err := m.deps.Downloader.Fetch(ctx, opts.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownload, err)
	}

	transcript, err := m.deps.Transcriber.Transcribe(ctx, dl.AudioPath, dl.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	curation, err := m.deps.Curator.Curate(ctx, transcript, opts.Topic)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCuration, err)
	}
	if len(curation.Clips) == 0 {
		m.logger.Warn().Msg("no viral clips identified")
		return nil
	}

	m.prepareLibrary(ctx)

	ranges := make([]vision.TimeRange, len(curation.Clips))
	for i, clip := range curation.Clips {
		ranges[i] = vision.TimeRange{Start: clip.StartTime, End: clip.EndTime}
	}
	cropResults := m.deps.Cropper.ProcessClips(dl.VideoPath, ranges, dl.ID)
	if len(cropResults) == 0 {
		m.logger.Warn().Msg("no clips produced crop data")
		return nil
	}

	// Crop results can be fewer than curated clips; align by clip id.
	clipByID := make(map[string]intelligence.ViralClip, len(curation.Clips))
	for _, clip := range curation.Clips {
		id := fmt.Sprintf("%s_%d_%d", dl.ID, int(clip.StartTime), int(clip.EndTime))
		clipByID[id] = clip
	}

	for i, cropData := range cropResults {
		clip, ok := clipByID[cropData.ClipID]
		if !ok {
			m.logger.Warn().Str("clip", cropData.ClipID).Msg("crop data without matching curated clip")
			continue
		}
		m.logger.Info().
			Int("clip", i+1).
			Int("total", len(cropResults)).
			Str("title", clip.Title).
			Msg("processing clip")

		if err := m.produceClip(ctx, opts, dl, transcript, clip, cropData, i); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) produceClip(ctx context.Context, opts Options, dl *ingestion.Download, transcript *transcription.Result, clip intelligence.ViralClip, cropData vision.ClipCropData, idx int) error {
	var bRolls []editing.BRollSegment
	clipText := TextForRange(transcript, clip.StartTime, clip.EndTime)
	if m.deps.Matcher != nil && clipText != "" {
		matchPath, err := m.deps.Matcher.FindMatch(ctx, clipText)
		if err != nil {
			m.logger.Warn().Err(err).Msg("b-roll matching failed, continuing without")
		} else if matchPath != "" {
			bRolls = append(bRolls, editing.BRollSegment{
				Start:     clip.StartTime,
				End:       clip.EndTime,
				VideoPath: matchPath,
			})
		}
	}

	clipDir := filepath.Join(m.cfg.Paths.OutputDir, dl.ID, fmt.Sprintf("clip_%d", idx))
	if err := os.MkdirAll(clipDir, 0o755); err != nil {
		return fmt.Errorf("create clip dir: %w", err)
	}

	cleanPath := filepath.Join(clipDir, "clean.mp4")
	finalPath := filepath.Join(clipDir, "final.mp4")
	thumbPath := filepath.Join(clipDir, "thumbnail.jpg")
	metaPath := filepath.Join(clipDir, "metadata.json")

	plan := &editing.RenderPlan{
		SourceVideoPath: dl.VideoPath,
		SourceAudioPath: dl.AudioPath,
		ClipCropData:    []vision.ClipCropData{cropData},
		BRollSegments:   bRolls,
		OutputPath:      cleanPath,
	}
	if err := m.deps.Compositor.Render(plan); err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}

	if err := m.deps.Overlay.Burn(cleanPath, transcript, finalPath); err != nil {
		return fmt.Errorf("%w: subtitles: %v", ErrRender, err)
	}

	md := packaging.GenerateMetadata(clip, clipText)
	if err := m.extractThumbnail(finalPath, 0.5, thumbPath); err != nil {
		m.logger.Warn().Err(err).Msg("thumbnail extraction failed")
	}
	if raw, err := json.MarshalIndent(md, "", "  "); err == nil {
		if err := os.WriteFile(metaPath, raw, 0o644); err != nil {
			m.logger.Warn().Err(err).Msg("failed to write metadata")
		}
	}

	if opts.Upload {
		m.upload(ctx, opts.Platforms, finalPath, md)
	}
	return nil
}

func (m *Manager) runStoryMode(ctx context.Context, opts Options) error {
	if opts.AudioPath == "" {
		return fmt.Errorf("%w: audio path is required for story mode", ErrTranscription)
	}

	m.prepareLibrary(ctx)

	storyID := "story_" + strings.TrimSuffix(filepath.Base(opts.AudioPath), filepath.Ext(opts.AudioPath))
	outDir := filepath.Join(m.cfg.Paths.OutputDir, storyID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	cleanPath := filepath.Join(outDir, "clean.mp4")
	finalPath := filepath.Join(outDir, "final.mp4")

	builder := NewStoryBuilder(m.deps.Transcriber, m.deps.Matcher, m.logger)
	plan, transcript, err := builder.BuildPlan(ctx, opts.AudioPath, cleanPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	if err := m.deps.Compositor.RenderStoryMode(plan); err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	if _, err := os.Stat(cleanPath); err != nil {
		m.logger.Warn().Msg("story render produced no output")
		return nil
	}

	if err := m.deps.Overlay.Burn(cleanPath, transcript, finalPath); err != nil {
		return fmt.Errorf("%w: subtitles: %v", ErrRender, err)
	}

	m.logger.Info().Str("output", finalPath).Msg("story mode finished")
	return nil
}

// prepareLibrary rescans the b-roll index and clears the match window.
// Index failures degrade to renders without b-roll.
func (m *Manager) prepareLibrary(ctx context.Context) {
	if m.deps.Indexer != nil {
		if _, err := m.deps.Indexer.Scan(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("library scan failed, continuing without new footage")
		}
	}
	if m.deps.Matcher != nil {
		m.deps.Matcher.Reset()
	}
}

func (m *Manager) upload(ctx context.Context, platforms []string, videoPath string, md packaging.Metadata) {
	if len(platforms) == 0 {
		platforms = m.cfg.Distribution.Platforms
	}
	for _, platform := range platforms {
		up, ok := m.deps.Uploaders[platform]
		if !ok {
			m.logger.Warn().Str("platform", platform).Msg("no uploader configured")
			continue
		}
		if _, err := up.Upload(ctx, videoPath, md); err != nil {
			m.logger.Error().Err(err).Str("platform", platform).Msg("upload failed")
		}
	}
}

// Cleanup removes intermediate media and JSON files from the workspace.
// The download history and the library index survive across runs.
func (m *Manager) Cleanup() {
	m.logger.Info().Msg("cleaning up workspace")

	keep := map[string]bool{
		filepath.Base(m.cfg.Paths.HistoryFile): true,
		filepath.Base(m.cfg.Paths.IndexFile):   true,
	}
	entries, err := os.ReadDir(m.cfg.Paths.WorkspaceDir)
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to read workspace")
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || keep[entry.Name()] {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".mp4", ".wav", ".jpg", ".png", ".json", ".txt":
			path := filepath.Join(m.cfg.Paths.WorkspaceDir, entry.Name())
			if err := os.Remove(path); err != nil {
				m.logger.Warn().Err(err).Str("file", entry.Name()).Msg("failed to delete")
			}
		}
	}
}
