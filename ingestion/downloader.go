package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"clipforge/config"
)

// Download is the local result of fetching one source video.
type Download struct {
	ID        string
	VideoPath string
	AudioPath string
}

// Downloader fetches source videos with yt-dlp and extracts a separate
// audio track for transcription. Videos already present in the workspace
// and the history are reused without re-downloading.
type Downloader struct {
	cfg       config.DownloaderConfig
	workspace string
	history   History
	logger    zerolog.Logger

	// Seam for tests.
	runCommand func(ctx context.Context, name string, args ...string) (string, error)
}

// NewDownloader wires a downloader over the given history backend.
func NewDownloader(cfg config.DownloaderConfig, workspaceDir string, history History, logger zerolog.Logger) *Downloader {
	return &Downloader{
		cfg:        cfg,
		workspace:  workspaceDir,
		history:    history,
		logger:     logger.With().Str("component", "downloader").Logger(),
		runCommand: runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Fetch downloads the video at url into the workspace. When the video is
// already known and its files still exist, they are reused.
func (d *Downloader) Fetch(ctx context.Context, url string) (*Download, error) {
	id, err := d.resolveID(ctx, url)
	if err != nil {
		return nil, err
	}

	dl := &Download{
		ID:        id,
		VideoPath: filepath.Join(d.workspace, id+".mp4"),
		AudioPath: filepath.Join(d.workspace, id+".wav"),
	}

	if d.cfg.CheckDuplicates && d.history != nil {
		seen, err := d.history.Seen(ctx, id)
		if err != nil {
			d.logger.Warn().Err(err).Msg("history lookup failed, downloading anyway")
		} else if seen && fileExists(dl.VideoPath) && fileExists(dl.AudioPath) {
			d.logger.Info().Str("video_id", id).Msg("reusing downloaded files")
			return dl, nil
		}
	}

	d.logger.Info().Str("url", url).Str("video_id", id).Msg("downloading")

	format := d.cfg.Format
	if format == "" {
		format = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	}
	if _, err := d.runCommand(ctx, d.binary(),
		"-f", format,
		"--merge-output-format", "mp4",
		"-o", dl.VideoPath,
		"--no-playlist",
		url,
	); err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}

	if d.cfg.ExtractAudio {
		if _, err := d.runCommand(ctx, d.binary(),
			"-x", "--audio-format", "wav",
			"-o", dl.AudioPath,
			"--no-playlist",
			url,
		); err != nil {
			return nil, fmt.Errorf("extract audio: %w", err)
		}
	}

	if d.history != nil {
		if err := d.history.Mark(ctx, id); err != nil {
			d.logger.Warn().Err(err).Msg("failed to record download history")
		}
	}
	return dl, nil
}

// resolveID asks yt-dlp for the canonical video id without downloading.
func (d *Downloader) resolveID(ctx context.Context, url string) (string, error) {
	out, err := d.runCommand(ctx, d.binary(), "--print", "id", "--skip-download", "--no-playlist", url)
	if err != nil {
		return "", fmt.Errorf("resolve video id: %w", err)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("empty video id for %s", url)
	}
	return id, nil
}

func (d *Downloader) binary() string {
	if d.cfg.BinaryPath != "" {
		return d.cfg.BinaryPath
	}
	return "yt-dlp"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
