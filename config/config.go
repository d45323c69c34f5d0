package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Job-scoped values (focus
// topic, upload targets, mode) are NOT part of this struct; they travel in
// pipeline.Options so concurrent jobs never mutate shared state.
type Config struct {
	Paths         PathsConfig         `yaml:"paths"`
	Downloader    DownloaderConfig    `yaml:"downloader"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Intelligence  IntelligenceConfig  `yaml:"intelligence"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Vision        VisionConfig        `yaml:"vision"`
	Editing       EditingConfig       `yaml:"editing"`
	Overlay       OverlayConfig       `yaml:"overlay"`
	Distribution  DistributionConfig  `yaml:"distribution"`
	Queue         QueueConfig         `yaml:"queue"`
	API           APIConfig           `yaml:"api"`
}

type PathsConfig struct {
	WorkspaceDir string `yaml:"workspace_dir"`
	OutputDir    string `yaml:"output_dir"`
	LibraryDir   string `yaml:"library_dir"`
	HistoryFile  string `yaml:"history_file"`
	IndexFile    string `yaml:"index_file"`
}

type DownloaderConfig struct {
	BinaryPath      string `yaml:"binary_path"`
	Format          string `yaml:"format"`
	ExtractAudio    bool   `yaml:"extract_audio"`
	CheckDuplicates bool   `yaml:"check_duplicates"`
	// RedisAddr switches the download history to a shared Redis set.
	// Empty means the JSON history file is used.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type TranscriptionConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	APIKey   string `yaml:"-"`
}

type IntelligenceConfig struct {
	Model        string  `yaml:"model"`
	MaxClips     int     `yaml:"max_clips"`
	MinClipSecs  float64 `yaml:"min_clip_secs"`
	MaxClipSecs  float64 `yaml:"max_clip_secs"`
	CohereAPIKey string  `yaml:"-"`
}

type RetrievalConfig struct {
	EmbedModel          string  `yaml:"embed_model"`
	TopK                int     `yaml:"top_k"`
	DistanceThreshold   float64 `yaml:"distance_threshold"`
	DeduplicationWindow int     `yaml:"deduplication_window"`
}

type VisionConfig struct {
	CascadeFile         string  `yaml:"cascade_file"`
	DetectionWidth      int     `yaml:"detection_width"`
	MinFaceQuality      float64 `yaml:"min_face_quality"`
	StabilizationFactor float64 `yaml:"stabilization_factor"`
	VerticalCropRatio   float64 `yaml:"vertical_crop_ratio"`
	SceneThreshold      float64 `yaml:"scene_threshold"`
}

type EditingConfig struct {
	OutputWidth  int     `yaml:"output_width"`
	OutputHeight int     `yaml:"output_height"`
	OutputFPS    float64 `yaml:"output_fps"`
	BlurRadius   int     `yaml:"blur_radius"`
	VideoCodec   string  `yaml:"video_codec"`
	AudioCodec   string  `yaml:"audio_codec"`
	Preset       string  `yaml:"preset"`
}

type OverlayConfig struct {
	FontPath         string  `yaml:"font_path"`
	FontSize         float64 `yaml:"font_size"`
	MaxWordsPerLine  int     `yaml:"max_words_per_line"`
	TextColor        string  `yaml:"text_color"`
	HighlightColor   string  `yaml:"highlight_color"`
	StrokeWidth      int     `yaml:"stroke_width"`
	VerticalPosition float64 `yaml:"vertical_position"`
}

type DistributionConfig struct {
	Platforms             []string `yaml:"platforms"`
	YouTubeServiceAccount string   `yaml:"youtube_service_account"`
	YouTubePrivacy        string   `yaml:"youtube_privacy"`
	S3Bucket              string   `yaml:"s3_bucket"`
	S3Region              string   `yaml:"s3_region"`
	S3Prefix              string   `yaml:"s3_prefix"`
}

type QueueConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type APIConfig struct {
	Port int `yaml:"port"`
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file is absent, then applies environment overrides. API keys come
// from the environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration before any file or
// environment overrides.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			WorkspaceDir: "workspace",
			OutputDir:    "output",
			LibraryDir:   "library",
			HistoryFile:  filepath.Join("workspace", "download_history.json"),
			IndexFile:    filepath.Join("workspace", "library_index.db"),
		},
		Downloader: DownloaderConfig{
			BinaryPath:      "yt-dlp",
			Format:          "bv*[height<=1080]+ba/b[height<=1080]",
			ExtractAudio:    true,
			CheckDuplicates: true,
		},
		Transcription: TranscriptionConfig{
			Endpoint: "https://api.openai.com/v1/audio/transcriptions",
			Model:    "whisper-1",
			Language: "auto",
		},
		Intelligence: IntelligenceConfig{
			Model:       "command-r-plus-08-2024",
			MaxClips:    3,
			MinClipSecs: 15,
			MaxClipSecs: 60,
		},
		Retrieval: RetrievalConfig{
			EmbedModel:          "embed-v4.0",
			TopK:                10,
			DistanceThreshold:   0.55,
			DeduplicationWindow: 5,
		},
		Vision: VisionConfig{
			CascadeFile:         "assets/facefinder",
			DetectionWidth:      640,
			MinFaceQuality:      5.0,
			StabilizationFactor: 0.1,
			VerticalCropRatio:   9.0 / 16.0,
			SceneThreshold:      0.4,
		},
		Editing: EditingConfig{
			OutputWidth:  1080,
			OutputHeight: 1920,
			OutputFPS:    30,
			BlurRadius:   20,
			VideoCodec:   "libx264",
			AudioCodec:   "aac",
			Preset:       "fast",
		},
		Overlay: OverlayConfig{
			FontPath:         "assets/fonts/Anton-Regular.ttf",
			FontSize:         72,
			MaxWordsPerLine:  3,
			TextColor:        "#FFFFFF",
			HighlightColor:   "#FFD700",
			StrokeWidth:      3,
			VerticalPosition: 0.7,
		},
		Distribution: DistributionConfig{
			Platforms:      []string{"youtube"},
			YouTubePrivacy: "unlisted",
			S3Region:       "us-east-1",
			S3Prefix:       "clips",
		},
		Queue: QueueConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "clipforge.jobs",
			GroupID: "clipforge-workers",
		},
		API: APIConfig{Port: 8080},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./clipforge.yaml",
		"./clipforge.yml",
		filepath.Join(os.Getenv("HOME"), ".clipforge", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// applyEnv layers environment variables over file values. Secrets are
// env-only so they never end up in a committed YAML file.
func (c *Config) applyEnv() {
	c.Transcription.APIKey = os.Getenv("OPENAI_API_KEY")
	c.Intelligence.CohereAPIKey = os.Getenv("COHERE_API_KEY")

	if v := os.Getenv("CLIPFORGE_WORKSPACE"); v != "" {
		c.Paths.WorkspaceDir = v
	}
	if v := os.Getenv("CLIPFORGE_LIBRARY"); v != "" {
		c.Paths.LibraryDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Downloader.RedisAddr = v
		c.Downloader.RedisPassword = os.Getenv("REDIS_PASS")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Queue.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.API.Port = port
		}
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		c.Distribution.S3Bucket = v
	}
}

func (c *Config) validate() error {
	if c.Vision.StabilizationFactor <= 0 || c.Vision.StabilizationFactor > 1 {
		return fmt.Errorf("vision.stabilization_factor must be in (0,1], got %v", c.Vision.StabilizationFactor)
	}
	if c.Vision.VerticalCropRatio <= 0 {
		return fmt.Errorf("vision.vertical_crop_ratio must be positive")
	}
	if c.Retrieval.DeduplicationWindow < 0 {
		return fmt.Errorf("retrieval.deduplication_window must be >= 0")
	}
	if c.Overlay.MaxWordsPerLine <= 0 {
		return fmt.Errorf("overlay.max_words_per_line must be positive")
	}
	return nil
}

// EnsureDirs creates the workspace and output directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
