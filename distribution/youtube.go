// Package distribution publishes rendered clips to external platforms.
package distribution

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"clipforge/packaging"
)

// YouTubeUploader publishes clips as Shorts using a service account.
type YouTubeUploader struct {
	service *youtube.Service
	privacy string
	logger  zerolog.Logger
}

// NewYouTubeUploader authenticates with the given service account JSON
// key file.
func NewYouTubeUploader(ctx context.Context, serviceAccountFile, privacy string, logger zerolog.Logger) (*YouTubeUploader, error) {
	data, err := os.ReadFile(serviceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(data, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account: %w", err)
	}

	service, err := youtube.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create YouTube service: %w", err)
	}

	if privacy == "" {
		privacy = "unlisted"
	}
	return &YouTubeUploader{
		service: service,
		privacy: privacy,
		logger:  logger.With().Str("component", "youtube").Logger(),
	}, nil
}

// Upload publishes the video and returns its YouTube id.
func (u *YouTubeUploader) Upload(ctx context.Context, videoPath string, md packaging.Metadata) (string, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat video file: %w", err)
	}
	u.logger.Info().
		Str("video", videoPath).
		Float64("size_mb", float64(info.Size())/(1024*1024)).
		Msg("uploading")

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       md.Title,
			Description: md.Description,
			Tags:        md.Tags,
			CategoryId:  md.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           u.privacy,
			SelfDeclaredMadeForKids: false,
		},
	}

	call := u.service.Videos.Insert([]string{"snippet", "status"}, video).Media(file)
	resp, err := call.Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}

	u.logger.Info().Str("url", "https://youtube.com/shorts/"+resp.Id).Msg("uploaded")
	return resp.Id, nil
}
