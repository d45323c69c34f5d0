package distribution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"clipforge/packaging"
)

// S3Archiver copies finished clips and their metadata to an S3 bucket for
// long-term storage.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Archiver builds an archiver using the default AWS credential
// chain, with an optional region override.
func NewS3Archiver(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (*S3Archiver, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Archiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "s3").Logger(),
	}, nil
}

// Upload archives a rendered clip together with its metadata sidecar when
// one exists next to the video. Returns the object key of the video.
func (a *S3Archiver) Upload(ctx context.Context, videoPath string, md packaging.Metadata) (string, error) {
	key, err := a.Archive(ctx, videoPath, a.prefix)
	if err != nil {
		return "", err
	}
	metaPath := filepath.Join(filepath.Dir(videoPath), "metadata.json")
	if _, statErr := os.Stat(metaPath); statErr == nil {
		if _, err := a.Archive(ctx, metaPath, a.prefix); err != nil {
			a.logger.Warn().Err(err).Msg("metadata archive failed")
		}
	}
	return key, nil
}

// Archive uploads the local file under the given key prefix and returns
// the object key.
func (a *S3Archiver) Archive(ctx context.Context, localPath, prefix string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	key := prefix + "/" + filepath.Base(localPath)
	in := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   file,
	}
	if ct := contentTypeFor(localPath); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := a.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}

	a.logger.Info().Str("key", key).Msg("archived")
	return key, nil
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	}
	return ""
}
