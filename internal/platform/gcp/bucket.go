package gcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/lectoria/storyforge-backend/internal/platform/logger"
)

// BucketCategory namespaces destination keys by artifact type.
type BucketCategory string

const (
	BucketCategoryAudio BucketCategory = "audio"
	BucketCategoryImage BucketCategory = "image"
)

type bucketConfig struct {
	name      string
	cdnDomain string
}

// BucketService pushes run artifacts to durable blob storage and resolves
// their public URLs.
type BucketService interface {
	UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader, contentType string) error
	GetPublicURL(category BucketCategory, key string) string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	audioBucket   bucketConfig
	imageBucket   bucketConfig
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")

	audioBucketName := strings.TrimSpace(os.Getenv("AUDIO_GCS_BUCKET_NAME"))
	imageBucketName := strings.TrimSpace(os.Getenv("IMAGE_GCS_BUCKET_NAME"))
	if audioBucketName == "" {
		return nil, fmt.Errorf("missing env var AUDIO_GCS_BUCKET_NAME")
	}
	if imageBucketName == "" {
		return nil, fmt.Errorf("missing env var IMAGE_GCS_BUCKET_NAME")
	}

	ctx := context.Background()
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	stClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog.Info("Object storage initialized",
		"audio_bucket", audioBucketName,
		"image_bucket", imageBucketName,
	)

	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		audioBucket: bucketConfig{
			name:      audioBucketName,
			cdnDomain: strings.TrimSpace(os.Getenv("AUDIO_CDN_DOMAIN")),
		},
		imageBucket: bucketConfig{
			name:      imageBucketName,
			cdnDomain: strings.TrimSpace(os.Getenv("IMAGE_CDN_DOMAIN")),
		},
	}, nil
}

func (s *bucketService) configFor(category BucketCategory) (bucketConfig, error) {
	switch category {
	case BucketCategoryAudio:
		return s.audioBucket, nil
	case BucketCategoryImage:
		return s.imageBucket, nil
	default:
		return bucketConfig{}, fmt.Errorf("unknown bucket category %q", category)
	}
}

func (s *bucketService) UploadFile(ctx context.Context, category BucketCategory, key string, file io.Reader, contentType string) error {
	cfg, err := s.configFor(category)
	if err != nil {
		return err
	}
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return fmt.Errorf("destination key required")
	}

	w := s.storageClient.Bucket(cfg.name).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload %s/%s: %w", cfg.name, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload %s/%s: %w", cfg.name, key, err)
	}
	s.log.Debug("Uploaded object", "bucket", cfg.name, "key", key)
	return nil
}

func (s *bucketService) GetPublicURL(category BucketCategory, key string) string {
	cfg, err := s.configFor(category)
	if err != nil {
		return ""
	}
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if cfg.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", strings.TrimSuffix(cfg.cdnDomain, "/"), key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", cfg.name, key)
}
