package storage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered for image.Decode
	"log"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"fieldquote/backend/internal/config"
	"fieldquote/backend/internal/models"
)

// ObjectStore is the binary-object store site images live in. Upload failures
// abort the image-attaching sub-step of a request; Delete is best-effort and
// its failures are logged by callers, never propagated.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, folder, filename string) (models.SiteImage, error)
	Delete(ctx context.Context, key string) error
}

// s3Store implements ObjectStore over AWS S3.
type s3Store struct {
	cfg      *config.Config
	s3Client *s3.Client
}

// NewS3Store creates the S3-backed object store.
func NewS3Store(cfg *config.Config) (ObjectStore, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &s3Store{
		cfg:      cfg,
		s3Client: s3.NewFromConfig(awsCfg),
	}, nil
}

// Upload stores an image under a unique key in the given folder and returns
// its store reference. Oversized images are downscaled to the configured
// maximum dimension before storage.
func (s *s3Store) Upload(ctx context.Context, data []byte, folder, filename string) (models.SiteImage, error) {
	data, contentType := s.boundImage(data)

	objectKey := fmt.Sprintf("%s/%s_%s", folder, uuid.NewString(), sanitizeFilename(filename))

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return models.SiteImage{}, fmt.Errorf("failed to upload object %s: %w", objectKey, err)
	}

	return models.SiteImage{
		Key: objectKey,
		URL: strings.TrimSuffix(s.cfg.ImageBaseURL, "/") + "/" + objectKey,
	}, nil
}

// Delete removes an object from the store.
func (s *s3Store) Delete(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// boundImage re-encodes images that exceed the configured maximum dimension.
// Non-image payloads pass through untouched.
func (s *s3Store) boundImage(data []byte) ([]byte, string) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, "application/octet-stream"
	}

	maxDim := s.cfg.ImageMaxDimension
	bounds := img.Bounds()
	if maxDim <= 0 || (bounds.Dx() <= maxDim && bounds.Dy() <= maxDim) {
		return data, "image/" + format
	}

	resized := resize.Thumbnail(uint(maxDim), uint(maxDim), img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		log.Printf("WARN: failed to re-encode oversized image, storing original: %v", err)
		return data, "image/" + format
	}
	return buf.Bytes(), "image/jpeg"
}

func sanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	if base == "" || base == "." {
		base = "upload"
	}
	return base
}

// LoggingStore is a no-op ObjectStore used when S3 is not configured. Uploads
// produce fake references so the rest of the flow stays exercisable in
// development.
type LoggingStore struct{}

func (s *LoggingStore) Upload(ctx context.Context, data []byte, folder, filename string) (models.SiteImage, error) {
	key := fmt.Sprintf("%s/%s_%s", folder, uuid.NewString(), sanitizeFilename(filename))
	log.Printf("Object store not configured; pretending to upload %d bytes as %s", len(data), key)
	return models.SiteImage{Key: key, URL: "local://" + key}, nil
}

func (s *LoggingStore) Delete(ctx context.Context, key string) error {
	log.Printf("Object store not configured; pretending to delete %s", key)
	return nil
}

var _ ObjectStore = (*LoggingStore)(nil)
