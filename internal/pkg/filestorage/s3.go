package filestorage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/yigit/placementdesk/internal/config"
	"github.com/yigit/placementdesk/internal/pkg/logger"
)

// S3Storage stores objects in an S3-compatible service using path-style URLs.
type S3Storage struct {
	client   *s3.S3
	endpoint string
}

// NewS3Storage creates an S3 client from the storage configuration
func NewS3Storage(cfg *config.Config) (*S3Storage, error) {
	s3Config := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.Storage.S3.AccessKey, cfg.Storage.S3.SecretKey, ""),
		Endpoint:         aws.String(cfg.Storage.S3.Endpoint),
		Region:           aws.String(cfg.Storage.S3.Region),
		DisableSSL:       aws.Bool(!cfg.Storage.S3.UseSSL),
		S3ForcePathStyle: aws.Bool(true),
	}

	sess, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 session: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Storage.S3.Endpoint, "/")
	if !strings.Contains(endpoint, "://") {
		scheme := "http://"
		if cfg.Storage.S3.UseSSL {
			scheme = "https://"
		}
		endpoint = scheme + endpoint
	}

	return &S3Storage{
		client:   s3.New(sess),
		endpoint: endpoint,
	}, nil
}

// Put uploads the object and returns its path-style URL.
func (s *S3Storage) Put(ctx context.Context, bucket, name string, body io.Reader, size int64, contentType string) (string, error) {
	seeker, ok := body.(io.ReadSeeker)
	if !ok {
		// request signing needs a seekable body
		buf, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to buffer upload: %w", err)
		}
		seeker = bytes.NewReader(buf)
		size = int64(len(buf))
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(name),
		Body:   seeker,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObjectWithContext(ctx, input); err != nil {
		logger.Error().Err(err).Str("bucket", bucket).Str("key", name).Msg("Failed to upload object")
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return s.endpoint + "/" + bucket + "/" + name, nil
}

// Delete removes the object; S3 treats a missing key as success.
func (s *S3Storage) Delete(ctx context.Context, bucket, name string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		logger.Error().Err(err).Str("bucket", bucket).Str("key", name).Msg("Failed to delete object")
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
