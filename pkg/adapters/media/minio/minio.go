package minio

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// URLExpiry is the lifetime of the presigned GET URLs returned by Put
const URLExpiry = 24 * time.Hour

// Store implements ports.MediaStore on a MinIO (or S3-compatible) bucket
type Store struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewStore creates a MinIO media store
func NewStore(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *zap.Logger) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &Store{
		client: client,
		bucket: bucket,
		logger: logger,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		s.logger.Info("created media bucket", zap.String("bucket", s.bucket))
	}

	return nil
}

// Put uploads one object and returns a presigned GET URL (ports.MediaStore interface)
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if contentType == "" {
		contentType = contentTypeByExt(key)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, URLExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign object URL: %w", err)
	}

	s.logger.Debug("object uploaded",
		zap.String("key", key),
		zap.String("content_type", contentType))

	return presigned.String(), nil
}

// contentTypeByExt maps an object key's extension to its content type
func contentTypeByExt(key string) string {
	switch path.Ext(key) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".json":
		return "application/json"
	}
	return "application/octet-stream"
}
