package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hearthtable/marketplace/internal/domain/providers"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/s3"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// S3Storage implements ObjectStorage on an S3-compatible bucket
type S3Storage struct {
	client *s3.Client
}

// NewS3Storage creates a new S3-backed object store
func NewS3Storage(client *s3.Client) providers.ObjectStorage {
	return &S3Storage{client: client}
}

var _ providers.ObjectStorage = (*S3Storage)(nil)

// Put uploads an object under key
func (s *S3Storage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	input := &awss3.PutObjectInput{
		Bucket:      aws.String(s.client.Bucket()),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.Client().PutObject(ctx, input); err != nil {
		return apperrors.NewExternalError(fmt.Sprintf("failed to upload object %s", key), err)
	}
	return nil
}

// Delete removes an object; S3 treats a missing key as success
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.Client().DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.client.Bucket()),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperrors.NewExternalError(fmt.Sprintf("failed to delete object %s", key), err)
	}
	return nil
}

// Bucket returns the bucket name
func (s *S3Storage) Bucket() string {
	return s.client.Bucket()
}
