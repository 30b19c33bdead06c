package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/hearthtable/marketplace/pkg/config"
	"github.com/hearthtable/marketplace/pkg/retry"
)

// Client represents an S3-compatible object storage client
type Client struct {
	client *awss3.Client
	bucket string
}

// NewClient creates an S3 client for the configured endpoint and makes sure the bucket exists
func NewClient(cfg *config.StorageConfig) (*Client, error) {
	opts := awss3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	c := &Client{
		client: awss3.New(opts),
		bucket: cfg.Bucket,
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 5
	err := retry.DoWithLog(context.Background(), retryCfg, "object storage",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return c.EnsureBucket(ctx)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("object storage connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reach object storage: %w", err)
	}

	log.Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("connected to object storage")
	return c, nil
}

// Client returns the underlying S3 client
func (c *Client) Client() *awss3.Client {
	return c.client
}

// Bucket returns the configured bucket name
func (c *Client) Bucket() string {
	return c.bucket
}

// EnsureBucket creates the bucket when it does not exist yet
func (c *Client) EnsureBucket(ctx context.Context) error {
	if _, err := c.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err == nil {
		return nil
	}

	if _, err := c.client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
	}
	log.Info().Str("bucket", c.bucket).Msg("created storage bucket")
	return nil
}
