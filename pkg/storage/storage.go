// Package storage wraps the S3-compatible object store holding media,
// uploads, and sampled frames.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/mediabrief/mediabrief/pkg/config"
)

// Client provides bucket operations for the three buckets: expiring media,
// permanent uploads, and video frames.
type Client struct {
	s3      *s3.Client
	presign *s3.PresignClient
	cfg     config.StorageConfig
}

// New builds the S3 client. A custom endpoint switches on path-style
// addressing for R2/minio-style stores.
func New(ctx context.Context, cfg config.StorageConfig) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3:      client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
	}, nil
}

// ExpiringBucket is the bucket whose objects the cleanup worker reaps.
func (c *Client) ExpiringBucket() string { return c.cfg.ExpiringBucket }

// PermanentBucket holds user uploads that never expire.
func (c *Client) PermanentBucket() string { return c.cfg.PermanentBucket }

// FramesBucket holds sampled video frames.
func (c *Client) FramesBucket() string { return c.cfg.FramesBucket }

// Upload streams an object into a bucket.
func (c *Client) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Delete removes an object. An already-missing object is not an error: the
// cleanup worker converges on the next run either way.
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Head returns the size of an object.
func (c *Client) Head(ctx context.Context, bucket, key string) (int64, error) {
	out, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to head %s/%s: %w", bucket, key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// SignedURL returns a short-lived GET URL for an expiring-bucket object.
func (c *Client) SignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = time.Hour
	}
	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// PublicURL returns the public URL of an object in a public-read bucket.
func (c *Client) PublicURL(bucket, key string) string {
	base := strings.TrimSuffix(c.cfg.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimSuffix(c.cfg.Endpoint, "/")
	}
	return fmt.Sprintf("%s/%s/%s", base, bucket, key)
}
