// Package s3client provides a thin S3 client wrapper for object storage operations.
// For production, configure any S3-compatible endpoint. For tests, use gofakes3.
package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("s3client: object not found")

// Client wraps an S3 client bound to one bucket.
type Client struct {
	s3Client   *s3.Client
	bucketName string
}

// Config holds the configuration for creating an S3 client.
type Config struct {
	// Endpoint is the S3 endpoint URL. Leave empty to use default AWS S3.
	Endpoint string
	// Region is the AWS region (e.g., "auto" for Tigris, "us-east-1" for AWS).
	Region string
	// AccessKeyID is the S3 access key.
	AccessKeyID string
	// SecretAccessKey is the S3 secret key.
	SecretAccessKey string
	// BucketName is the bucket to use for storage.
	BucketName string
	// UsePathStyle enables path-style addressing (required for some S3-compatible services).
	UsePathStyle bool
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// New creates a new S3 client with the given configuration.
func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewFromS3Client(s3Client, cfg.BucketName), nil
}

// NewFromS3Client creates a Client from an existing S3 client.
func NewFromS3Client(s3Client *s3.Client, bucketName string) *Client {
	return &Client{
		s3Client:   s3Client,
		bucketName: bucketName,
	}
}

// PutObject stores content under the given key with the specified content type.
func (c *Client) PutObject(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3client: failed to put object %q: %w", key, err)
	}
	return nil
}

// GetObject retrieves the content stored under the given key.
// Returns ErrObjectNotFound if the key does not exist.
func (c *Client) GetObject(ctx context.Context, key string) ([]byte, error) {
	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrObjectNotFound
		}
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("s3client: failed to get object %q: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("s3client: failed to read object body %q: %w", key, err)
	}
	return data, nil
}

// ListObjects returns every object whose key starts with prefix, in the
// order the service reports them (lexicographic by key for S3).
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucketName),
		Prefix: aws.String(prefix),
	})

	var out []ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3client: failed to list objects under %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

// DeleteObject removes the object at the given key.
// Returns nil if the object was deleted or did not exist.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3client: failed to delete object %q: %w", key, err)
	}
	return nil
}

// BucketName returns the configured bucket name.
func (c *Client) BucketName() string {
	return c.bucketName
}
