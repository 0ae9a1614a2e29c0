package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"

	"github.com/coursehub/coursehub-backend/pkg/config"
	"github.com/coursehub/coursehub-backend/pkg/logger"
)

// Client issues presigned URLs against an S3-compatible bucket.
type Client struct {
	api            *awss3.S3
	bucket         string
	uploadExpiry   time.Duration
	downloadExpiry time.Duration
}

type Pinger interface {
	Ping(ctx context.Context) error
}

func NewClient(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, errors.New("storage region is required")
	}

	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		awsCfg.Endpoint = aws.String(endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create storage session: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", bucket), "object storage client initialized")
	}

	return &Client{
		api:            awss3.New(sess),
		bucket:         bucket,
		uploadExpiry:   cfg.UploadURLExpiry,
		downloadExpiry: cfg.DownloadURLExpiry,
	}, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

// SignedUploadURL returns a PUT URL bound to the object key and content type.
func (c *Client) SignedUploadURL(key, contentType string) (string, time.Time, error) {
	if strings.TrimSpace(key) == "" {
		return "", time.Time{}, errors.New("object key is required")
	}
	req, _ := c.api.PutObjectRequest(&awss3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	url, err := req.Presign(c.uploadExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign upload: %w", err)
	}
	return url, time.Now().Add(c.uploadExpiry), nil
}

// SignedReadURL returns a time-limited GET URL for key.
func (c *Client) SignedReadURL(key string) (string, time.Time, error) {
	if strings.TrimSpace(key) == "" {
		return "", time.Time{}, errors.New("object key is required")
	}
	req, _ := c.api.GetObjectRequest(&awss3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(c.downloadExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign read: %w", err)
	}
	return url, time.Now().Add(c.downloadExpiry), nil
}

// DeleteObject removes key; used when an admin deletes a video.
func (c *Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.api.DeleteObjectWithContext(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// Ping checks the bucket is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.HeadBucketWithContext(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	return err
}
