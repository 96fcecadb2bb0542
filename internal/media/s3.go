package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"shuttle-market/internal/config"
)

// S3Host uploads public-read objects to a single bucket
type S3Host struct {
	client    s3iface.S3API
	bucket    string
	region    string
	publicURL string
}

// NewS3Host creates an S3 client from static credentials
func NewS3Host(cfg config.MediaConfig) (*S3Host, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWSRegion),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewS3HostWithClient(s3.New(sess), cfg.S3Bucket, cfg.AWSRegion, cfg.S3PublicURL), nil
}

// NewS3HostWithClient wraps an existing S3 API implementation
func NewS3HostWithClient(client s3iface.S3API, bucket, region, publicURL string) *S3Host {
	return &S3Host{
		client:    client,
		bucket:    bucket,
		region:    region,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

func (h *S3Host) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := h.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to upload to S3: %v", ErrHostUnavailable, err)
	}
	return h.url(key), nil
}

func (h *S3Host) Remove(ctx context.Context, key string) error {
	_, err := h.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete from S3: %v", ErrHostUnavailable, err)
	}
	return nil
}

func (h *S3Host) url(key string) string {
	if h.publicURL != "" {
		return fmt.Sprintf("%s/%s", h.publicURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", h.bucket, h.region, key)
}
