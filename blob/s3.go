package blob

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client the S3Store uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Config holds the bucket settings.
type S3Config struct {
	Bucket string
	Region string

	// Endpoint overrides the S3 endpoint for S3-compatible services
	// (R2, MinIO, LocalStack).
	Endpoint string

	// AccessKeyID and SecretAccessKey switch to static credentials.
	AccessKeyID     string
	SecretAccessKey string

	// PublicBaseURL is the prefix of durable object URLs. Default:
	// https://{bucket}.s3.{region}.amazonaws.com
	PublicBaseURL string
}

func (c S3Config) baseURL() string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
}

// NewS3Client builds an S3 client from an AWS config, applying the endpoint
// and static credentials overrides of cfg.
func NewS3Client(awsCfg aws.Config, cfg S3Config) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Region != "" {
			o.Region = cfg.Region
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKeyID != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		}
	})
}

// S3Store stores objects in an S3 bucket.
type S3Store struct {
	client S3API
	config S3Config
	logger *slog.Logger
}

// NewS3Store creates a new S3Store.
func NewS3Store(client S3API, cfg S3Config, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{client: client, config: cfg, logger: logger}
}

// Upload writes data under key with its sniffed content type.
func (s *S3Store) Upload(ctx context.Context, key string, data []byte) (Handle, error) {
	if err := checkKey(key); err != nil {
		return Handle{}, err
	}

	h := Handle{Key: key, ContentType: DetectContentType(data), Size: int64(len(data))}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(h.ContentType),
		ContentLength: aws.Int64(h.Size),
	})
	if err != nil {
		return Handle{}, fmt.Errorf("put object %s: %w", key, err)
	}

	s.logger.DebugContext(ctx, "object uploaded", "bucket", s.config.Bucket, "key", key, "contentType", h.ContentType)
	return h, nil
}

// URL checks the object exists and returns its durable URL.
func (s *S3Store) URL(ctx context.Context, h Handle) (string, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(h.Key),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotFound, h.Key, err)
	}
	return objectURL(s.config.baseURL(), h.Key), nil
}
