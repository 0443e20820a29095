package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appconfig "github.com/phrazzld/fileserver-api/internal/config"
	"github.com/phrazzld/fileserver-api/internal/platform/logger"
)

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

const s3Scheme = "s3://"

// S3Store writes blobs to an S3 bucket. Locations have the form s3://bucket/prefix/key.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	logger *slog.Logger
}

// NewS3Store builds an S3 client from cfg. A non-empty Endpoint switches to
// path-style addressing so MinIO and other S3-compatible servers work.
func NewS3Store(ctx context.Context, cfg appconfig.S3Config, logger *slog.Logger) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3Store(client s3API, bucket, prefix string, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.With(slog.String("component", "s3_blob_store")),
	}
}

var _ Store = (*S3Store)(nil)

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// parseLocation splits s3://bucket/key into bucket and key.
func parseLocation(location string) (string, string, error) {
	rest, ok := strings.CutPrefix(location, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q is not an s3 location", ErrInvalidKey, location)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, location)
	}
	return bucket, key, nil
}

// Put implements Store.Put.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	objectKey := s.objectKey(key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to put object",
			slog.String("bucket", s.bucket),
			slog.String("key", objectKey),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to put object: %w", err)
	}
	return s3Scheme + s.bucket + "/" + objectKey, nil
}

// Exists implements Store.Exists.
func (s *S3Store) Exists(ctx context.Context, location string) (bool, error) {
	bucket, key, err := parseLocation(location)
	if err != nil {
		return false, err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}
	return true, nil
}

// Delete implements Store.Delete. S3 treats deleting a missing key as success.
func (s *S3Store) Delete(ctx context.Context, location string) error {
	bucket, key, err := parseLocation(location)
	if err != nil {
		return err
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to delete object",
			slog.String("location", location),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
