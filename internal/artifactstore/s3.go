package artifactstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"ingestcore/internal/config"
	"ingestcore/internal/ingestmodel"
)

// S3Store implements Store by writing manifest blobs as JSON objects to an
// S3-compatible bucket (AWS S3, MinIO, etc). It is grounded on the teacher's
// internal/objectstore.S3Store, narrowed to the put-once/get contract a
// manifest blob actually needs: no List/Head/Copy/Exists, no pagination.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	sse    config.S3SSEConfig
}

// NewS3Store creates an S3Store from configuration.
func NewS3Store(ctx context.Context, cfg config.S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	if cfg.TLSInsecureSkipVerify {
		awsOpts = append(awsOpts, awsconfig.WithHTTPClient(&http.Client{
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
		}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
		sse:    cfg.SSE,
	}, nil
}

func (s *S3Store) objectKey(key string) string {
	name := "manifest-" + key + ".json"
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Put marshals the manifest to JSON and writes it under a fresh uuid key.
func (s *S3Store) Put(ctx context.Context, manifest ingestmodel.Manifest) (string, error) {
	key := uuid.NewString()
	data, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	switch s.sse.Mode {
	case "sse-s3":
		input.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	case "sse-kms":
		input.ServerSideEncryption = s3types.ServerSideEncryptionAwsKms
		if s.sse.KMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(s.sse.KMSKeyID)
		}
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 put manifest: %w", err)
	}
	return key, nil
}

// Get fetches and decodes the manifest stored under key.
func (s *S3Store) Get(ctx context.Context, key string) (ingestmodel.Manifest, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return ingestmodel.Manifest{}, ErrNotFound
		}
		return ingestmodel.Manifest{}, fmt.Errorf("s3 get manifest: %w", err)
	}
	defer out.Body.Close()

	var m ingestmodel.Manifest
	if err := json.NewDecoder(out.Body).Decode(&m); err != nil {
		return ingestmodel.Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	return m, nil
}

func isNotFoundError(err error) bool {
	var notFound *s3types.NotFound
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &notFound) ||
		errors.As(err, &noSuchKey) ||
		strings.Contains(err.Error(), "NoSuchKey")
}

var _ Store = (*S3Store)(nil)
