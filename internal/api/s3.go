package api

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/arscene/statesync/internal/config"
	"github.com/arscene/statesync/pkg/core"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader puts exported sessions into a single bucket under a key prefix.
type S3Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Uploader builds an uploader from config. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain. A
// custom endpoint switches to path-style addressing (MinIO and friends).
func NewS3Uploader(ctx context.Context, cfg config.S3Config, optFns ...func(*s3.Options)) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return &S3Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Key returns the object key a file is stored under.
func (u *S3Uploader) Key(filePath string) string {
	return path.Join(strings.TrimLeft(u.prefix, "/"), filepath.Base(filePath))
}

// Upload puts the file with the session metadata attached.
func (u *S3Uploader) Upload(ctx context.Context, filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	contentType := "application/json"
	if strings.HasSuffix(filePath, ".gz") {
		contentType = "application/gzip"
	}
	key := u.Key(filePath)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"session-name": meta.SessionName,
			"tag":          meta.Tag,
			"duration":     strconv.FormatFloat(meta.Duration, 'f', 3, 64),
			"frames":       strconv.FormatUint(meta.Frames, 10),
		},
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}
	return nil
}
