package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ark-go/internal/ark"
	"ark-go/internal/config"
)

// S3Transport stores bundle artifacts in an S3 bucket. Uploads go through
// the multipart upload manager so large archives stream without buffering in
// memory.
type S3Transport struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ ark.ArchiveTransport = (*S3Transport)(nil)

// NewS3Transport creates an S3 transport from configuration. Credentials
// fall back to the default AWS credential chain when not set explicitly.
func NewS3Transport(cfg config.ArchiveConfig) (*S3Transport, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 transport requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Transport{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
	}, nil
}

func (t *S3Transport) key(label string) string {
	if t.prefix == "" {
		return "bundles/" + label
	}
	return t.prefix + "/bundles/" + label
}

// Store uploads the artifact under label.
func (t *S3Transport) Store(label string, r io.Reader, size int64) error {
	_, err := t.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(t.key(label)),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("uploading artifact to s3: %w", err)
	}
	return nil
}

// Fetch downloads the artifact stored under label and writes it to w.
func (t *S3Transport) Fetch(label string, w io.Writer) error {
	out, err := t.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key(label)),
	})
	if err != nil {
		return fmt.Errorf("fetching artifact from s3: %w", err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading artifact body: %w", err)
	}
	return nil
}

// ValidateSetup verifies the bucket is reachable.
func (t *S3Transport) ValidateSetup() error {
	_, err := t.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(t.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 bucket not accessible: %w", err)
	}
	return nil
}
