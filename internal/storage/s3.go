package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/breeze-rmm/patchaudit/internal/config"
)

// S3Client is the subset of the S3 API the provider uses.
type S3Client interface {
	s3.ListObjectsV2APIClient
	manager.UploadAPIClient
	manager.DownloadAPIClient
}

// S3Provider stores reports in an S3 or S3-compatible bucket.
type S3Provider struct {
	Bucket string
	client S3Client
}

// NewS3Provider loads the default AWS configuration for cfg.Region. Static
// keys in cfg take precedence over the default credential chain, and
// cfg.Endpoint selects an S3-compatible service with path-style addressing.
func NewS3Provider(ctx context.Context, cfg config.StoreConfig) (*S3Provider, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, errors.New("s3 bucket and region are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3ProviderWithClient(cfg.Bucket, client), nil
}

// NewS3ProviderWithClient wraps an existing client.
func NewS3ProviderWithClient(bucket string, client S3Client) *S3Provider {
	return &S3Provider{Bucket: bucket, client: client}
}

func (s *S3Provider) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = manager.NewUploader(s.client).Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(remotePath),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}

func (s *S3Provider) Download(ctx context.Context, remotePath, localPath string) error {
	return writeLocal(localPath, func(f *os.File) error {
		_, err := manager.NewDownloader(s.client).Download(ctx, f, &s3.GetObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(remotePath),
		})
		if err != nil {
			return fmt.Errorf("s3 download: %w", err)
		}
		return nil
	})
}

func (s *S3Provider) List(ctx context.Context, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.Bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// writeLocal creates localPath's directory and a temp file beside it, lets
// fill write the content, then renames the temp file into place.
func writeLocal(localPath string, fill func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	tmpPath := tmp.Name()

	err = fill(tmp)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0o644)
	}
	if err == nil {
		err = os.Rename(tmpPath, localPath)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
