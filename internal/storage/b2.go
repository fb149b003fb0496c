package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Backblaze/blazer/b2"

	"github.com/breeze-rmm/patchaudit/internal/config"
)

// B2Provider stores reports in a Backblaze B2 bucket. AccessKeyID holds
// the key id and SecretAccessKey the application key.
type B2Provider struct {
	bucket *b2.Bucket
}

func NewB2Provider(ctx context.Context, cfg config.StoreConfig) (*B2Provider, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("b2 bucket, key id and application key are required")
	}

	client, err := b2.NewClient(ctx, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("b2 bucket %s: %w", cfg.Bucket, err)
	}
	return &B2Provider{bucket: bucket}, nil
}

func (b *B2Provider) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	obj := b.bucket.Object(remotePath)
	err = streamUpload(ctx, func(ctx context.Context) io.WriteCloser { return obj.NewWriter(ctx) }, f)
	if err != nil {
		return fmt.Errorf("b2 upload: %w", err)
	}
	return nil
}

func (b *B2Provider) Download(ctx context.Context, remotePath, localPath string) error {
	r := b.bucket.Object(remotePath).NewReader(ctx)
	defer r.Close()

	return writeLocal(localPath, func(f *os.File) error {
		if _, err := io.Copy(f, r); err != nil {
			return fmt.Errorf("b2 download: %w", err)
		}
		return nil
	})
}

func (b *B2Provider) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	iter := b.bucket.List(ctx, b2.ListPrefix(prefix))
	for iter.Next() {
		names = append(names, iter.Object().Name())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("b2 list: %w", err)
	}
	return names, nil
}
