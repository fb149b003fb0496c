package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/breeze-rmm/patchaudit/internal/config"
)

// GCSProvider stores reports in a Google Cloud Storage bucket.
type GCSProvider struct {
	Bucket string
	client *gcs.Client
}

// NewGCSProvider uses application default credentials unless
// cfg.CredentialsFile names a service account key.
func NewGCSProvider(ctx context.Context, cfg config.StoreConfig) (*GCSProvider, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &GCSProvider{Bucket: cfg.Bucket, client: client}, nil
}

func (g *GCSProvider) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	obj := g.client.Bucket(g.Bucket).Object(remotePath)
	err = streamUpload(ctx, func(ctx context.Context) io.WriteCloser { return obj.NewWriter(ctx) }, f)
	if err != nil {
		return fmt.Errorf("gcs upload: %w", err)
	}
	return nil
}

func (g *GCSProvider) Download(ctx context.Context, remotePath, localPath string) error {
	r, err := g.client.Bucket(g.Bucket).Object(remotePath).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("gcs download: %w", err)
	}
	defer r.Close()

	return writeLocal(localPath, func(f *os.File) error {
		if _, err := io.Copy(f, r); err != nil {
			return fmt.Errorf("gcs download: %w", err)
		}
		return nil
	})
}

func (g *GCSProvider) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := g.client.Bucket(g.Bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs list: %w", err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}
