package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/breeze-rmm/patchaudit/internal/config"
)

// AzureProvider stores reports as blobs in one container. Bucket names the
// container.
type AzureProvider struct {
	Container string
	client    *azblob.Client
}

// NewAzureProvider authenticates with a connection string, or with the
// storage account name and key held in AccessKeyID and SecretAccessKey.
func NewAzureProvider(cfg config.StoreConfig) (*AzureProvider, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("azure container is required")
	}

	var client *azblob.Client
	var err error
	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		var cred *azblob.SharedKeyCredential
		cred, err = azblob.NewSharedKeyCredential(cfg.AccessKeyID, cfg.SecretAccessKey)
		if err != nil {
			return nil, fmt.Errorf("azure shared key: %w", err)
		}
		serviceURL := cfg.Endpoint
		if serviceURL == "" {
			serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccessKeyID)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	default:
		return nil, errors.New("azure needs a connection string or account name and key")
	}
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}
	return &AzureProvider{Container: cfg.Bucket, client: client}, nil
}

func (a *AzureProvider) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := a.client.UploadFile(ctx, a.Container, remotePath, f, nil); err != nil {
		return fmt.Errorf("azure upload: %w", err)
	}
	return nil
}

func (a *AzureProvider) Download(ctx context.Context, remotePath, localPath string) error {
	return writeLocal(localPath, func(f *os.File) error {
		if _, err := a.client.DownloadFile(ctx, a.Container, remotePath, f, nil); err != nil {
			return fmt.Errorf("azure download: %w", err)
		}
		return nil
	})
}

func (a *AzureProvider) List(ctx context.Context, prefix string) ([]string, error) {
	opts := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		opts.Prefix = &prefix
	}

	var names []string
	pager := a.client.NewListBlobsFlatPager(a.Container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("azure list: %w", err)
		}
		for _, blob := range page.Segment.BlobItems {
			if blob.Name != nil {
				names = append(names, *blob.Name)
			}
		}
	}
	return names, nil
}
