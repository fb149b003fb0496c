// Package storage moves report files between the collection directory and
// a shared report store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/breeze-rmm/patchaudit/internal/config"
	"github.com/breeze-rmm/patchaudit/internal/logging"
)

// Provider is a report store. Remote paths are slash-separated keys.
type Provider interface {
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// ErrNoProvider is returned by New when no store is configured.
var ErrNoProvider = errors.New("no report store configured")

// New creates the provider selected by cfg.Provider.
func New(ctx context.Context, cfg config.StoreConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, ErrNoProvider
	case "local":
		return NewLocalProvider(cfg.Path), nil
	case "s3":
		return NewS3Provider(ctx, cfg)
	case "azure":
		return NewAzureProvider(cfg)
	case "gcs":
		return NewGCSProvider(ctx, cfg)
	case "b2":
		return NewB2Provider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Provider)
	}
}

// Key joins a store prefix and a file name into an object key.
func Key(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Push uploads each local file under prefix, keyed by its base name.
func Push(ctx context.Context, p Provider, prefix string, localPaths ...string) error {
	log := logging.Component(logging.FromContext(ctx), "storage")
	for _, lp := range localPaths {
		key := Key(prefix, filepath.Base(lp))
		if err := p.Upload(ctx, lp, key); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		log.Info("uploaded report", slog.String(logging.KeyPath, lp), slog.String("key", key))
	}
	return nil
}

// Pull downloads every object under prefix whose name ends in ext into
// dir, flattening keys to their base name. Excluded base names (without
// extension) are skipped. It returns the local paths written.
func Pull(ctx context.Context, p Provider, prefix, dir, ext string, exclude ...string) ([]string, error) {
	log := logging.Component(logging.FromContext(ctx), "storage")

	keys, err := p.List(ctx, strings.Trim(prefix, "/"))
	if err != nil {
		return nil, fmt.Errorf("list store: %w", err)
	}

	var written []string
	for _, key := range keys {
		name := path.Base(key)
		if !strings.EqualFold(path.Ext(name), ext) || isExcluded(strings.TrimSuffix(name, path.Ext(name)), exclude) {
			continue
		}
		local := filepath.Join(dir, name)
		if err := p.Download(ctx, key, local); err != nil {
			return written, fmt.Errorf("download %s: %w", key, err)
		}
		written = append(written, local)
		log.Debug("downloaded report", slog.String("key", key), slog.String(logging.KeyPath, local))
	}
	log.Info("pulled reports from store", slog.Int("files", len(written)))
	return written, nil
}

// streamUpload copies src into the writer opened by open. Object writers
// commit on Close, so a failed copy cancels the writer's context first and
// the partial object is abandoned instead of stored.
func streamUpload(ctx context.Context, open func(ctx context.Context) io.WriteCloser, src io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := open(ctx)
	if _, err := io.Copy(w, src); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

func isExcluded(stem string, exclude []string) bool {
	for _, x := range exclude {
		if x != "" && (stem == x || strings.HasPrefix(stem, x+"_")) {
			return true
		}
	}
	return false
}
