package collectors

import (
	"context"
	"fmt"
	"os"

	"github.com/breeze-rmm/patchaudit/internal/patching"
)

// FileSource reads installed patch ids from a text file, one per line.
// It works on any OS and serves exported inventories.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string {
	return "file"
}

func (s *FileSource) InstalledPatchIDs(ctx context.Context) (patching.PatchSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	set, err := parseIDLines(f, "")
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return set, nil
}
