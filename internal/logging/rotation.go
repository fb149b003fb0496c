package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter appends to a log file and shifts it to numbered backups
// (<path>.1 is the newest) once it would grow past its size limit. A run
// that starts on an already oversized file rotates before its first line.
type RotatingWriter struct {
	mu      sync.Mutex
	path    string
	limit   int64
	backups int
	file    *os.File
	size    int64
}

// NewRotatingWriter opens filePath for appending. Non-positive limits fall
// back to 10 MB and 3 backups.
func NewRotatingWriter(filePath string, maxSizeMB int, maxBackups int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxBackups <= 0 {
		maxBackups = 3
	}
	return newRotatingWriter(filePath, int64(maxSizeMB)<<20, maxBackups)
}

func newRotatingWriter(filePath string, limit int64, backups int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	rw := &RotatingWriter{path: filePath, limit: limit, backups: backups}
	if err := rw.open(); err != nil {
		return nil, err
	}
	if rw.size >= rw.limit {
		if err := rw.shift(); err != nil {
			return nil, err
		}
	}
	return rw, nil
}

func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		if err := rw.open(); err != nil {
			return 0, err
		}
	}
	if rw.size > 0 && rw.size+int64(len(p)) > rw.limit {
		if err := rw.shift(); err != nil {
			return 0, fmt.Errorf("log rotation: %w", err)
		}
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file == nil {
		return nil
	}
	err := rw.file.Close()
	rw.file = nil
	return err
}

func (rw *RotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file, rw.size = f, info.Size()
	return nil
}

// shift closes the live file, drops the oldest backup, renames the others
// up by one and reopens an empty live file.
func (rw *RotatingWriter) shift() error {
	var errs []error
	if rw.file != nil {
		errs = append(errs, rw.file.Close())
		rw.file = nil
	}

	ignoreMissing := func(err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	errs = append(errs, ignoreMissing(os.Remove(rw.backup(rw.backups))))
	for i := rw.backups - 1; i >= 0; i-- {
		errs = append(errs, ignoreMissing(os.Rename(rw.backup(i), rw.backup(i+1))))
	}

	errs = append(errs, rw.open())
	return errors.Join(errs...)
}

// backup returns the name of backup n; 0 is the live file.
func (rw *RotatingWriter) backup(n int) string {
	if n == 0 {
		return rw.path
	}
	return fmt.Sprintf("%s.%d", rw.path, n)
}
