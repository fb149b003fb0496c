package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
)

// FileName returns the default export name for a sweep started at t.
func FileName(t time.Time) string {
	return "network_scan_" + t.Format("20060102_150405") + ".csv"
}

// Export writes devices as CSV with the columns ip, hostname and status,
// and returns the absolute path written.
func Export(path string, devices []Device) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return "", err
	}
	if devices == nil {
		devices = []Device{}
	}
	if err := gocsv.Marshal(&devices, f); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", abs, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return abs, nil
}
