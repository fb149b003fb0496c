package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/breeze-rmm/patchaudit/internal/patching"
)

// Format is a tabular file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat accepts "csv" or "xlsx" in any case, with or without a
// leading dot.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))) {
	case CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// ReadFile decodes the records of a per-host or combined file. The format
// follows the file extension. Schema errors carry the path.
func ReadFile(path string) ([]patching.Record, error) {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []patching.Record
	switch format {
	case XLSX:
		records, err = DecodeXLSX(f)
	default:
		records, err = DecodeCSV(f)
	}

	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		schemaErr.Path = path
		return nil, schemaErr
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// WriteFile writes records as a single-table file in the given format.
func WriteFile(path string, format Format, records []patching.Record) error {
	return WriteSheets(path, format, []Sheet{{Name: DefaultSheet, Records: records}})
}

// WriteSheets writes a workbook with one worksheet per sheet. CSV holds a
// single table, so only the first sheet is written.
func WriteSheets(path string, format Format, sheets []Sheet) error {
	var buf bytes.Buffer
	switch format {
	case XLSX:
		if err := EncodeXLSX(&buf, sheets); err != nil {
			return err
		}
	case CSV:
		var records []patching.Record
		if len(sheets) > 0 {
			records = sheets[0].Records
		}
		if err := EncodeCSV(&buf, records); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return writeAtomic(path, buf.Bytes())
}

// writeAtomic writes data to a temp file beside path and renames it into
// place, so readers never observe a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// Discover lists the files in dir with the format's extension, sorted by
// name. Files whose base name is one of exclude, or starts with an
// excluded name followed by an underscore, are left out; that covers the
// combined output and its partition files.
func Discover(dir string, format Format, exclude ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	ext := format.Ext()
	var paths []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		if excluded(strings.TrimSuffix(name, filepath.Ext(name)), exclude) {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

func excluded(stem string, exclude []string) bool {
	for _, x := range exclude {
		if x == "" {
			continue
		}
		if stem == x || strings.HasPrefix(stem, x+"_") {
			return true
		}
	}
	return false
}
