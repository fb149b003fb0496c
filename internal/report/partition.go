package report

import (
	"path/filepath"
	"strings"

	"github.com/breeze-rmm/patchaudit/internal/patching"
)

// AllSheet names the combined workbook sheet holding every record.
const AllSheet = "All"

const maxPartitionName = 200

// Partition is a named bucket of records sharing a derived key.
type Partition struct {
	Name    string
	Records []patching.Record
}

// KeyFunc derives the partition key of a record.
type KeyFunc func(patching.Record) string

// ByOSAndInstalled keys a record by its OS version and installed state,
// e.g. "Windows_10_Yes".
func ByOSAndInstalled(r patching.Record) string {
	return strings.ReplaceAll(r.OSVersion+"_"+r.Installed.String(), " ", "_")
}

// PartitionBy groups records by key. Partitions appear in the order their
// key is first seen and keep record order within each bucket.
func PartitionBy(records []patching.Record, key KeyFunc) []Partition {
	index := make(map[string]int)
	var parts []Partition
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(parts)
			index[k] = i
			parts = append(parts, Partition{Name: k})
		}
		parts[i].Records = append(parts[i].Records, r)
	}
	return parts
}

// WriteCombined writes the combined report to path. With partitions, an
// xlsx workbook gains one sheet per partition after the All sheet, and csv
// output gains one sibling file per partition named <stem>_<partition>.csv.
// Partition names that map to the same file name get a counter. The
// returned slice lists every file written.
func WriteCombined(path string, format Format, records []patching.Record, partitions []Partition) ([]string, error) {
	if format == XLSX {
		sheets := make([]Sheet, 0, len(partitions)+1)
		sheets = append(sheets, Sheet{Name: AllSheet, Records: records})
		for _, p := range partitions {
			sheets = append(sheets, Sheet{Name: p.Name, Records: p.Records})
		}
		if err := WriteSheets(path, format, sheets); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	if err := WriteFile(path, format, records); err != nil {
		return nil, err
	}
	written := []string{path}

	stem := strings.TrimSuffix(path, filepath.Ext(path))
	used := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		partPath := stem + "_" + uniqueName(fileSafe(p.Name), used, maxPartitionName) + format.Ext()
		if err := WriteFile(partPath, format, p.Records); err != nil {
			return written, err
		}
		written = append(written, partPath)
	}
	return written, nil
}

func fileSafe(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
