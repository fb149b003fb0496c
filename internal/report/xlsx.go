package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/breeze-rmm/patchaudit/internal/patching"
)

// DefaultSheet names the single sheet of a per-host workbook and the
// first sheet of a combined workbook.
const DefaultSheet = "Updates"

const maxSheetName = 31

// Sheet is one named worksheet of records.
type Sheet struct {
	Name    string
	Records []patching.Record
}

// EncodeXLSX writes a workbook with one worksheet per sheet, in order.
// Sheet names are made valid and unique.
func EncodeXLSX(w io.Writer, sheets []Sheet) error {
	if len(sheets) == 0 {
		sheets = []Sheet{{Name: DefaultSheet}}
	}

	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool, len(sheets))
	for i, sheet := range sheets {
		name := uniqueSheetName(SheetName(sheet.Name), used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("add sheet %q: %w", name, err)
		}
		if err := writeRows(f, name, sheet.Records); err != nil {
			return fmt.Errorf("sheet %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, records []patching.Record) error {
	if err := setRow(f, sheet, 1, patching.Columns); err != nil {
		return err
	}
	for i, r := range records {
		if err := setRow(f, sheet, i+2, r.Values()); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

// DecodeXLSX reads records from the first worksheet of a workbook.
func DecodeXLSX(r io.Reader) ([]patching.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &SchemaError{Missing: append([]string(nil), patching.Columns...)}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, &SchemaError{Missing: append([]string(nil), patching.Columns...)}
	}

	header := rows[0]
	if err := checkHeader(header); err != nil {
		return nil, err
	}
	idx := columnIndex(header)

	records := make([]patching.Record, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		values := make([]string, len(idx))
		for i, col := range idx {
			// GetRows drops trailing empty cells.
			if col < len(row) {
				values[i] = row[col]
			}
		}
		rec, err := patching.RecordFromValues(values)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// SheetName makes s acceptable as a worksheet name: the characters
// []:*?/\ become underscores, surrounding apostrophes are dropped and the
// result is cut to 31 characters. A short final "_segment", such as the
// installed state of a partition key, survives the cut.
func SheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, s)
	s = strings.Trim(strings.TrimSpace(s), "'")
	if s == "" {
		s = "Sheet"
	}
	if r := []rune(s); len(r) > maxSheetName {
		head, tail := splitTail(r)
		s = joinHead(head, "", tail, maxSheetName)
	}
	return s
}

// uniqueSheetName adds a counter when name is already taken, ahead of any
// short final segment. Excel compares sheet names case-insensitively.
func uniqueSheetName(name string, used map[string]bool) string {
	return uniqueName(name, used, maxSheetName)
}

// uniqueName is uniqueSheetName for names of at most limit runes.
func uniqueName(name string, used map[string]bool, limit int) string {
	head, tail := splitTail([]rune(name))
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		candidate = joinHead(head, fmt.Sprintf("_%d", n), tail, limit)
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

// maxTail bounds the final segment kept by splitTail.
const maxTail = 8

// splitTail splits name before its last underscore when what follows is
// short, e.g. "Windows_10_Pro" and "_Yes".
func splitTail(name []rune) (head, tail []rune) {
	for i := len(name) - 1; i > 0; i-- {
		if name[i] == '_' {
			if len(name)-i > maxTail {
				break
			}
			return name[:i], name[i:]
		}
	}
	return name, nil
}

// joinHead returns head+counter+tail, shortening head so the result fits
// in limit runes.
func joinHead(head []rune, counter string, tail []rune, limit int) string {
	room := limit - len([]rune(counter)) - len(tail)
	if room < 1 {
		// tail too long to keep
		head, tail = append(append([]rune{}, head...), tail...), nil
		room = limit - len([]rune(counter))
	}
	if len(head) > room {
		head = []rune(strings.TrimRight(string(head[:room]), "_"))
	}
	return string(head) + counter + string(tail)
}
