package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/breeze-rmm/patchaudit/internal/patching"
)

// ErrSchemaMismatch marks a file whose header is not the declared column set.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaError describes a header that does not match patching.Columns.
type SchemaError struct {
	Path       string
	Missing    []string
	Unexpected []string
	Duplicated []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ","))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, "duplicated "+strings.Join(e.Duplicated, ","))
	}
	where := ""
	if e.Path != "" {
		where = e.Path + ": "
	}
	return fmt.Sprintf("%s%s: %s", where, ErrSchemaMismatch, strings.Join(parts, "; "))
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// checkHeader verifies header holds exactly the declared columns. Column
// order is free.
func checkHeader(header []string) error {
	want := make(map[string]bool, len(patching.Columns))
	for _, c := range patching.Columns {
		want[c] = false
	}

	e := &SchemaError{}
	for _, h := range header {
		seen, known := want[h]
		switch {
		case !known:
			e.Unexpected = append(e.Unexpected, h)
		case seen:
			e.Duplicated = append(e.Duplicated, h)
		default:
			want[h] = true
		}
	}
	for _, c := range patching.Columns {
		if !want[c] {
			e.Missing = append(e.Missing, c)
		}
	}

	if len(e.Missing)+len(e.Unexpected)+len(e.Duplicated) > 0 {
		return e
	}
	return nil
}

// columnIndex maps each declared column to its position in a checked header.
func columnIndex(header []string) []int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[h] = i
	}
	idx := make([]int, len(patching.Columns))
	for i, c := range patching.Columns {
		idx[i] = pos[c]
	}
	return idx
}
