package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/breeze-rmm/patchaudit/internal/patching"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// EncodeCSV writes the header row followed by one row per record.
func EncodeCSV(w io.Writer, records []patching.Record) error {
	if records == nil {
		records = []patching.Record{}
	}
	return gocsv.Marshal(&records, w)
}

// DecodeCSV reads records from a CSV stream. The header must hold exactly
// the declared columns, in any order.
func DecodeCSV(r io.Reader) ([]patching.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Missing: append([]string(nil), patching.Columns...)}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var records []patching.Record
	if err := gocsv.UnmarshalBytes(data, &records); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return records, nil
}
