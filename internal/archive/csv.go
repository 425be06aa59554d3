package archive

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"carboncore/internal/table"
)

// Archive CSV files mark missing values with sentinels that decode to the
// empty cell.
var missingSentinels = map[string]struct{}{
	"":    {},
	"NA":  {},
	"NaN": {},
}

// DecodeTable parses one CSV object into a table. The first record is the
// header; missing-value sentinels are normalized to empty cells.
func DecodeTable(name string, r io.Reader) (*table.Table, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("archive: decode %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("archive: decode %s: missing header", name)
	}
	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]string, len(record))
		for i, cell := range record {
			row[i] = normalizeCell(cell)
		}
		rows = append(rows, row)
	}
	return table.New(name, records[0], rows)
}

// EncodeTable writes a table back out as CSV with empty cells for missing
// values.
func EncodeTable(t *table.Table, w io.Writer) error {
	writer := csv.NewWriter(w)
	cols := t.Columns()
	if err := writer.Write(cols); err != nil {
		return err
	}
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		record := make([]string, len(cols))
		for j, col := range cols {
			cell, ok := r.Cell(col)
			if ok {
				record[j] = cell
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func normalizeCell(cell string) string {
	trimmed := strings.TrimSpace(cell)
	if _, ok := missingSentinels[trimmed]; ok {
		return ""
	}
	return trimmed
}
