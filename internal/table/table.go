// Package table implements the immutable tabular snapshots the estimators
// consume: inner joins preserving row multiplicity, column projection,
// keep-first deduplication, and grouping with missing-aware cell access.
//
// Cells hold raw text as decoded from the source archive; an empty cell is a
// missing value. Rows whose key cells are missing never participate in
// key-based operations (a missing identity cannot be matched), and inner
// joins silently drop unmatched rows; callers that depend on row-count
// retention validate it themselves.
package table

import (
	"fmt"
	"strconv"
	"strings"

	"carboncore/internal/units"
)

// Table is an immutable, ordered tabular snapshot.
type Table struct {
	name  string
	cols  []string
	index map[string]int
	rows  [][]string
}

// New constructs a table from column names and row cells. Every row must have
// exactly one cell per column and column names must be unique.
func New(name string, cols []string, rows [][]string) (*Table, error) {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if c == "" {
			return nil, fmt.Errorf("table %s: empty column name at position %d", name, i)
		}
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("table %s: duplicate column %q", name, c)
		}
		index[c] = i
	}
	for i, row := range rows {
		if len(row) != len(cols) {
			return nil, fmt.Errorf("table %s: row %d has %d cells, want %d", name, i, len(row), len(cols))
		}
	}
	return &Table{name: name, cols: append([]string(nil), cols...), index: index, rows: rows}, nil
}

// Name returns the table's source name.
func (t *Table) Name() string { return t.name }

// Len reports the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Columns returns a copy of the ordered column names.
func (t *Table) Columns() []string { return append([]string(nil), t.cols...) }

// Require verifies that every named column exists; a violated requirement is
// a structural error fatal to the caller's run.
func (t *Table) Require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			return fmt.Errorf("table %s: missing required column %q", t.name, c)
		}
	}
	return nil
}

// Row returns a view of row i.
func (t *Table) Row(i int) Row { return Row{t: t, i: i} }

// Row is a read-only view of one table row.
type Row struct {
	t *Table
	i int
}

// Cell returns the raw cell text; ok is false when the column does not exist
// or the cell is missing.
func (r Row) Cell(col string) (string, bool) {
	j, ok := r.t.index[col]
	if !ok {
		return "", false
	}
	v := r.t.rows[r.i][j]
	if v == "" {
		return "", false
	}
	return v, true
}

// Number parses the cell as a floating-point measurement. Missing and
// unparsable cells both yield a missing Number.
func (r Row) Number(col string) units.Number {
	raw, ok := r.Cell(col)
	if !ok {
		return units.None()
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return units.None()
	}
	return units.Some(v)
}

// Year extracts the four-digit year that leads a date cell
// (e.g. "2017-08-30" or "2017-08-30T14:00Z").
func (r Row) Year(col string) (int, bool) {
	raw, ok := r.Cell(col)
	if !ok || len(raw) < 4 {
		return 0, false
	}
	y, err := strconv.Atoi(raw[:4])
	if err != nil {
		return 0, false
	}
	return y, true
}

func (t *Table) key(row []string, keyIdx []int) (string, bool) {
	parts := make([]string, len(keyIdx))
	for k, j := range keyIdx {
		if row[j] == "" {
			return "", false
		}
		parts[k] = row[j]
	}
	return strings.Join(parts, "\x1f"), true
}

func (t *Table) keyIndexes(on []string) ([]int, error) {
	if len(on) == 0 {
		return nil, fmt.Errorf("table %s: at least one key column required", t.name)
	}
	idx := make([]int, len(on))
	for k, c := range on {
		j, ok := t.index[c]
		if !ok {
			return nil, fmt.Errorf("table %s: unknown key column %q", t.name, c)
		}
		idx[k] = j
	}
	return idx, nil
}

// Select projects the table to the named columns, preserving row order.
func (t *Table) Select(cols ...string) (*Table, error) {
	idx, err := t.keyIndexes(cols)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		out := make([]string, len(idx))
		for k, j := range idx {
			out[k] = row[j]
		}
		rows[i] = out
	}
	return New(t.name, cols, rows)
}

// Filter returns the rows for which keep reports true, preserving order.
func (t *Table) Filter(keep func(Row) bool) *Table {
	var rows [][]string
	for i := range t.rows {
		if keep(Row{t: t, i: i}) {
			rows = append(rows, t.rows[i])
		}
	}
	return &Table{name: t.name, cols: t.cols, index: t.index, rows: rows}
}

// InnerJoin joins two tables on the named key columns, preserving row
// multiplicity: every (left, right) pairing with equal keys produces one
// output row, ordered by left row then right row. Non-key columns must not
// collide; callers project first when sources share measurement columns.
func (t *Table) InnerJoin(right *Table, on ...string) (*Table, error) {
	leftIdx, err := t.keyIndexes(on)
	if err != nil {
		return nil, err
	}
	rightIdx, err := right.keyIndexes(on)
	if err != nil {
		return nil, err
	}
	onSet := make(map[string]struct{}, len(on))
	for _, c := range on {
		onSet[c] = struct{}{}
	}
	var rightCarry []int
	cols := append([]string(nil), t.cols...)
	for j, c := range right.cols {
		if _, isKey := onSet[c]; isKey {
			continue
		}
		if _, clash := t.index[c]; clash {
			return nil, fmt.Errorf("join %s with %s: column %q present on both sides", t.name, right.name, c)
		}
		cols = append(cols, c)
		rightCarry = append(rightCarry, j)
	}

	matches := make(map[string][]int)
	for i, row := range right.rows {
		k, ok := right.key(row, rightIdx)
		if !ok {
			continue
		}
		matches[k] = append(matches[k], i)
	}

	var rows [][]string
	for _, row := range t.rows {
		k, ok := t.key(row, leftIdx)
		if !ok {
			continue
		}
		for _, ri := range matches[k] {
			out := make([]string, 0, len(cols))
			out = append(out, row...)
			for _, j := range rightCarry {
				out = append(out, right.rows[ri][j])
			}
			rows = append(rows, out)
		}
	}
	return New(t.name, cols, rows)
}

// FirstPerKey deduplicates to the first occurrence per key, preserving the
// order of first appearance. Rows with missing key cells are dropped.
func (t *Table) FirstPerKey(on ...string) (*Table, error) {
	idx, err := t.keyIndexes(on)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var rows [][]string
	for _, row := range t.rows {
		k, ok := t.key(row, idx)
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, row)
	}
	return &Table{name: t.name, cols: t.cols, index: t.index, rows: rows}, nil
}

// Group is one key's rows from a GroupBy, in source order.
type Group struct {
	Key  []string
	Rows []Row
}

// GroupBy partitions rows by the named key columns. Groups are ordered by
// first appearance; rows with missing key cells are excluded.
func (t *Table) GroupBy(on ...string) ([]Group, error) {
	idx, err := t.keyIndexes(on)
	if err != nil {
		return nil, err
	}
	order := make([]string, 0)
	buckets := make(map[string]*Group)
	for i, row := range t.rows {
		k, ok := t.key(row, idx)
		if !ok {
			continue
		}
		g, exists := buckets[k]
		if !exists {
			keyVals := make([]string, len(idx))
			for kk, j := range idx {
				keyVals[kk] = row[j]
			}
			g = &Group{Key: keyVals}
			buckets[k] = g
			order = append(order, k)
		}
		g.Rows = append(g.Rows, Row{t: t, i: i})
	}
	groups := make([]Group, len(order))
	for i, k := range order {
		groups[i] = *buckets[k]
	}
	return groups, nil
}
