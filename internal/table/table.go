// Package table defines the in-memory row/column value that flows through
// every sheetkit pipeline: loaded from a spreadsheet, described to a model,
// recovered from a model reply and exported again.
//
// A Table is immutable once constructed. Every transformation returns a new
// Table, so a failed step never corrupts the caller's copy.
package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoColumns is returned when a table would have no columns.
	ErrNoColumns = errors.New("table has no columns")
	// ErrEmptyColumnName is returned for a blank column name.
	ErrEmptyColumnName = errors.New("empty column name")
	// ErrDuplicateColumn is returned when two columns share a name.
	ErrDuplicateColumn = errors.New("duplicate column name")
	// ErrRaggedRow is returned when a row's length differs from the header's.
	ErrRaggedRow = errors.New("row length does not match column count")
)

// Table is an ordered set of uniquely named columns of equal length.
type Table struct {
	columns []string
	rows    [][]Cell
}

// New builds a table from column names and row-major cells. It copies its
// inputs and rejects empty or duplicate names and rows whose length differs
// from len(columns).
func New(columns []string, rows [][]Cell) (*Table, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}
	seen := make(map[string]int, len(columns))
	for i, name := range columns {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("column %d: %w", i+1, ErrEmptyColumnName)
		}
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w %q (columns %d and %d)", ErrDuplicateColumn, name, prev+1, i+1)
		}
		seen[name] = i
	}

	t := &Table{
		columns: append([]string(nil), columns...),
		rows:    make([][]Cell, len(rows)),
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d: %w", i+1, len(row), len(columns), ErrRaggedRow)
		}
		t.rows[i] = append([]Cell(nil), row...)
	}
	return t, nil
}

// FromRecords builds a table from a header and string records, classifying
// each value with Parse.
func FromRecords(header []string, records [][]string) (*Table, error) {
	rows := make([][]Cell, len(records))
	for i, rec := range records {
		row := make([]Cell, len(rec))
		for j, v := range rec {
			row[j] = Parse(v)
		}
		rows[i] = row
	}
	return New(header, rows)
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.columns) }

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.rows) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the cell at the given zero-based row and column.
func (t *Table) Cell(row, col int) Cell {
	return t.rows[row][col]
}

// Row returns a copy of the given zero-based row.
func (t *Table) Row(i int) []Cell {
	return append([]Cell(nil), t.rows[i]...)
}

// Rows returns a deep copy of all rows.
func (t *Table) Rows() [][]Cell {
	out := make([][]Cell, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]Cell, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]Cell, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx]
	}
	return out, true
}

// Records renders the header followed by every row as strings.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.rows)+1)
	out = append(out, t.Columns())
	for _, row := range t.rows {
		rec := make([]string, len(row))
		for j, c := range row {
			rec[j] = c.String()
		}
		out = append(out, rec)
	}
	return out
}

// Head returns a table with at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n >= len(t.rows) {
		n = len(t.rows)
	}
	return &Table{columns: t.Columns(), rows: cloneRows(t.rows[:n])}
}

// Equal reports whether both tables have the same columns and cells.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.columns) != len(o.columns) || len(t.rows) != len(o.rows) {
		return false
	}
	for i := range t.columns {
		if t.columns[i] != o.columns[i] {
			return false
		}
	}
	for i := range t.rows {
		for j := range t.rows[i] {
			if !t.rows[i][j].Equal(o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}

type tableJSON struct {
	Columns []string `json:"columns"`
	Rows    [][]Cell `json:"rows"`
}

// MarshalJSON encodes the table as {"columns": [...], "rows": [[...]]}.
func (t *Table) MarshalJSON() ([]byte, error) {
	rows := t.rows
	if rows == nil {
		rows = [][]Cell{}
	}
	return json.Marshal(tableJSON{Columns: t.columns, Rows: rows})
}

// UnmarshalJSON decodes the MarshalJSON form, enforcing the same invariants
// as New.
func (t *Table) UnmarshalJSON(data []byte) error {
	var raw tableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	built, err := New(raw.Columns, raw.Rows)
	if err != nil {
		return err
	}
	*t = *built
	return nil
}

func cloneRows(rows [][]Cell) [][]Cell {
	out := make([][]Cell, len(rows))
	for i, r := range rows {
		out[i] = append([]Cell(nil), r...)
	}
	return out
}
