// Package xlsx loads .xlsx workbooks into tables and exports tables back to
// .xlsx bytes.
package xlsx

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/sheetkit/internal/table"
)

var (
	// ErrEmptyInput is returned for a zero-length upload.
	ErrEmptyInput = errors.New("file is empty")
	// ErrNoHeader is returned when a sheet has no non-blank row.
	ErrNoHeader = errors.New("sheet has no header row")
)

// LoadError reports why an uploaded spreadsheet could not become a table.
type LoadError struct {
	Source string // file path or "upload"
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("could not load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadOptions selects what part of a workbook becomes the table.
type LoadOptions struct {
	// Sheet names the sheet to read; empty means the first sheet.
	Sheet string
}

// SheetNames lists the sheets in a workbook.
func SheetNames(data []byte) ([]string, error) {
	f, err := open(data, "upload")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// LoadFile reads an .xlsx file and returns its table.
func LoadFile(path string, opts LoadOptions) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Source: path, Err: fmt.Errorf("file not found — check that the path is correct")}
		}
		return nil, &LoadError{Source: path, Err: err}
	}
	return load(data, path, opts)
}

// Load parses .xlsx bytes and returns the selected sheet as a table.
func Load(data []byte, opts LoadOptions) (*table.Table, error) {
	return load(data, "upload", opts)
}

func open(data []byte, source string) (*excelize.File, error) {
	if len(data) == 0 {
		return nil, &LoadError{Source: source, Err: ErrEmptyInput}
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("is this a valid .xlsx file? %w", err)}
	}
	return f, nil
}

func load(data []byte, source string, opts LoadOptions) (*table.Table, error) {
	f, err := open(data, source)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("workbook has no sheets")}
	}
	sheet := sheets[0]
	if opts.Sheet != "" {
		if !contains(sheets, opts.Sheet) {
			return nil, &LoadError{Source: source, Err: fmt.Errorf("sheet %q not found — available sheets: %v", opts.Sheet, sheets)}
		}
		sheet = opts.Sheet
	}

	t, err := readSheet(f, sheet)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	return t, nil
}

func readSheet(f *excelize.File, sheet string) (*table.Table, error) {
	shown, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("could not read sheet %q: %w", sheet, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("could not read sheet %q: %w", sheet, err)
	}

	// The header is the first non-blank row. Everything from there to the
	// last non-blank row is data, blank rows included, so a sheet written by
	// ExportTable loads back with the same row count.
	first, last := -1, -1
	for i, row := range shown {
		if blank(row) && blank(rowAt(raw, i)) {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}
	if first < 0 {
		return nil, ErrNoHeader
	}
	width := 0
	for i := first; i <= last; i++ {
		width = max(width, len(shown[i]), len(rowAt(raw, i)))
	}

	header := make([]string, width)
	copy(header, shown[first])
	columns := table.UniqueNames(header)

	rows := make([][]table.Cell, 0, last-first)
	for idx := first + 1; idx <= last; idx++ {
		row := make([]table.Cell, width)
		for col := 0; col < width; col++ {
			row[col] = readCell(f, sheet, idx, col, at(shown, idx, col), at(raw, idx, col))
		}
		rows = append(rows, row)
	}

	return table.New(columns, rows)
}

// readCell classifies a single value. String-typed cells are text. Other
// cells are numbers when both their stored and displayed values are numeric
// (so "3.50" under a 0.00 format loads as 3.5), and text otherwise, which
// keeps dates and currency in the form the user sees.
func readCell(f *excelize.File, sheet string, row, col int, shown, raw string) table.Cell {
	if shown == "" && raw == "" {
		return table.Missing()
	}
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return table.Text(shown)
	}
	typ, err := f.GetCellType(sheet, name)
	if err == nil && (typ == excelize.CellTypeSharedString || typ == excelize.CellTypeInlineString) {
		return table.Text(shown)
	}

	v, rawErr := strconv.ParseFloat(raw, 64)
	_, shownErr := strconv.ParseFloat(strings.TrimSpace(shown), 64)
	if rawErr == nil && shownErr == nil {
		return table.Number(v)
	}
	if shown == "" {
		return table.Parse(raw)
	}
	return table.Parse(shown)
}

func at(rows [][]string, row, col int) string {
	if row >= len(rows) || col >= len(rows[row]) {
		return ""
	}
	return rows[row][col]
}

func rowAt(rows [][]string, row int) []string {
	if row >= len(rows) {
		return nil
	}
	return rows[row]
}

// blank reports whether every cell of row is empty. A cell holding only
// spaces is a value.
func blank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
