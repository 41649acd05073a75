package xlsx

import (
	"fmt"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/sheetkit/internal/table"
)

const (
	// ContentType is the MIME type of an .xlsx workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// DefaultFilename is the suggested download name for exported tables.
	DefaultFilename = "cleaned_data.xlsx"
	// DefaultSheet is the name of the single exported sheet.
	DefaultSheet = "Sheet1"
)

// Export is an in-memory workbook ready to hand to a user.
type Export struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ExportError means a well-formed table could not be serialized. It signals
// a bug rather than bad input.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("could not export table: %v", e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// WriteOptions controls the exported workbook.
type WriteOptions struct {
	Sheet    string
	Filename string
}

// ToBytes exports t with default options.
func ToBytes(t *table.Table) (*Export, error) {
	return ExportTable(t, WriteOptions{})
}

// ExportTable renders t as a single-sheet workbook: header in row 1, numbers
// as numeric cells, text as strings, missing cells left empty.
func ExportTable(t *table.Table, opts WriteOptions) (*Export, error) {
	if t == nil {
		return nil, &ExportError{Err: fmt.Errorf("nil table")}
	}
	if opts.Sheet == "" {
		opts.Sheet = DefaultSheet
	}
	if opts.Filename == "" {
		opts.Filename = DefaultFilename
	}

	f := excelize.NewFile()
	defer f.Close()

	if first := f.GetSheetName(0); first != opts.Sheet {
		if err := f.SetSheetName(first, opts.Sheet); err != nil {
			return nil, &ExportError{Err: fmt.Errorf("could not rename sheet: %w", err)}
		}
	}

	for col, name := range t.Columns() {
		if err := setCell(f, opts.Sheet, 0, col, table.Text(name)); err != nil {
			return nil, &ExportError{Err: err}
		}
	}
	for row := 0; row < t.NumRows(); row++ {
		for col := 0; col < t.NumCols(); col++ {
			if err := setCell(f, opts.Sheet, row+1, col, t.Cell(row, col)); err != nil {
				return nil, &ExportError{Err: err}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, &ExportError{Err: fmt.Errorf("could not encode workbook: %w", err)}
	}

	return &Export{
		Data:        buf.Bytes(),
		Filename:    opts.Filename,
		ContentType: ContentType,
	}, nil
}

func setCell(f *excelize.File, sheet string, row, col int, c table.Cell) error {
	if c.IsMissing() {
		return nil
	}
	cellName, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Errorf("invalid cell coordinates: %w", err)
	}
	if v, ok := c.Float(); ok {
		if err := f.SetCellFloat(sheet, cellName, v, -1, 64); err != nil {
			return fmt.Errorf("could not set cell %s: %w", cellName, err)
		}
		return nil
	}
	if err := f.SetCellStr(sheet, cellName, c.String()); err != nil {
		return fmt.Errorf("could not set cell %s: %w", cellName, err)
	}
	return nil
}

// WriteFile exports t and saves the workbook at path.
func WriteFile(t *table.Table, path string) error {
	exp, err := ToBytes(t)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, exp.Data, 0o644); err != nil {
		return fmt.Errorf("could not save %s: %w", path, err)
	}
	return nil
}
