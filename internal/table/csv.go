package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Delimiter is the field separator used both when describing a table to a
// model and when reading the model's reply back.
const Delimiter = ','

// WriteCSV writes the header and rows as RFC 4180 CSV with \n line endings.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("could not encode table as CSV: %w", err)
	}
	return nil
}

// CSV returns the table encoded by WriteCSV.
func (t *Table) CSV() string {
	var b strings.Builder
	// strings.Builder never fails
	_ = t.WriteCSV(&b)
	return b.String()
}
