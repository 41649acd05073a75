package prompt

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/klytics/sheetkit/internal/table"
)

// Fit encodes t as CSV, keeping the header and the longest prefix of rows
// whose encoding fits in maxChars bytes. It returns the encoding and the
// number of data rows kept. maxChars <= 0 keeps every row.
func Fit(t *table.Table, maxChars int) (string, int, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = table.Delimiter

	kept := 0
	for i, rec := range t.Records() {
		mark := buf.Len()
		if err := w.Write(rec); err != nil {
			return "", 0, fmt.Errorf("could not encode table as CSV: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", 0, fmt.Errorf("could not encode table as CSV: %w", err)
		}
		if i == 0 {
			continue
		}
		if maxChars > 0 && buf.Len() > maxChars {
			buf.Truncate(mark)
			break
		}
		kept++
	}
	return buf.String(), kept, nil
}
