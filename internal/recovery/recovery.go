// Package recovery interprets a model reply as a table.
//
// Recover either returns the whole table or nothing: a reply with any row
// whose field count disagrees with the header, or that cannot be decoded
// unambiguously, yields Unrecovered with a diagnostic explaining why. The
// raw text is kept so it can still be shown to the user.
package recovery

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klytics/sheetkit/internal/table"
)

// Reason says why a reply could not become a table.
type Reason int

const (
	// ReasonNoRows means the reply was empty or held only a header.
	ReasonNoRows Reason = iota + 1
	// ReasonDecode means the text is not valid CSV (stray or unbalanced quotes).
	ReasonDecode
	// ReasonFieldCount means a row's field count differs from the header's.
	ReasonFieldCount
	// ReasonBadHeader means a column name is empty or repeated.
	ReasonBadHeader
	// ReasonInternal means parsing failed unexpectedly.
	ReasonInternal
)

func (r Reason) String() string {
	switch r {
	case ReasonNoRows:
		return "no_data_rows"
	case ReasonDecode:
		return "decode_error"
	case ReasonFieldCount:
		return "field_count_mismatch"
	case ReasonBadHeader:
		return "invalid_header"
	case ReasonInternal:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Outcome is either Recovered or Unrecovered.
type Outcome interface {
	// Status is "recovered" or "unrecovered".
	Status() string
	outcome()
}

// Recovered carries the table parsed from the reply.
type Recovered struct {
	Table *table.Table
}

// Status implements Outcome.
func (Recovered) Status() string { return "recovered" }
func (Recovered) outcome()       {}

// Unrecovered carries the raw reply and an explanation.
type Unrecovered struct {
	Raw        string
	Reason     Reason
	Diagnostic string
}

// Status implements Outcome.
func (Unrecovered) Status() string { return "unrecovered" }
func (Unrecovered) outcome()       {}

// Recover parses text as a CSV table: a header row followed by data rows.
// Leading and trailing blank lines, CRLF line endings, a UTF-8 BOM, a single
// enclosing Markdown code fence and one trailing delimiter per row are
// tolerated. Recover never panics and never returns a partial table.
func Recover(text string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Unrecovered{
				Raw:        text,
				Reason:     ReasonInternal,
				Diagnostic: fmt.Sprintf("internal error while parsing the reply: %v", r),
			}
		}
	}()

	body, offset := normalize(text)
	if body == "" {
		return fail(text, ReasonNoRows, "the reply is empty: no data rows")
	}

	r := csv.NewReader(strings.NewReader(body))
	r.Comma = table.Delimiter
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return decodeFailure(text, err, offset)
	}
	header = dropTrailingEmpty(header)
	if diag := checkHeader(header); diag != "" {
		return fail(text, ReasonBadHeader, diag)
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return decodeFailure(text, err, offset)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			// whitespace-only line
			continue
		}

		switch {
		case len(rec) == len(header):
		case len(rec) == len(header)+1 && rec[len(header)] == "":
			rec = rec[:len(header)]
		default:
			line, _ := r.FieldPos(0)
			return fail(text, ReasonFieldCount, fieldCountDiagnostic(line+offset, len(rec), header, len(records) == 0))
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return fail(text, ReasonNoRows, fmt.Sprintf("the reply has a header (%s) but no data rows", strings.Join(header, ", ")))
	}

	t, err := table.FromRecords(header, records)
	if err != nil {
		return fail(text, ReasonInternal, fmt.Sprintf("could not build a table from the reply: %v", err))
	}
	return Recovered{Table: t}
}

func fail(raw string, reason Reason, diagnostic string) Unrecovered {
	return Unrecovered{Raw: raw, Reason: reason, Diagnostic: diagnostic}
}

func decodeFailure(raw string, err error, offset int) Unrecovered {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return fail(raw, ReasonDecode, fmt.Sprintf(
			"the reply is not valid CSV at line %d, column %d: %v", pe.Line+offset, pe.Column, pe.Err))
	}
	return fail(raw, ReasonDecode, fmt.Sprintf("the reply is not valid CSV: %v", err))
}

func fieldCountDiagnostic(line, got int, header []string, firstRow bool) string {
	msg := fmt.Sprintf("row/column count mismatch: line %d has %d fields, the header has %d (%s)",
		line, got, len(header), strings.Join(header, ", "))
	if firstRow && len(header) == 1 {
		msg += "; the reply may start with commentary instead of the header row"
	}
	return msg
}

// checkHeader trims column names in place and reports empty or repeated ones.
func checkHeader(header []string) string {
	seen := make(map[string]int, len(header))
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
		name := header[i]
		if name == "" {
			return fmt.Sprintf("invalid header: column %d has no name", i+1)
		}
		if prev, ok := seen[name]; ok {
			return fmt.Sprintf("invalid header: column name %q appears in columns %d and %d", name, prev+1, i+1)
		}
		seen[name] = i
	}
	return ""
}

func dropTrailingEmpty(header []string) []string {
	if n := len(header); n > 1 && strings.TrimSpace(header[n-1]) == "" {
		return header[:n-1]
	}
	return header
}
