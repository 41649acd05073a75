package table

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies what a Cell holds.
type Kind int

const (
	// KindMissing is an empty cell.
	KindMissing Kind = iota
	// KindText is a string cell.
	KindText
	// KindNumber is a numeric cell.
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "missing"
	}
}

// Cell is a single table value: text, number, or missing.
type Cell struct {
	kind Kind
	text string
	num  float64
}

// Text returns a text cell. The empty string is missing, as it is in a
// spreadsheet; whitespace is kept as text.
func Text(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{kind: KindText, text: s}
}

// Number returns a numeric cell. Non-finite values are treated as missing.
func Number(v float64) Cell {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Cell{}
	}
	return Cell{kind: KindNumber, num: v}
}

// Missing returns the missing-value marker.
func Missing() Cell {
	return Cell{}
}

// Parse classifies a textual value. The empty string is missing; the
// canonical decimal rendering of a finite float is a number; anything else
// is text. "25" and "3.5" become numbers, "007" and "3.50" stay text, so the
// original spelling always survives a round trip.
func Parse(s string) Cell {
	if s == "" {
		return Cell{}
	}
	if v, ok := canonicalFloat(s); ok {
		return Number(v)
	}
	return Text(s)
}

func canonicalFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, formatFloat(v) == s
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Kind returns the cell kind.
func (c Cell) Kind() Kind { return c.kind }

// IsMissing reports whether the cell is the missing marker.
func (c Cell) IsMissing() bool { return c.kind == KindMissing }

// Float returns the numeric value and true for number cells.
func (c Cell) Float() (float64, bool) {
	if c.kind != KindNumber {
		return 0, false
	}
	return c.num, true
}

// String renders the cell the way it is written to CSV.
func (c Cell) String() string {
	switch c.kind {
	case KindText:
		return c.text
	case KindNumber:
		return formatFloat(c.num)
	default:
		return ""
	}
}

// Equal reports whether two cells have the same kind and value.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case KindText:
		return c.text == o.text
	case KindNumber:
		return c.num == o.num
	default:
		return true
	}
}

// MarshalJSON encodes numbers as JSON numbers, text as strings and missing
// cells as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case KindText:
		return json.Marshal(c.text)
	case KindNumber:
		return []byte(formatFloat(c.num)), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON. Strings are kept as text
// without reclassification.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*c = Missing()
	case string:
		*c = Text(x)
	case float64:
		*c = Number(x)
	case bool:
		*c = Text(strconv.FormatBool(x))
	default:
		return fmt.Errorf("unsupported cell value %s", string(data))
	}
	return nil
}
