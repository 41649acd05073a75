// Package prompt turns a table and a user instruction into an inference
// payload.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klytics/sheetkit/internal/ai"
	"github.com/klytics/sheetkit/internal/table"
)

// DefaultDirective is the fixed system message. Response recovery cannot
// tolerate prose mixed with data, so the model is told to answer with the
// CSV table alone.
const DefaultDirective = `You are a data assistant that edits spreadsheet tables.
You receive a table encoded as CSV (comma-separated, header row first, RFC 4180 quoting) and an instruction.
Apply the instruction to the table.
Return only the encoded table, no commentary: the header row followed by the data rows, as CSV.
Do not add explanations, markdown code fences or code of any kind.
Every row must have exactly as many fields as the header.
Quote any value that contains a comma, a double quote or a line break.`

// DefaultTemperature keeps replies close to deterministic.
const DefaultTemperature = 0.2

var (
	// ErrEmptyInstruction is returned for a blank instruction.
	ErrEmptyInstruction = errors.New("instruction is empty: describe what should happen to the table")
	// ErrNilTable is returned when no table was loaded.
	ErrNilTable = errors.New("no table loaded")
)

// Builder assembles payloads. The zero value sends the full table with the
// default directive at temperature 0.
type Builder struct {
	Directive   string
	PreviewRows int // 0 sends every row
	MaxChars    int // 0 disables the size budget
	Model       string
	Temperature float64
	MaxTokens   int
}

// DefaultBuilder returns a Builder with the default directive and
// temperature.
func DefaultBuilder() Builder {
	return Builder{Directive: DefaultDirective, Temperature: DefaultTemperature}
}

// Build renders t as CSV and combines it with the instruction. It never
// modifies t.
func (b Builder) Build(t *table.Table, instruction string) (ai.Payload, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return ai.Payload{}, ErrEmptyInstruction
	}
	if t == nil {
		return ai.Payload{}, ErrNilTable
	}

	view := t
	if b.PreviewRows > 0 {
		view = t.Head(b.PreviewRows)
	}
	encoded, shown, err := Fit(view, b.MaxChars)
	if err != nil {
		return ai.Payload{}, err
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Table (%d rows, %d columns):\n", t.NumRows(), t.NumCols())
	user.WriteString(encoded)
	if shown < t.NumRows() {
		fmt.Fprintf(&user, "(showing the first %d of %d rows)\n", shown, t.NumRows())
	}
	user.WriteString("\nInstruction:\n")
	user.WriteString(instruction)

	directive := b.Directive
	if directive == "" {
		directive = DefaultDirective
	}

	return ai.Payload{
		System:      directive,
		User:        user.String(),
		Model:       b.Model,
		Temperature: b.Temperature,
		MaxTokens:   b.MaxTokens,
	}, nil
}
