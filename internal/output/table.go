// Package output provides formatting utilities for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/klytics/sheetkit/internal/table"
)

const (
	maxColWidth = 40
	minColWidth = 3
)

// TableOptions controls the pretty table preview.
type TableOptions struct {
	MaxRows int    // 0 prints every row
	Title   string // printed above the table when set
}

// PrintTable writes a column-aligned preview of t. Missing cells are shown
// dimmed so they are not confused with empty text.
func PrintTable(w io.Writer, t *table.Table, opts TableOptions) {
	headerStyle := color.New(color.Bold, color.FgCyan)
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	if opts.Title != "" {
		headerStyle.Fprintf(w, "%s\n", opts.Title)
	}

	rows := t.NumRows()
	shown := rows
	if opts.MaxRows > 0 && opts.MaxRows < rows {
		shown = opts.MaxRows
	}

	widths := make([]int, t.NumCols())
	for j, name := range t.Columns() {
		widths[j] = utf8.RuneCountInString(name)
	}
	for i := 0; i < shown; i++ {
		for j, c := range t.Row(i) {
			if n := utf8.RuneCountInString(display(c)); n > widths[j] {
				widths[j] = n
			}
		}
	}
	for j := range widths {
		widths[j] = min(max(widths[j], minColWidth), maxColWidth)
	}

	printRow(w, t.Columns(), nil, widths, bold, dim)
	dim.Fprint(w, "  ")
	for j, width := range widths {
		if j > 0 {
			dim.Fprint(w, "+-")
		}
		dim.Fprint(w, strings.Repeat("-", width+1))
	}
	fmt.Fprintln(w)

	for i := 0; i < shown; i++ {
		row := t.Row(i)
		cells := make([]string, len(row))
		missing := make([]bool, len(row))
		for j, c := range row {
			cells[j] = display(c)
			missing[j] = c.IsMissing()
		}
		printRow(w, cells, missing, widths, nil, dim)
	}

	if shown < rows {
		dim.Fprintf(w, "  (%d of %d rows, %d columns)\n", shown, rows, t.NumCols())
	} else {
		dim.Fprintf(w, "  (%d rows, %d columns)\n", rows, t.NumCols())
	}
}

func printRow(w io.Writer, cells []string, missing []bool, widths []int, style, dim *color.Color) {
	fmt.Fprint(w, "  ")
	for j, width := range widths {
		if j > 0 {
			fmt.Fprint(w, "| ")
		}
		cell := clip(cells[j], width)
		padded := cell + strings.Repeat(" ", width-utf8.RuneCountInString(cell)+1)
		switch {
		case missing != nil && missing[j]:
			dim.Fprint(w, padded)
		case style != nil:
			style.Fprint(w, padded)
		default:
			fmt.Fprint(w, padded)
		}
	}
	fmt.Fprintln(w)
}

func display(c table.Cell) string {
	if c.IsMissing() {
		return "·"
	}
	return strings.ReplaceAll(c.String(), "\n", "⏎")
}

func clip(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width-1]) + "~"
}

// WriteCSV writes t as CSV, the format replies are expected in.
func WriteCSV(w io.Writer, t *table.Table) error {
	return t.WriteCSV(w)
}

// WriteError writes an error message in the CLI's usual shape.
func WriteError(w io.Writer, format string, args ...any) {
	color.New(color.FgRed).Fprint(w, "Error: ")
	fmt.Fprintf(w, format+"\n", args...)
}

// WriteWarning writes a non-fatal problem the user should know about.
func WriteWarning(w io.Writer, format string, args ...any) {
	color.New(color.FgYellow).Fprint(w, "Warning: ")
	fmt.Fprintf(w, format+"\n", args...)
}
