package table

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UniqueNames makes a header usable as table columns: blank names become
// "Unnamed: N" (zero-based position) and repeated names get ".1", ".2"
// suffixes in order of appearance. Other names keep their spelling,
// surrounding spaces included.
func UniqueNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for _, n := range names {
		used[n] = true
	}

	seen := make(map[string]int, len(names))
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			n = fmt.Sprintf("Unnamed: %d", i)
		}
		if count, dup := seen[n]; dup {
			candidate := n
			for {
				count++
				candidate = fmt.Sprintf("%s.%d", n, count)
				if !used[candidate] {
					break
				}
			}
			seen[n] = count
			used[candidate] = true
			out[i] = candidate
			continue
		}
		seen[n] = 0
		used[n] = true
		out[i] = n
	}
	return out
}

// DropMissing returns a copy without the rows that contain a missing cell.
func (t *Table) DropMissing() *Table {
	kept := make([][]Cell, 0, len(t.rows))
	for _, row := range t.rows {
		complete := true
		for _, c := range row {
			if c.IsMissing() {
				complete = false
				break
			}
		}
		if complete {
			kept = append(kept, row)
		}
	}
	return &Table{columns: t.Columns(), rows: cloneRows(kept)}
}

// NormalizeHeaders returns a copy whose column names are trimmed and
// title-cased ("first name " becomes "First Name").
func (t *Table) NormalizeHeaders() *Table {
	caser := cases.Title(language.English)
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = caser.String(strings.TrimSpace(c))
	}
	return &Table{columns: UniqueNames(names), rows: cloneRows(t.rows)}
}
