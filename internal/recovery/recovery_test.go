package recovery

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/sheetkit/internal/table"
)

func mustRecover(t *testing.T, text string) *table.Table {
	t.Helper()
	out := Recover(text)
	rec, ok := out.(Recovered)
	if !ok {
		t.Fatalf("expected Recovered, got %#v", out)
	}
	return rec.Table
}

func mustFail(t *testing.T, text string, reason Reason) Unrecovered {
	t.Helper()
	out := Recover(text)
	un, ok := out.(Unrecovered)
	if !ok {
		t.Fatalf("expected Unrecovered, got %#v", out)
	}
	assert.Equal(t, reason, un.Reason, un.Diagnostic)
	assert.Equal(t, text, un.Raw, "raw text must be preserved")
	assert.NotEmpty(t, un.Diagnostic)
	return un
}

func TestRecoverScenario(t *testing.T) {
	tbl := mustRecover(t, "Name,Age,Country\nAli,25,Pakistan\nSara,30,USA")

	assert.Equal(t, []string{"Name", "Age", "Country"}, tbl.Columns())
	require.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, [][]string{
		{"Name", "Age", "Country"},
		{"Ali", "25", "Pakistan"},
		{"Sara", "30", "USA"},
	}, tbl.Records())
	assert.Equal(t, "recovered", Recover("A\n1").Status())
}

func TestRecoverFieldCountMismatchScenario(t *testing.T) {
	un := mustFail(t, "Name,Age\nAli,25,Pakistan", ReasonFieldCount)
	assert.Contains(t, un.Diagnostic, "row/column count mismatch")
	assert.Contains(t, un.Diagnostic, "line 2 has 3 fields, the header has 2")
	assert.Equal(t, "unrecovered", un.Status())
}

func TestRecoverEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n", " \r\n\t\r\n"} {
		un := mustFail(t, text, ReasonNoRows)
		assert.Contains(t, un.Diagnostic, "no data rows")
	}
}

func TestRecoverHeaderOnly(t *testing.T) {
	un := mustFail(t, "Name,Age\n", ReasonNoRows)
	assert.Contains(t, un.Diagnostic, "no data rows")
}

func TestRecoverTolerances(t *testing.T) {
	want := [][]string{{"Name", "Age"}, {"Ali", "25"}, {"Sara", "30"}}
	tests := []struct {
		name string
		text string
	}{
		{"unix", "Name,Age\nAli,25\nSara,30\n"},
		{"windows", "Name,Age\r\nAli,25\r\nSara,30\r\n"},
		{"blank lines around", "\n\n  \nName,Age\nAli,25\nSara,30\n\n \n"},
		{"trailing delimiter on every row", "Name,Age,\nAli,25,\nSara,30,\n"},
		{"trailing delimiter on one row", "Name,Age\nAli,25,\nSara,30\n"},
		{"space after delimiter", "Name, Age\nAli, 25\nSara, 30\n"},
		{"interior blank line", "Name,Age\nAli,25\n\nSara,30\n"},
		{"bom", "\ufeffName,Age\nAli,25\nSara,30"},
		{"code fence", "```csv\nName,Age\nAli,25\nSara,30\n```"},
		{"bare code fence with blank lines", "\n```\n\nName,Age\nAli,25\nSara,30\n\n```\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := mustRecover(t, tt.text)
			assert.Equal(t, want, tbl.Records())
		})
	}
}

func TestRecoverQuotedValues(t *testing.T) {
	tbl := mustRecover(t, "Name,Note\nAli,\"likes, commas\"\nSara,\"line one\nline two\"\nJohn,\"says \"\"hi\"\"\"\n")
	require.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, "likes, commas", tbl.Cell(0, 1).String())
	assert.Equal(t, "line one\nline two", tbl.Cell(1, 1).String())
	assert.Equal(t, `says "hi"`, tbl.Cell(2, 1).String())
}

func TestRecoverClassifiesCells(t *testing.T) {
	tbl := mustRecover(t, "Name,Age,Code,Note\nAli,25,007,\n")
	assert.Equal(t, table.KindText, tbl.Cell(0, 0).Kind())
	assert.Equal(t, table.KindNumber, tbl.Cell(0, 1).Kind())
	assert.Equal(t, table.KindText, tbl.Cell(0, 2).Kind())
	assert.True(t, tbl.Cell(0, 3).IsMissing())
}

func TestRecoverRejectsRaggedRows(t *testing.T) {
	tests := []struct {
		name string
		text string
		line string
	}{
		{"short row", "Name,Age,Country\nAli,25\n", "line 2 has 2 fields"},
		{"long row later", "Name,Age\nAli,25\nSara,30,USA\n", "line 3 has 3 fields"},
		{"two trailing delimiters", "Name,Age\nAli,25,,\n", "line 2 has 4 fields"},
		{"offset by blank lines", "\n\nName,Age\nAli,25,Pakistan", "line 4 has 3 fields"},
		{"offset by fence", "```csv\nName,Age\nAli\n```", "line 3 has 1 fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			un := mustFail(t, tt.text, ReasonFieldCount)
			assert.Contains(t, un.Diagnostic, tt.line)
		})
	}
}

func TestRecoverProseBeforeTable(t *testing.T) {
	un := mustFail(t, "Here is your cleaned table:\nName,Age\nAli,25\n", ReasonFieldCount)
	assert.Contains(t, un.Diagnostic, "commentary")
}

func TestRecoverProseAfterTable(t *testing.T) {
	mustFail(t, "Name,Age\nAli,25\nI sorted the rows by age, oldest first, as requested.\n", ReasonFieldCount)
}

func TestRecoverDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"bare quote", "Name,Age\nAl\"i,25\n"},
		{"unterminated quote", "Name,Age\n\"Ali,25\n"},
		{"bad header quote", "Na\"me,Age\nAli,25\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			un := mustFail(t, tt.text, ReasonDecode)
			assert.Contains(t, un.Diagnostic, "not valid CSV at line")
		})
	}
}

func TestRecoverBadHeader(t *testing.T) {
	un := mustFail(t, "Name,Name\nAli,Khan\n", ReasonBadHeader)
	assert.Contains(t, un.Diagnostic, `"Name"`)

	un = mustFail(t, "Name,,Age\nAli,x,25\n", ReasonBadHeader)
	assert.Contains(t, un.Diagnostic, "column 2 has no name")
}

func TestRecoverUnclosedFenceIsNotStripped(t *testing.T) {
	mustFail(t, "```csv\nName,Age\nAli,25\n", ReasonFieldCount)
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "field_count_mismatch", ReasonFieldCount.String())
	assert.Equal(t, "no_data_rows", ReasonNoRows.String())
	assert.Equal(t, "unknown", Reason(0).String())
}

// Any rectangular table encoded by the outbound codec comes back with the
// same header and row count.
func TestRecoverRectangularProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []string{"a", "b", "Ali", "25", "3.5", "007", "x,y", `q"q`, " lead", "multi\nline", "-1"}

	for iter := 0; iter < 200; iter++ {
		cols := 1 + rng.Intn(5)
		rows := 1 + rng.Intn(8)
		header := make([]string, cols)
		for i := range header {
			header[i] = fmt.Sprintf("col%d", i)
		}
		records := make([][]string, rows)
		for i := range records {
			rec := make([]string, cols)
			for j := range rec {
				rec[j] = alphabet[rng.Intn(len(alphabet))]
			}
			records[i] = rec
		}

		src, err := table.FromRecords(header, records)
		require.NoError(t, err)

		got := mustRecover(t, src.CSV())
		assert.Equal(t, header, got.Columns())
		assert.Equal(t, rows, got.NumRows())
		assert.True(t, src.Equal(got), "iteration %d: %q", iter, src.CSV())
	}
}

// A reply with any row whose field count differs from the header never
// yields a table.
func TestRecoverRaggedProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for iter := 0; iter < 200; iter++ {
		cols := 2 + rng.Intn(4)
		rows := 1 + rng.Intn(6)
		bad := rng.Intn(rows)

		var b strings.Builder
		for i := 0; i < cols; i++ {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "h%d", i)
		}
		b.WriteString("\n")
		for r := 0; r < rows; r++ {
			n := cols
			if r == bad {
				// cols+1 is still ragged: the extra field is not empty
				for n == cols {
					n = 1 + rng.Intn(cols+3)
				}
			}
			for i := 0; i < n; i++ {
				if i > 0 {
					b.WriteString(",")
				}
				fmt.Fprintf(&b, "v%d", i)
			}
			b.WriteString("\n")
		}

		out := Recover(b.String())
		_, ok := out.(Unrecovered)
		assert.True(t, ok, "iteration %d: %q", iter, b.String())
	}
}
