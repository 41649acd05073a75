package benchmarks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/prompt"
	"github.com/klytics/sheetkit/internal/recovery"
	"github.com/klytics/sheetkit/internal/table"
)

var sampleXlsx = filepath.Join("..", "testdata", "sample.xlsx")

func sampleTable(b *testing.B, rows int) *table.Table {
	b.Helper()
	records := make([][]string, rows)
	for i := range records {
		records[i] = []string{
			fmt.Sprintf("Q%d 2024", i%4+1),
			[]string{"Enterprise", "SMB", "Consumer"}[i%3],
			fmt.Sprint(100000 + i*37),
			fmt.Sprintf("%d%%", i%20),
		}
	}
	t, err := table.FromRecords([]string{"Quarter", "Product", "Revenue", "Growth"}, records)
	if err != nil {
		b.Fatal(err)
	}
	return t
}

// --- Response Recovery ---

func BenchmarkRecoverCSV(b *testing.B) {
	reply := sampleTable(b, 50).CSV()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := recovery.Recover(reply).(recovery.Recovered); !ok {
			b.Fatal("expected a recovered table")
		}
	}
}

func BenchmarkRecoverFenced(b *testing.B) {
	reply := "```csv\n" + sampleTable(b, 50).CSV() + "```\n"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := recovery.Recover(reply).(recovery.Recovered); !ok {
			b.Fatal("expected a recovered table")
		}
	}
}

func BenchmarkRecoverLarge(b *testing.B) {
	reply := sampleTable(b, 5000).CSV()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		recovery.Recover(reply)
	}
}

func BenchmarkRecoverProse(b *testing.B) {
	reply := strings.Repeat("I have sorted the rows by revenue and removed the duplicates. ", 20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := recovery.Recover(reply).(recovery.Unrecovered); !ok {
			b.Fatal("prose should not be recovered")
		}
	}
}

// --- Prompt ---

func BenchmarkPromptBuild(b *testing.B) {
	t := sampleTable(b, 500)
	builder := prompt.DefaultBuilder()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := builder.Build(t, "remove duplicate rows and sort by revenue"); err != nil {
			b.Fatal(err)
		}
	}
}

// --- XLSX ---

func BenchmarkXlsxLoad(b *testing.B) {
	if _, err := os.Stat(sampleXlsx); os.IsNotExist(err) {
		b.Skip("sample.xlsx not found")
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := xlsx.LoadFile(sampleXlsx, xlsx.LoadOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkXlsxExport(b *testing.B) {
	t := sampleTable(b, 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := xlsx.ToBytes(t); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkXlsxRoundTrip(b *testing.B) {
	t := sampleTable(b, 500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		exp, err := xlsx.ToBytes(t)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := xlsx.Load(exp.Data, xlsx.LoadOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Table ---

func BenchmarkDropMissing(b *testing.B) {
	t := sampleTable(b, 5000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t.DropMissing()
	}
}
