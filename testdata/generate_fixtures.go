//go:build ignore

// This program generates test fixture files for sheetkit.
package main

import (
	"fmt"
	"os"

	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/table"
)

func main() {
	if err := generateXlsx(); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating sample.xlsx: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Test fixtures generated successfully.")
}

func generateXlsx() error {
	t, err := table.FromRecords(
		[]string{"Quarter", "Product", "Revenue", "Growth"},
		[][]string{
			{"Q1 2024", "Enterprise", "1250000", "12%"},
			{"Q1 2024", "SMB", "450000", "8%"},
			{"Q1 2024", "Consumer", "320000", ""},
			{"Q2 2024", "Enterprise", "1380000", "10%"},
			{"Q2 2024", "SMB", "520000", "16%"},
			{"Q2 2024", "Consumer", "350000", "9%"},
			{"Q3 2024", "Enterprise", "", "5%"},
			{"Q3 2024", "SMB", "580000", "12%"},
			{"Q3 2024", "Consumer", "410000", "17%"},
			{"Q4 2024", "Enterprise", "1620000", "12%"},
			{"Q4 2024", "SMB", "640000", "10%"},
			{"Q4 2024", "Consumer", "480000", "17%"},
		},
	)
	if err != nil {
		return err
	}
	return xlsx.WriteFile(t, "testdata/sample.xlsx")
}
