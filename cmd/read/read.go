// Package read provides the "sheetkit read" command.
package read

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/output"
	"github.com/klytics/sheetkit/internal/table"
)

type readOutput struct {
	File      string       `json:"file"`
	Sheets    []string     `json:"sheets"`
	TotalRows int          `json:"totalRows"`
	Table     *table.Table `json:"table"`
}

// NewCommand returns the read command.
func NewCommand() *cobra.Command {
	var (
		sheetName string
		csvOutput bool
		rows      int
	)

	cmd := &cobra.Command{
		Use:   "read <file.xlsx>",
		Short: "Preview a spreadsheet the way it will be sent to the model",
		Long: `Reads one sheet of an .xlsx file and prints it as a table, as CSV or
as JSON. The first non-empty row is the header.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			t, err := cmdutil.LoadTable(path, sheetName)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if cmdutil.JSON(cmd) {
				data, _ := os.ReadFile(path)
				sheets, _ := xlsx.SheetNames(data)
				view := t
				if rows > 0 {
					view = t.Head(rows)
				}
				return output.PrintJSON(out, "read", readOutput{File: path, Sheets: sheets, TotalRows: t.NumRows(), Table: view})
			}

			if csvOutput {
				if rows > 0 {
					t = t.Head(rows)
				}
				return output.WriteCSV(out, t)
			}

			var buf bytes.Buffer
			output.PrintTable(&buf, t, output.TableOptions{MaxRows: rows, Title: path})
			if output.ShouldPage(buf.String()) {
				return output.Page(buf.String())
			}
			_, err = fmt.Fprint(out, buf.String())
			return err
		},
	}

	cmd.Flags().StringVar(&sheetName, "sheet", "", "Read the named sheet instead of the first one")
	cmd.Flags().BoolVar(&csvOutput, "csv", false, "Output as CSV")
	cmd.Flags().IntVar(&rows, "rows", 0, "Show only the first N rows (0 shows all)")

	return cmd
}
