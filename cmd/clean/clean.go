// Package clean provides the "sheetkit clean" command: local clean-up that
// needs no provider.
package clean

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/output"
)

type cleanOutput struct {
	File        string   `json:"file"`
	Output      string   `json:"output"`
	RowsBefore  int      `json:"rowsBefore"`
	RowsAfter   int      `json:"rowsAfter"`
	Columns     []string `json:"columns"`
	DropMissing bool     `json:"dropMissing"`
	Headers     bool     `json:"headers"`
}

// NewCommand returns the clean command.
func NewCommand() *cobra.Command {
	var (
		dropMissing bool
		headers     bool
		outPath     string
		sheet       string
	)

	cmd := &cobra.Command{
		Use:   "clean <file.xlsx>",
		Short: "Drop rows with missing values and tidy column names",
		Long: `Cleans a spreadsheet locally without calling a model. With no flags both
clean-ups run: column names are trimmed and title-cased, then every row
with a missing value is removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			t, err := cmdutil.LoadTable(path, sheet)
			if err != nil {
				return err
			}
			if !dropMissing && !headers {
				dropMissing, headers = true, true
			}

			cleaned := t
			if headers {
				cleaned = cleaned.NormalizeHeaders()
			}
			if dropMissing {
				cleaned = cleaned.DropMissing()
			}

			dest, err := cmdutil.OutputPath(path, outPath)
			if err != nil {
				return err
			}
			if err := xlsx.WriteFile(cleaned, dest); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cmdutil.JSON(cmd) {
				return output.PrintJSON(out, "clean", cleanOutput{
					File:        path,
					Output:      dest,
					RowsBefore:  t.NumRows(),
					RowsAfter:   cleaned.NumRows(),
					Columns:     cleaned.Columns(),
					DropMissing: dropMissing,
					Headers:     headers,
				})
			}
			color.New(color.FgGreen).Fprintf(out, "Saved %d of %d rows to %s\n", cleaned.NumRows(), t.NumRows(), dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dropMissing, "drop-missing", false, "Remove rows with any missing value")
	cmd.Flags().BoolVar(&headers, "headers", false, "Trim and title-case column names")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default: cleaned_data.xlsx next to the input)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: the first)")

	return cmd
}
