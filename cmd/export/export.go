// Package export provides the "sheetkit export" command: turn a saved model
// reply, possibly corrected by hand, into a spreadsheet.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/output"
	"github.com/klytics/sheetkit/internal/recovery"
	"github.com/klytics/sheetkit/internal/refine"
)

// NewCommand returns the export command.
func NewCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <reply.csv|->",
		Short: "Export a saved reply as .xlsx",
		Long: `Reads a model reply from a file or stdin, reads it as a table with the
same rules the refine command uses and writes it as .xlsx.

Files ending in .reply.txt, as written by a refine batch or the watcher,
start with the diagnostic; it is skipped so a corrected file exports
directly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readReply(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch o := recovery.Recover(text).(type) {
			case recovery.Recovered:
				if err := xlsx.WriteFile(o.Table, outPath); err != nil {
					return err
				}
				if cmdutil.JSON(cmd) {
					return output.PrintJSON(out, "export", map[string]any{
						"output":  outPath,
						"rows":    o.Table.NumRows(),
						"columns": o.Table.Columns(),
					})
				}
				color.New(color.FgGreen).Fprintf(out, "Saved %d rows to %s\n", o.Table.NumRows(), outPath)
				return nil

			case recovery.Unrecovered:
				err := fmt.Errorf("%w: %s", refine.ErrNotATable, o.Diagnostic)
				if cmdutil.JSON(cmd) {
					output.PrintJSONError(out, "export", err, string(refine.CodeNotATable), output.ExitUserError)
				} else {
					output.WriteError(cmd.ErrOrStderr(), "%s", o.Diagnostic)
				}
				return &cmdutil.ReportedError{Err: err, Code: output.ExitUserError}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", xlsx.DefaultFilename, "Output file")
	return cmd
}

func readReply(stdin io.Reader, name string) (string, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("could not read reply: %w", err)
	}
	text := string(data)
	if strings.HasSuffix(name, refine.ReplySuffix) {
		if _, rest, ok := strings.Cut(text, "\n\n"); ok {
			text = rest
		}
	}
	return text, nil
}
