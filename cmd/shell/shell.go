// Package shell provides the "sheetkit shell" interactive REPL command.
package shell

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	shellpkg "github.com/klytics/sheetkit/internal/shell"
	"github.com/klytics/sheetkit/internal/table"
)

// NewCommand creates the "shell" command.
func NewCommand() *cobra.Command {
	var (
		evalCmd string
		sheet   string
	)

	cmd := &cobra.Command{
		Use:   "shell [file.xlsx]",
		Short: "Start an interactive session around one spreadsheet",
		Long: `Start a REPL that keeps the current table between instructions.

Type an instruction to refine the table; the result is shown and only
replaces the table once you 'accept' it. 'undo' restores the previous
version and 'save' writes the current one as .xlsx.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, cfg, err := cmdutil.NewRefiner(cmd)
			if err != nil {
				return err
			}

			var t *table.Table
			path := ""
			if len(args) == 1 {
				path = args[0]
				if t, err = cmdutil.LoadTable(path, sheet); err != nil {
					return err
				}
			}

			session := shellpkg.NewSession(ref, t, path)
			session.History = cmdutil.History(cfg)
			if book, err := cmdutil.RecipeBook(); err == nil {
				session.Recipes = book
			}

			if evalCmd != "" {
				output, err := session.Eval(cmd.Context(), evalCmd)
				fmt.Fprint(cmd.OutOrStdout(), output)
				return err
			}
			return session.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&evalCmd, "eval", "", "Run a single shell command and exit")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: the first)")
	return cmd
}
