// Package refine provides the "sheetkit refine" command.
package refine

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/history"
	"github.com/klytics/sheetkit/internal/output"
	"github.com/klytics/sheetkit/internal/progress"
	"github.com/klytics/sheetkit/internal/recovery"
	"github.com/klytics/sheetkit/internal/refine"
	"github.com/klytics/sheetkit/internal/table"
)

type refineOutput struct {
	ID         string       `json:"id"`
	File       string       `json:"file"`
	Status     string       `json:"status"`
	Output     string       `json:"output,omitempty"`
	Table      *table.Table `json:"table,omitempty"`
	Raw        string       `json:"raw,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Diagnostic string       `json:"diagnostic,omitempty"`
	Model      string       `json:"model,omitempty"`
	DurationMS int64        `json:"durationMs"`
}

type batchOutput struct {
	File   string `json:"file"`
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewCommand returns the refine command.
func NewCommand() *cobra.Command {
	var (
		promptText   string
		recipe       string
		outPath      string
		outDir       string
		sheet        string
		keepOriginal bool
		concurrency  int
		previewRows  int
	)

	cmd := &cobra.Command{
		Use:   "refine <file.xlsx> [file.xlsx...]",
		Short: "Apply a plain-language instruction to a spreadsheet",
		Long: `Sends the spreadsheet and the instruction to the configured provider once,
reads the reply back as a table and saves it as .xlsx.

When the reply is not a table the raw reply and the reason are printed and
nothing is saved, unless --keep-original asks for the input to be exported
unchanged.

With several files each one is refined on its own; results are written to
--out-dir as <name>.refined.xlsx, or <name>.reply.txt when the reply was
not a table.

Examples:
  sheetkit refine sales.xlsx -p "remove rows with missing values and sort by date"
  sheetkit refine sales.xlsx --recipe dedupe -o clean.xlsx
  sheetkit refine q1.xlsx q2.xlsx q3.xlsx --recipe trim --out-dir refined/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFlags(cmd, len(args)); err != nil {
				return err
			}
			instruction, err := cmdutil.Instruction(promptText, recipe)
			if err != nil {
				return err
			}
			ref, cfg, err := cmdutil.NewRefiner(cmd)
			if err != nil {
				return err
			}
			hist := cmdutil.History(cfg)
			if len(args) > 1 {
				return runBatch(cmd, ref, hist, args, instruction, outDir, concurrency)
			}
			return runOne(cmd, ref, hist, args[0], sheet, instruction, outPath, keepOriginal, previewRows)
		},
	}

	cmd.Flags().StringVarP(&promptText, "prompt", "p", "", "Instruction describing what to do with the table")
	cmd.Flags().StringVarP(&recipe, "recipe", "r", "", "Use a saved recipe instead of --prompt")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default: cleaned_data.xlsx next to the input)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Output folder when refining several files (default: ./refined next to each input)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: the first)")
	cmd.Flags().BoolVar(&keepOriginal, "keep-original", false, "Export the input unchanged when the reply is not a table")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "Files refined at the same time")
	cmd.Flags().IntVar(&previewRows, "preview", 10, "Rows of the result to print (0 prints none)")

	return cmd
}

// checkFlags rejects flags that do not apply to the number of files given.
func checkFlags(cmd *cobra.Command, files int) error {
	single := []string{"output", "sheet", "keep-original", "preview"}
	batch := []string{"out-dir", "concurrency"}
	names, want := single, "one file"
	if files == 1 {
		names, want = batch, "several files"
	}
	for _, name := range names {
		if cmd.Flags().Changed(name) {
			return fmt.Errorf("--%s only applies when refining %s", name, want)
		}
	}
	return nil
}

func runOne(cmd *cobra.Command, ref *refine.Refiner, hist *history.Logger, path, sheet, instruction, outPath string, keepOriginal bool, previewRows int) error {
	t, err := cmdutil.LoadTable(path, sheet)
	if err != nil {
		return err
	}
	dest, err := cmdutil.OutputPath(path, outPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	jsonOut := cmdutil.JSON(cmd)

	spin := progress.NewSpinner(fmt.Sprintf("Refining %s with %s", filepath.Base(path), ref.Provider.Name()))
	spin.Start()
	res, err := ref.Refine(cmd.Context(), t, instruction)
	if err != nil {
		spin.Stop("Request failed", false)
		hist.Record(cmd.Context(), history.NewEntry(cmd.CommandPath(), ref.Provider.Name(), path, instruction, "", nil, err))
		return err
	}
	spin.Stop(refine.Describe(res)+" in "+cmdutil.Elapsed(res.Duration), res.Table() != nil)

	view := refineOutput{
		ID:         res.ID.String(),
		File:       path,
		Status:     res.Outcome.Status(),
		Model:      res.Reply.Model,
		DurationMS: res.Duration.Milliseconds(),
	}

	switch o := res.Outcome.(type) {
	case recovery.Recovered:
		if err := xlsx.WriteFile(o.Table, dest); err != nil {
			hist.Record(cmd.Context(), history.NewEntry(cmd.CommandPath(), ref.Provider.Name(), path, instruction, "", res, err))
			return err
		}
		view.Output = dest
		hist.Record(cmd.Context(), history.NewEntry(cmd.CommandPath(), ref.Provider.Name(), path, instruction, dest, res, nil))
		if jsonOut {
			view.Table = o.Table
			return output.PrintJSON(out, "refine", view)
		}
		if previewRows > 0 {
			output.PrintTable(out, o.Table, output.TableOptions{MaxRows: previewRows})
		}
		color.New(color.FgGreen).Fprintf(out, "Saved %d rows to %s\n", o.Table.NumRows(), dest)
		return nil

	case recovery.Unrecovered:
		view.Raw = o.Raw
		view.Reason = o.Reason.String()
		view.Diagnostic = o.Diagnostic
		if keepOriginal {
			if err := xlsx.WriteFile(t, dest); err != nil {
				hist.Record(cmd.Context(), history.NewEntry(cmd.CommandPath(), ref.Provider.Name(), path, instruction, "", res, err))
				return err
			}
			view.Output = dest
		}
		hist.Record(cmd.Context(), history.NewEntry(cmd.CommandPath(), ref.Provider.Name(), path, instruction, view.Output, res, nil))
		if jsonOut {
			if err := output.PrintJSON(out, "refine", view); err != nil {
				return err
			}
		} else {
			printUnrecovered(out, cmd.ErrOrStderr(), o, view.Output)
		}
		return &cmdutil.ReportedError{Err: refine.OutcomeError(res), Code: output.ExitUserError}
	}
	return fmt.Errorf("unexpected refine outcome %T", res.Outcome)
}

func printUnrecovered(out, errOut io.Writer, o recovery.Unrecovered, kept string) {
	output.WriteError(errOut, "the reply could not be read as a table: %s", o.Diagnostic)
	color.New(color.FgHiBlack).Fprintln(errOut, "Raw reply:")
	fmt.Fprintln(out, o.Raw)
	if kept != "" {
		color.New(color.FgYellow).Fprintf(errOut, "Original table exported unchanged to %s\n", kept)
	}
}

func runBatch(cmd *cobra.Command, ref *refine.Refiner, hist *history.Logger, paths []string, instruction, outDir string, concurrency int) error {
	bar := progress.New("Refining", len(paths))
	results := ref.RefineFiles(cmd.Context(), paths, instruction, outDir, concurrency, func(fr *refine.FileResult) {
		bar.Done(filepath.Base(fr.Source), fr.Status() == "recovered")
		hist.Record(cmd.Context(), history.FileEntry(cmd.CommandPath(), ref.Provider.Name(), instruction, fr))
	})

	failed := 0
	views := make([]batchOutput, len(results))
	for i, fr := range results {
		views[i] = batchOutput{File: fr.Source, Status: fr.Status(), Output: fr.Output}
		if fr.Err != nil {
			views[i].Error = refine.UserMessage(fr.Err)
		}
		if fr.Status() != "recovered" {
			failed++
		}
	}
	bar.Finish(fmt.Sprintf("%d of %d files recovered", len(paths)-failed, len(paths)))

	out := cmd.OutOrStdout()
	if cmdutil.JSON(cmd) {
		if err := output.PrintJSON(out, "refine", views); err != nil {
			return err
		}
	} else {
		for _, v := range views {
			switch {
			case v.Error != "":
				color.New(color.FgRed).Fprintf(out, "  ✗ %s: %s\n", v.File, v.Error)
			case v.Status == "unrecovered":
				color.New(color.FgYellow).Fprintf(out, "  ! %s: not a table, reply saved to %s\n", v.File, v.Output)
			default:
				color.New(color.FgGreen).Fprintf(out, "  ✓ %s → %s\n", v.File, v.Output)
			}
		}
	}

	if failed > 0 {
		return &cmdutil.ReportedError{Err: fmt.Errorf("%d of %d files were not refined", failed, len(paths)), Code: output.ExitUserError}
	}
	return nil
}
