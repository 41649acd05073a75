// Package recipe provides the "sheetkit recipe" commands for named,
// reusable instructions.
package recipe

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/internal/output"
	"github.com/klytics/sheetkit/internal/recipes"
)

// NewCommand returns the recipe command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Manage saved instructions",
		Long: `Recipes are named instructions stored in ~/.sheetkit/recipes.yaml and used
with --recipe on refine and watch, or 'recipe <name>' in the shell.

A few recipes are built in; a user recipe with the same name replaces one.`,
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newRemoveCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recipes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := cmdutil.RecipeBook()
			if err != nil {
				return err
			}
			list := book.List()
			out := cmd.OutOrStdout()
			if cmdutil.JSON(cmd) {
				return output.PrintJSON(out, "recipe list", list)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, r := range list {
				origin := ""
				if r.Builtin {
					origin = "(built in)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Description, origin)
			}
			return tw.Flush()
		},
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show the instruction a recipe sends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := cmdutil.RecipeBook()
			if err != nil {
				return err
			}
			r, err := book.Find(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cmdutil.JSON(cmd) {
				return output.PrintJSON(out, "recipe show", r)
			}
			color.New(color.Bold).Fprintln(out, r.Name)
			if r.Description != "" {
				fmt.Fprintln(out, r.Description)
			}
			fmt.Fprintf(out, "\n%s\n", r.Instruction)
			return nil
		},
	}
}

func newAddCommand() *cobra.Command {
	var description, instruction string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Save an instruction under a name",
		Example: `  sheetkit recipe add monthly --instruction "Group rows by month and sum Amount"
  sheetkit recipe add dedupe --instruction "Remove duplicates by Email, keep the newest"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := cmdutil.RecipeBook()
			if err != nil {
				return err
			}
			r := recipes.Recipe{Name: args[0], Description: description, Instruction: instruction}
			if err := book.Add(r); err != nil {
				return err
			}
			if err := book.Save(); err != nil {
				return err
			}
			saved, err := book.Find(args[0])
			if err != nil {
				return err
			}
			if cmdutil.JSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), "recipe add", saved)
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Saved recipe %s to %s\n", saved.Name, book.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&instruction, "instruction", "", "Instruction text (required)")
	cmd.Flags().StringVar(&description, "description", "", "One-line description shown by list")
	cmd.MarkFlagRequired("instruction")
	return cmd
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved recipe",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := cmdutil.RecipeBook()
			if err != nil {
				return err
			}
			if err := book.Remove(args[0]); err != nil {
				return err
			}
			if err := book.Save(); err != nil {
				return err
			}
			if cmdutil.JSON(cmd) {
				return output.PrintJSON(cmd.OutOrStdout(), "recipe remove", map[string]any{"removed": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed recipe %s\n", args[0])
			return nil
		},
	}
}
