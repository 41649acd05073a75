// Package completion provides shell completion generation commands.
package completion

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCommand returns the completion command.
func NewCommand(rootCmd *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completions",
		Long: `Generate shell completion scripts for sheetkit.

Install instructions:
  Bash:       sheetkit completion bash > /etc/bash_completion.d/sheetkit
              echo 'source <(sheetkit completion bash)' >> ~/.bashrc
  Zsh:        sheetkit completion zsh > ~/.zsh/completions/_sheetkit
  Fish:       sheetkit completion fish > ~/.config/fish/completions/sheetkit.fish
  PowerShell: sheetkit completion powershell >> $PROFILE`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				fmt.Fprintln(out, "# sheetkit bash completion")
				fmt.Fprintln(out, "# Install: sheetkit completion bash > /etc/bash_completion.d/sheetkit")
				fmt.Fprintln(out, "# Or:      echo 'source <(sheetkit completion bash)' >> ~/.bashrc")
				fmt.Fprintln(out)
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				fmt.Fprintln(out, "# sheetkit zsh completion")
				fmt.Fprintln(out, "# Install: sheetkit completion zsh > ~/.zsh/completions/_sheetkit")
				fmt.Fprintln(out)
				return rootCmd.GenZshCompletion(out)
			case "fish":
				fmt.Fprintln(out, "# sheetkit fish completion")
				fmt.Fprintln(out, "# Install: sheetkit completion fish > ~/.config/fish/completions/sheetkit.fish")
				fmt.Fprintln(out)
				return rootCmd.GenFishCompletion(out, true)
			case "powershell":
				fmt.Fprintln(out, "# sheetkit PowerShell completion")
				fmt.Fprintln(out, "# Install: sheetkit completion powershell >> $PROFILE")
				fmt.Fprintln(out)
				return rootCmd.GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s (supported: bash, zsh, fish, powershell)", args[0])
			}
		},
	}
	return cmd
}
