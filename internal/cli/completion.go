package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var completionInstall bool

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Set up shell completions for taskclock",
	Long: `Set up shell tab-completions for taskclock commands, flags and task ids.

Supported shells: bash, zsh, fish, powershell

Quick install (writes the script into a user-local completions directory):

  taskclock completion bash --install
  taskclock completion zsh --install
  taskclock completion fish --install

Or print the script to stdout:

  eval "$(taskclock completion bash)"`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MaximumNArgs(1),
	RunE:      runCompletion,
}

// completionScript generates the completion script for shell into w.
func completionScript(shell string, w io.Writer) error {
	switch shell {
	case "bash":
		return rootCmd.GenBashCompletionV2(w, true)
	case "zsh":
		return rootCmd.GenZshCompletion(w)
	case "fish":
		return rootCmd.GenFishCompletion(w, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(w)
	}
	return fmt.Errorf("unsupported shell %q (supported: bash, zsh, fish, powershell)", shell)
}

// completionTarget is where --install writes the script, relative to home.
func completionTarget(shell, home string) (string, error) {
	switch shell {
	case "bash":
		return filepath.Join(home, ".local", "share", "bash-completion", "completions", "taskclock"), nil
	case "zsh":
		return filepath.Join(home, ".local", "share", "zsh", "site-functions", "_taskclock"), nil
	case "fish":
		return filepath.Join(home, ".config", "fish", "completions", "taskclock.fish"), nil
	case "powershell":
		return "", fmt.Errorf("automatic install is not supported for PowerShell; add the output of 'taskclock completion powershell' to your profile")
	}
	return "", fmt.Errorf("unsupported shell %q", shell)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	shell := args[0]
	if !completionInstall {
		return completionScript(shell, cmd.OutOrStdout())
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("detecting home directory: %w", err)
	}
	target, err := completionTarget(shell, home)
	if err != nil {
		return err
	}
	if err := writeCompletionFile(shell, target); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s completions installed to %s\n", shell, target)
	if shell == "zsh" {
		fmt.Fprintf(out, "Ensure %s is in your fpath, then run: autoload -Uz compinit && compinit\n", filepath.Dir(target))
	} else {
		fmt.Fprintln(out, "Restart your shell to pick them up.")
	}
	return nil
}

// writeCompletionFile creates target and writes the script into it,
// propagating close errors.
func writeCompletionFile(shell, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("creating completion directory: %w", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating completion file %s: %w", target, err)
	}

	writeErr := completionScript(shell, f)
	closeErr := f.Close()

	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing completion file %s: %w", target, closeErr)
	}
	return nil
}

func init() {
	completionCmd.Flags().BoolVar(&completionInstall, "install", false,
		"Install completions into a user-local completions directory")

	// Replace Cobra's default completion command with ours.
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}
