package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vibely/vibely/internal/daemon"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run <session> -- <command> [args...]",
	Short: "Run a shell command inside a session",
	Long: `Run a shell command with the session directory as working directory.
Stdout and stderr are captured together and printed when the command exits.
The command's exit code becomes vibely's exit code.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full result as JSON")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	sessionID, command, cmdArgs := args[0], args[1], args[2:]

	return withDaemon(cmd, nil, func(ctx context.Context, d *daemon.Daemon) error {
		outcome := d.RunCommand(ctx, sessionID, command, cmdArgs)

		if runJSON {
			if err := printJSON(cmd, outcome); err != nil {
				return err
			}
		} else {
			fmt.Fprint(cmd.OutOrStdout(), outcome.Output)
		}

		if !outcome.Success {
			return &ExitError{Code: 1, Err: fmt.Errorf("%s", outcome.Message)}
		}
		if outcome.ExitCode != 0 {
			return &ExitError{Code: outcome.ExitCode}
		}
		return nil
	})
}
