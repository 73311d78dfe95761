package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vibely/vibely/internal/daemon"
	"github.com/vibely/vibely/pkg/deploy"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <target> <session>",
	Short: "Deploy a session to a hosting provider",
	Long: `Archive the session directory and deploy it to one of: ` + targetList() + `.
Each provider's token must be configured; a missing token fails only that provider.`,
	Args: cobra.ExactArgs(2),
	RunE: runDeploy,
}

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Call the configured deploy hook URLs",
	Long: `POST to each configured deploy hook (Render, Vercel, Netlify, in that order).
Hooks without a URL are reported as skipped.`,
	Args: cobra.NoArgs,
	RunE: runHooks,
}

func init() {
	rootCmd.AddCommand(deployCmd, hooksCmd)
}

func targetList() string {
	names := make([]string, 0, 3)
	for _, t := range deploy.Targets() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	return withDaemon(cmd, nil, func(ctx context.Context, d *daemon.Daemon) error {
		result := d.DeployTo(ctx, args[0], args[1])
		if err := printJSON(cmd, result); err != nil {
			return err
		}
		if !result.Success {
			return failed(result.Message)
		}
		return nil
	})
}

func runHooks(cmd *cobra.Command, args []string) error {
	return withDaemon(cmd, nil, func(ctx context.Context, d *daemon.Daemon) error {
		return printJSON(cmd, d.TriggerHooks(ctx))
	})
}
