package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibely/vibely/internal/daemon"
)

var pruneOlderThan time.Duration

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage session workspaces",
	Long:  `Create, list, locate and remove session workspaces under the projects root.`,
}

var sessionNewCmd = &cobra.Command{
	Use:   "new [id]",
	Short: "Create a session, generating an id when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		return withDaemon(cmd, nil, func(ctx context.Context, d *daemon.Daemon) error {
			info, err := d.NewSession(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.ID)
			return nil
		})
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, nil, func(ctx context.Context, d *daemon.Daemon) error {
			sessions, err := d.ListSessions()
			if err != nil {
				return err
			}
			for _, s := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.ID, s.LastModified.Format(time.RFC3339))
			}
			return nil
		})
	},
}

var sessionPathCmd = &cobra.Command{
	Use:   "path <id>",
	Short: "Print the directory of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, nil, func(ctx context.Context, d *daemon.Daemon) error {
			dir, err := d.SessionPath(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		})
	},
}

var sessionRemoveCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a session and everything in it",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, nil, func(ctx context.Context, d *daemon.Daemon) error {
			return d.RemoveSession(ctx, args[0])
		})
	},
}

var sessionPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove sessions that have not changed recently",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDaemon(cmd, nil, func(ctx context.Context, d *daemon.Daemon) error {
			removed, err := d.PruneSessions(ctx, pruneOlderThan)
			if err != nil {
				return err
			}
			for _, id := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		})
	},
}

func init() {
	sessionPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 7*24*time.Hour, "remove sessions untouched for this long")

	sessionCmd.AddCommand(sessionNewCmd, sessionListCmd, sessionPathCmd, sessionRemoveCmd, sessionPruneCmd)
	rootCmd.AddCommand(sessionCmd)
}
