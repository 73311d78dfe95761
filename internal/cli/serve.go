package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vibely/vibely/internal/config"
	"github.com/vibely/vibely/internal/daemon"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Run the vibely HTTP gateway in the foreground",
	Long: `Run the vibely HTTP gateway in the foreground until interrupted.
Channels are called with POST /v1/{channel} and a JSON body {"args": [...]}.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides gateway.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides gateway.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	mutate := func(cfg *config.Config) {
		if serveHost != "" {
			cfg.Gateway.Host = serveHost
		}
		if servePort != 0 {
			cfg.Gateway.Port = servePort
		}
	}

	return withDaemon(cmd, mutate, func(ctx context.Context, d *daemon.Daemon) error {
		if err := d.Start(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "vibely gateway listening on %s\n", d.Status().Addr)
		d.Wait(ctx)
		return nil
	})
}
