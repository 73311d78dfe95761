package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vibely/vibely/internal/daemon"
)

var writeSource string

var writeCmd = &cobra.Command{
	Use:   "write <session> <path>",
	Short: "Write a file into a session",
	Long: `Write a file into a session, creating parent directories and replacing
any existing file. Content comes from --file, or from stdin when --file is not set.`,
	Args: cobra.ExactArgs(2),
	RunE: runWrite,
}

func init() {
	writeCmd.Flags().StringVarP(&writeSource, "file", "f", "", "read content from this file instead of stdin")
	rootCmd.AddCommand(writeCmd)
}

func runWrite(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error
	if writeSource != "" {
		content, err = os.ReadFile(writeSource)
	} else {
		content, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	return withDaemon(cmd, nil, func(ctx context.Context, d *daemon.Daemon) error {
		ack := d.WriteFile(ctx, args[0], args[1], content)
		if err := printJSON(cmd, ack); err != nil {
			return err
		}
		if !ack.Success {
			return failed(ack.Message)
		}
		return nil
	})
}
