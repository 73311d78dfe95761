package cli

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibely/vibely/internal/daemon"
	"github.com/vibely/vibely/pkg/gateway"
	"resty.dev/v3"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status",
	Long:  `Show whether a vibely gateway is running for the configured projects root.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pidFile := daemon.PIDFilePath(cfg.ProjectsRoot)

	if !daemon.IsRunning(pidFile) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	pid, err := daemon.ReadPID(pidFile)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	fmt.Fprintf(out, "Status: running\n")
	fmt.Fprintf(out, "PID: %d\n", pid)

	// Get PID file modification time for uptime calculation
	if fileInfo, err := os.Stat(pidFile); err == nil {
		fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(fileInfo.ModTime())))
	}

	addr := net.JoinHostPort(cfg.Gateway.Host, strconv.Itoa(cfg.Gateway.Port))
	if health, err := fetchHealth(cmd, addr); err == nil {
		fmt.Fprintf(out, "Gateway: %s (%s)\n", addr, health.Status)
		fmt.Fprintf(out, "Channels: %d\n", len(health.Channels))
	} else {
		fmt.Fprintf(out, "Gateway: %s (unreachable: %v)\n", addr, err)
	}

	return nil
}

func fetchHealth(cmd *cobra.Command, addr string) (*gateway.HealthStatus, error) {
	client := resty.New().SetTimeout(3 * time.Second)
	defer client.Close()

	var health gateway.HealthStatus
	res, err := client.R().
		SetContext(cmd.Context()).
		SetResult(&health).
		Get("http://" + addr + "/health")
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("status %d", res.StatusCode())
	}
	return &health, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
