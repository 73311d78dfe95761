package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/vibely/vibely/internal/daemon"
)

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "License operations",
}

var licenseVerifyCmd = &cobra.Command{
	Use:   "verify [key]",
	Short: "Verify a license key against the licensing service",
	Long: `Verify a license key. Without an argument the configured key
(VIBELY_LICENSE_KEY) is checked. The verdict is printed as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLicenseVerify,
}

func init() {
	licenseCmd.AddCommand(licenseVerifyCmd)
	rootCmd.AddCommand(licenseCmd)
}

func runLicenseVerify(cmd *cobra.Command, args []string) error {
	return withDaemon(cmd, nil, func(ctx context.Context, d *daemon.Daemon) error {
		key := d.GetConfig().License.Key
		if len(args) == 1 {
			key = args[0]
		}

		verdict := d.VerifyLicense(ctx, key)
		if err := printJSON(cmd, verdict); err != nil {
			return err
		}
		if !verdict.Valid {
			return failed(verdict.Message)
		}
		return nil
	})
}
