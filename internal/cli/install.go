package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nathanEV/granola-mailer/internal/launchd"
)

func newInstallCmd() *cobra.Command {
	var interval int
	var logPath string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the recurring launchd agent (macOS)",
		Long: "Writes a LaunchAgent that invokes this binary on a fixed interval " +
			"and loads it with launchctl. Reinstalling updates the interval.",
		RunE: func(cmd *cobra.Command, args []string) error {
			binary, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to resolve binary path: %w", err)
			}

			path, err := launchd.Install(launchd.Agent{
				BinaryPath:      binary,
				IntervalMinutes: interval,
				LogPath:         logPath,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s (every %d minutes)\n", path, interval)
			return nil
		},
	}

	cmd.Flags().IntVar(&interval, "interval", launchd.DefaultIntervalMinutes, "poll interval in minutes")
	cmd.Flags().StringVar(&logPath, "log", "", "agent log file (default ~/Library/Logs/granola-mailer.log)")
	return cmd
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Unload and remove the launchd agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := launchd.Uninstall(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Agent removed.")
			return nil
		},
	}
}
