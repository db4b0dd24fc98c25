package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCmd(envFile *string) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sent state and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFor(envFile)
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sent, err := st.Sent()
			if err != nil {
				return err
			}
			lastRun, err := st.LastRun()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache file:    %s\n", cfg.CachePath)
			fmt.Fprintf(out, "State backend: %s (%s)\n", cfg.StateBackend, cfg.StatePath())
			fmt.Fprintf(out, "Channel:       %s (enabled: %t)\n", cfg.NotifyChannel, cfg.EmailEnabled)
			fmt.Fprintf(out, "Windows:       quiet %dm, lookback %dm\n", cfg.QuietPeriodMinutes, cfg.LookbackMinutes)
			if lastRun.IsZero() {
				fmt.Fprintln(out, "Last run:      never")
			} else {
				fmt.Fprintf(out, "Last run:      %s\n", lastRun.In(cfg.Timezone).Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(out, "Meetings sent: %d\n", len(sent))

			if verbose && len(sent) > 0 {
				ids := make([]string, 0, len(sent))
				for id := range sent {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				fmt.Fprintln(out)
				for _, id := range ids {
					at := sent[id]
					if at.IsZero() {
						fmt.Fprintf(out, "  %s\n", id)
					} else {
						fmt.Fprintf(out, "  %s  %s\n", id, at.In(cfg.Timezone).Format("2006-01-02 15:04"))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every sent meeting id")
	return cmd
}
