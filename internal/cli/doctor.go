package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nathanEV/granola-mailer/internal/config"
)

func newDoctorCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites for the poll run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigFor(envFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ok := true

			if _, err := os.Stat(cfg.CachePath); err != nil {
				check(out, false, "Granola cache", "not found at %s (is Granola installed?)", cfg.CachePath)
				ok = false
			} else {
				check(out, true, "Granola cache", "%s", cfg.CachePath)
			}

			stateDir := filepath.Dir(cfg.StatePath())
			if err := writableDir(stateDir); err != nil {
				check(out, false, "State directory", "%s is not writable: %v", stateDir, err)
				ok = false
			} else {
				check(out, true, "State directory", "%s", stateDir)
			}

			if !cfg.EmailEnabled {
				check(out, true, "Master switch", "EMAIL_ENABLED is false, runs behave as dry runs")
			}

			switch cfg.NotifyChannel {
			case config.ChannelTelegram:
				if cfg.TelegramBotToken == "" || cfg.TelegramChatID == 0 {
					check(out, false, "Telegram", "TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must both be set")
					ok = false
				} else {
					check(out, true, "Telegram", "chat %d", cfg.TelegramChatID)
				}
			default:
				if cfg.EmailTo == "" {
					check(out, false, "Recipient", "EMAIL_TO is not set")
					ok = false
				} else {
					check(out, true, "Recipient", "%s", cfg.EmailTo)
				}
				if cfg.EmailFrom == "" {
					check(out, false, "Sender", "EMAIL_FROM is not set")
					ok = false
				} else {
					check(out, true, "Sender", "%s (must be SES-verified in %s)", cfg.EmailFrom, cfg.AWSRegion)
				}
			}

			if ok {
				fmt.Fprintln(out, "\nAll checks passed.")
				return nil
			}
			return fmt.Errorf("some checks failed")
		},
	}
}

func check(out io.Writer, ok bool, name, format string, args ...any) {
	mark := "ok"
	if !ok {
		mark = "FAIL"
	}
	fmt.Fprintf(out, "[%4s] %-16s %s\n", mark, name, fmt.Sprintf(format, args...))
}

func writableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	probe.Close()
	return os.Remove(probe.Name())
}
