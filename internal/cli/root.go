// Package cli wires the cobra command surface: the bare invocation is the
// poll run the launchd agent fires, everything else is a subcommand.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nathanEV/granola-mailer/internal/cache"
	"github.com/nathanEV/granola-mailer/internal/config"
	"github.com/nathanEV/granola-mailer/internal/logging"
	"github.com/nathanEV/granola-mailer/internal/mailer"
	"github.com/nathanEV/granola-mailer/internal/notify"
	"github.com/nathanEV/granola-mailer/internal/store"
	"github.com/nathanEV/granola-mailer/internal/store/sqlite"
	"github.com/nathanEV/granola-mailer/internal/store/statefile"
)

func NewRootCmd(version string) *cobra.Command {
	var (
		envFile string
		opts    mailer.Options
	)

	rootCmd := &cobra.Command{
		Use:   "granola-mailer",
		Short: "Email Granola meeting transcripts when meetings finish",
		Long: "granola-mailer polls the local Granola cache, detects meetings that " +
			"have likely finished (no updates for a quiet period), and emails each " +
			"transcript exactly once via AWS SES.\n\n" +
			"It is designed to be fired on an interval by a launchd agent; see " +
			"the install subcommand.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd.Context(), envFile, opts)
		},
	}

	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVar(&envFile, "config", "", "path to a .env file (defaults to ./.env when present)")
	rootCmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list meetings that would be emailed without sending")
	rootCmd.Flags().StringVar(&opts.ForceID, "force", "", "send one meeting by id or unique prefix, bypassing the timing filter")
	rootCmd.Flags().BoolVar(&opts.Resend, "resend", false, "with --force, send even if the meeting was already emailed")

	rootCmd.AddCommand(newStatusCmd(&envFile))
	rootCmd.AddCommand(newDoctorCmd(&envFile))
	rootCmd.AddCommand(newInstallCmd())
	rootCmd.AddCommand(newUninstallCmd())

	return rootCmd
}

func runPoll(ctx context.Context, envFile string, opts mailer.Options) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}

	// Missing credentials must fail as a config error before anything is
	// opened or constructed; building a Telegram client with an empty
	// token would fail with an opaque API error instead.
	sending := !opts.DryRun && cfg.EmailEnabled
	if sending {
		if err := mailer.ValidateSendConfig(cfg); err != nil {
			return err
		}
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	m := &mailer.Mailer{
		Source: cache.NewReader(cfg.CachePath),
		Store:  st,
		Config: cfg,
		Log:    log,
	}

	// The sender only exists when something could actually be sent;
	// dry runs must work without transport credentials.
	if sending {
		m.Sender, err = buildSender(ctx, cfg, log)
		if err != nil {
			return err
		}
	}

	_, err = m.Run(ctx, opts)
	return err
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.StateBackend == config.BackendSQLite {
		return sqlite.Open(cfg.StateDB)
	}
	return statefile.Open(cfg.StateFile)
}

func buildSender(ctx context.Context, cfg *config.Config, log *slog.Logger) (notify.Sender, error) {
	switch cfg.NotifyChannel {
	case config.ChannelTelegram:
		return notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	default:
		return notify.NewSES(ctx, cfg.AWSRegion, log)
	}
}

func loadConfigFor(envFile *string) (*config.Config, error) {
	cfg, err := config.Load(*envFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
