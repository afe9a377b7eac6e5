package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dawnkeeper/dawnkeeper/internal/api"
	"github.com/dawnkeeper/dawnkeeper/internal/captcha"
	"github.com/dawnkeeper/dawnkeeper/internal/config"
	"github.com/dawnkeeper/dawnkeeper/internal/dawn"
	"github.com/dawnkeeper/dawnkeeper/internal/logging"
	"github.com/dawnkeeper/dawnkeeper/internal/metrics"
	"github.com/dawnkeeper/dawnkeeper/internal/registry"
	"github.com/dawnkeeper/dawnkeeper/internal/roster"
	"github.com/dawnkeeper/dawnkeeper/internal/scheduler"
	"github.com/dawnkeeper/dawnkeeper/internal/telegram"
	"github.com/dawnkeeper/dawnkeeper/internal/tokenstore"
	"github.com/dawnkeeper/dawnkeeper/internal/tui/dashboard"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"start"},
	Short:   "Start the account keeper",
	Long: `Start the keeper: log every roster account in, keep the sessions
alive and renew tokens before they expire.

Example:
  dawnkeeper run --config config.yaml --roster accounts.txt`,
	RunE: runKeeper,
}

func init() {
	runCmd.Flags().BoolVar(&globalFlags.Headless, "headless", false, "Run without the terminal dashboard")

	RootCmd.AddCommand(runCmd)
}

func runKeeper(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(globalFlags.Config)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if globalFlags.Roster != "" {
		cfg.Roster.Path = globalFlags.Roster
	}
	if globalFlags.DB != "" {
		cfg.Store.Path = globalFlags.DB
	}

	withDashboard := cfg.Dashboard.Enabled && !globalFlags.Headless

	logger, closeLog, err := buildLogger(cfg, withDashboard)
	if err != nil {
		return err
	}
	defer closeLog()

	creds, err := roster.Load(cfg.Roster.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}
	logger.Info("roster loaded", "path", cfg.Roster.Path, "accounts", len(creds))

	reg := registry.New(
		registry.WithTokenTTL(cfg.Scheduler.TokenTTL),
		registry.WithExpiryMargin(cfg.Scheduler.ExpiryMargin),
	)
	m := metrics.NewMetrics("dawnkeeper")

	var store scheduler.Store
	var storeClose func() error
	if cfg.Store.Enabled {
		s, err := tokenstore.Open(cfg.Store.Path, logger)
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
		store = s
		storeClose = s.Close
		defer storeClose()
	}

	apiClient := dawn.NewClient(dawn.Config{
		BaseURL:     cfg.App.BaseURL,
		AppID:       cfg.App.AppID,
		ExtensionID: cfg.App.ExtensionID,
		Version:     cfg.App.Version,
		Timeout:     cfg.App.Timeout,
	}, m, logger)

	solver := captcha.NewClient(captcha.Config{
		BaseURL:      cfg.Captcha.BaseURL,
		APIKey:       cfg.Captcha.APIKey,
		PollInterval: cfg.Captcha.PollInterval,
		PollTimeout:  cfg.Captcha.PollTimeout,
	}, logger)

	var notifier *telegram.Notifier
	if cfg.Telegram.Enabled {
		notifier = telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, logger)
		telegram.Notify(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			fmt.Sprintf("🌅 dawnkeeper starting with %d accounts", len(creds)))
	}

	auth := scheduler.NewAuthenticator(apiClient, solver, m, logger)
	sched := scheduler.New(scheduler.Config{
		MaxLoginAttempts:    cfg.Scheduler.MaxLoginAttempts,
		RetryDelay:          cfg.Scheduler.RetryDelay,
		StartupSpacing:      cfg.Scheduler.StartupSpacing,
		KeepAliveInterval:   cfg.Scheduler.KeepAliveInterval,
		PointsEvery:         cfg.Scheduler.PointsEvery,
		ExpiryCheckInterval: cfg.Scheduler.ExpiryCheckInterval,
	}, reg, auth, apiClient, store, notifier, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Server.Enabled {
		server := api.NewServer(cfg.Server, reg, m, logger)
		if err := server.Start(); err != nil {
			return err
		}
		defer server.Shutdown()
		logger.Info("status server listening", "addr", cfg.Server.Addr())
	}

	go sched.Run(ctx, creds)

	if cfg.Roster.Watch {
		watcher := roster.NewWatcher(cfg.Roster.Path, logger, func(fresh []roster.Credential) {
			for _, cred := range fresh {
				if _, known := reg.Lookup(cred.Username); !known {
					logger.Info("new roster entry", "account", cred.Username)
					sched.Add(cred)
				}
			}
		}, func(err error) {
			logger.Warn("roster reload failed", "error", err.Error())
		})
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("roster watch unavailable", "error", err.Error())
		}
	}

	if withDashboard {
		dash := dashboard.New(reg, logger)

		sig := api.SetupSignalHandler()
		go func() {
			<-sig
			dash.Quit()
		}()

		if err := dash.Run(); err != nil {
			logger.Error("dashboard failed", "error", err.Error())
		}
	} else {
		logger.Info("running headless, send SIGINT or SIGTERM to stop")
		<-api.SetupSignalHandler()
	}

	logger.Info("shutting down")
	cancel()
	sched.Stop()
	return nil
}

// buildLogger picks the log destination. With the dashboard on, stdout
// belongs to the TUI so entries go to the log file (or nowhere) while
// the dashboard pane shows them via subscription.
func buildLogger(cfg *config.Config, withDashboard bool) (*logging.Logger, func(), error) {
	level := logging.LevelInfo
	if globalFlags.Verbose {
		level = logging.LevelDebug
	} else {
		switch cfg.Logging.Level {
		case "debug":
			level = logging.LevelDebug
		case "warn":
			level = logging.LevelWarn
		case "error":
			level = logging.LevelError
		}
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	} else if withDashboard {
		out = io.Discard
	}

	logger := logging.NewLogger(
		logging.WithOutput(out),
		logging.WithLevel(level),
		logging.WithRingSize(cfg.Logging.RingSize),
	)
	return logger, closeFn, nil
}
