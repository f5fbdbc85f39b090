package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harun/ayra/internal/assistant"
	"github.com/harun/ayra/internal/commands"
	"github.com/harun/ayra/internal/config"
	"github.com/harun/ayra/internal/janitor"
	"github.com/harun/ayra/internal/logger"
	"github.com/harun/ayra/internal/metrics"
	"github.com/harun/ayra/internal/relay"
	"github.com/harun/ayra/internal/store"
	"github.com/harun/ayra/internal/whatsapp"
	"github.com/harun/ayra/pkg/taskqueue"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Ayra relay service",
	Long: `Run the Ayra relay service in the foreground.
The service receives WhatsApp webhook deliveries, relays messages to the
assistant, and sends replies back. Stop it with SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	level := cfg.Logging.Level
	if cmd.Flags().Changed("log-level") || level == "" {
		level = logLevel
	}
	lg, err := logger.New(logger.Config{
		Level:     level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer lg.Close()
	log := lg.GetZerolog()

	log.Info().Str("version", version).Msg("Starting Ayra")

	st, err := store.NewSQLiteStore(cfg.Store.Path, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	client := assistant.NewClient(assistant.Options{
		APIKey:       cfg.Assistant.APIKey,
		AssistantID:  cfg.Assistant.AssistantID,
		BaseURL:      cfg.Assistant.BaseURL,
		PollInterval: cfg.Assistant.PollInterval(),
	}, log)

	catalog := commands.NewCatalog()
	if cfg.Replies.OverridePath != "" {
		watcher, err := commands.NewOverrideWatcher(catalog, cfg.Replies.OverridePath, log)
		if err != nil {
			return fmt.Errorf("failed to load reply override: %w", err)
		}
		defer watcher.Stop()
	}

	sender := whatsapp.NewGraphSender(whatsapp.SenderOptions{
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		BaseURL:       cfg.WhatsApp.GraphBaseURL,
	}, log)

	m := metrics.NewMetrics()

	orchestrator := relay.NewOrchestrator(st, client, catalog, sender, m, relay.Options{
		RunTimeout: cfg.Assistant.RunTimeout(),
	}, log)

	queue := taskqueue.New(cfg.Server.Workers, log)
	defer queue.Close()

	server, err := whatsapp.NewServer(whatsapp.ServerOptions{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		WebhookPath: cfg.Server.WebhookPath,
		VerifyToken: cfg.WhatsApp.VerifyToken,
		AppSecret:   cfg.WhatsApp.AppSecret,
		Workers:     cfg.Server.Workers,
	}, orchestrator, queue, m, log)
	if err != nil {
		return fmt.Errorf("failed to create webhook server: %w", err)
	}

	if cfg.Retention.Enabled {
		j := janitor.New(st, m, janitor.Options{
			Schedule:   cfg.Retention.Schedule,
			MaxAgeDays: cfg.Retention.MaxAgeDays,
		}, log)
		if err := j.Start(); err != nil {
			return fmt.Errorf("failed to start retention sweep: %w", err)
		}
		defer j.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("Webhook server shutdown failed")
	}

	log.Info().Msg("Ayra stopped")
	return nil
}
