package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"beep/internal/amqp"
	"beep/internal/billing"
	"beep/internal/config"
	"beep/internal/email"
	apphttp "beep/internal/http"
	"beep/internal/log"
	"beep/internal/reports"
	"beep/internal/storage"
	"beep/internal/teller"
	"beep/internal/worker"
)

func main() {
	// Load .env for local development; ignore errors in production.
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting beep server")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var source teller.Source
	switch cfg.DataSource {
	case "teller":
		client, err := teller.NewClient(teller.Options{
			BaseURL:  cfg.TellerBaseURL,
			CertFile: cfg.TellerCertFile,
			KeyFile:  cfg.TellerKeyFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Teller client", "error", err)
			os.Exit(1)
		}
		source = client
		logger.Info("Initialized Teller data source", "base_url", cfg.TellerBaseURL)
	default:
		source = teller.NewSandbox()
		logger.Info("Initialized sandbox data source")
	}

	mailer := email.NewSender(email.Options{
		APIKey:     cfg.ResendAPIKey,
		ReportFrom: cfg.EmailFrom,
		AppURL:     cfg.AppURL,
	}, logger)

	// All window math runs in the configured reporting timezone so emailed
	// reports and the dashboard agree regardless of the host zone.
	loc := cfg.Location()
	generator := reports.NewGenerator(repo, source, logger).
		WithClock(func() time.Time { return time.Now().In(loc) })
	reportWorker := worker.NewReportWorker(repo, generator, mailer, logger)

	deps := apphttp.Deps{
		Store:      repo,
		Source:     source,
		Mailer:     mailer,
		Reporter:   generator,
		Runner:     reportWorker,
		Logger:     logger,
		Location:   loc,
		CronSecret: cfg.CronSecret,
	}

	if cfg.StripeSecretKey != "" {
		billingClient := billing.NewClient(billing.Options{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			ProPriceID:    cfg.StripeProPriceID,
			AppURL:        cfg.AppURL,
		}, logger)
		deps.Biller = billingClient
		deps.Webhooks = billing.NewProcessor(billingClient, repo, logger)
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing disabled, no secret key configured")
	}

	// With a broker configured, the cron endpoint enqueues report jobs for
	// the reporter worker instead of sending inline.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, reports will be sent inline", "error", err)
		} else {
			defer amqpClient.Close()
			deps.Publisher = amqpClient
			logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting HTTP server", "port", cfg.Port, "data_source", cfg.DataSource)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
