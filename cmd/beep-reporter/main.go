package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"beep/internal/amqp"
	"beep/internal/config"
	"beep/internal/core"
	"beep/internal/email"
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

	logger.Info("Starting beep-reporter")

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
	default:
		source = teller.NewSandbox()
	}

	mailer := email.NewSender(email.Options{
		APIKey:     cfg.ResendAPIKey,
		ReportFrom: cfg.EmailFrom,
		AppURL:     cfg.AppURL,
	}, logger)

	// Reports use the configured reporting timezone, not the host zone.
	loc := cfg.Location()
	generator := reports.NewGenerator(repo, source, logger).
		WithClock(func() time.Time { return time.Now().In(loc) })
	reportWorker := worker.NewReportWorker(repo, generator, mailer, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Consume queued report jobs when a broker is configured.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err, "url", cfg.AMQPURL)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			err := amqpClient.ConsumeReportJobs(ctx, func(msg *amqp.ReportJobMessage) error {
				return reportWorker.HandleReportJob(ctx, msg)
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("AMQP consumer stopped", "error", err)
				cancel()
			}
		}()
		logger.Info("Consuming report jobs", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, running on the periodic schedule only")
	}

	// Periodic pass as a backup for lost messages, and the only delivery
	// path when no broker is configured.
	ticker := time.NewTicker(cfg.ReportInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("Running scheduled report pass")
				summary, err := reportWorker.RunAll(ctx, core.PeriodWeek)
				if err != nil {
					logger.Error("Scheduled report pass failed", "error", err)
					continue
				}
				logger.Info("Scheduled report pass complete",
					"total", summary.Total,
					"sent", summary.Sent,
					"skipped", summary.Skipped,
					"failed", summary.Failed)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()
	logger.Info("Reporter shutdown complete")
}
