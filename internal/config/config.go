package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port   string
	AppURL string

	// Database
	SQLiteDBPath string

	// AMQP (optional; report jobs are sent inline when unset)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Teller (bank-data aggregator)
	TellerBaseURL  string
	TellerCertFile string
	TellerKeyFile  string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeProPriceID    string

	// Resend
	ResendAPIKey string
	EmailFrom    string

	// Reports
	CronSecret     string
	ReportTimezone string

	// Worker
	ReportInterval time.Duration

	// Data source selection
	DataSource string
}

func Load() *Config {
	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppURL: getEnv("APP_URL", "http://localhost:8080"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/beep.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "beep"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "report_jobs"),

		TellerBaseURL:  getEnv("TELLER_API_URL", "https://api.teller.io"),
		TellerCertFile: getEnv("TELLER_CERTIFICATE_PATH", ""),
		TellerKeyFile:  getEnv("TELLER_PRIVATE_KEY_PATH", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeProPriceID:    getEnv("STRIPE_PRO_PRICE_ID", ""),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		EmailFrom:    getEnv("EMAIL_FROM", "Beep Money <reports@beep.money>"),

		CronSecret:     getEnv("CRON_SECRET", ""),
		ReportTimezone: getEnv("REPORT_TIMEZONE", "UTC"),

		ReportInterval: getEnvDuration("REPORT_INTERVAL", 24*time.Hour),

		DataSource: getEnv("DATA_SOURCE", "sandbox"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data source
	validSources := []string{"teller", "sandbox"}
	isValidSource := false
	for _, source := range validSources {
		if c.DataSource == source {
			isValidSource = true
			break
		}
	}
	if !isValidSource {
		errors = append(errors, fmt.Sprintf("invalid data source '%s': must be one of %v", c.DataSource, validSources))
	}

	// Validate SQLite path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate Teller mTLS configuration if the live source is selected
	if c.DataSource == "teller" {
		if c.TellerCertFile == "" || c.TellerKeyFile == "" {
			errors = append(errors, "TELLER_CERTIFICATE_PATH and TELLER_PRIVATE_KEY_PATH are required when using the teller data source")
		} else {
			if _, err := os.Stat(c.TellerCertFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Teller certificate file does not exist: %s", c.TellerCertFile))
			}
			if _, err := os.Stat(c.TellerKeyFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Teller private key file does not exist: %s", c.TellerKeyFile))
			}
		}
		if u, err := url.Parse(c.TellerBaseURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") {
			errors = append(errors, fmt.Sprintf("invalid Teller API URL '%s'", c.TellerBaseURL))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate report timezone
	if _, err := time.LoadLocation(c.ReportTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid report timezone '%s': %v", c.ReportTimezone, err))
	}

	// Validate report interval
	if c.ReportInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must be at least 1 minute", c.ReportInterval))
	} else if c.ReportInterval > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid report interval %v: must be at most 30 days", c.ReportInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Location resolves the configured reporting timezone. All spending-window
// math runs in this location so totals do not shift with the deployment
// region.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
