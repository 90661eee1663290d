// Package worker turns report jobs into delivered emails.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"beep/internal/amqp"
	"beep/internal/core"
	"beep/internal/log"
	"beep/internal/reports"
	"beep/internal/storage"
)

// Store is what the worker needs from storage beyond report generation.
type Store interface {
	reports.Store
	UsersWithEnrollments(ctx context.Context) ([]storage.User, error)
	LogEmail(ctx context.Context, l storage.EmailLog) error
}

// Sender delivers a rendered spending report.
type Sender interface {
	SendSpendingReport(ctx context.Context, to string, report core.SpendingReport, summary core.Summary) error
}

// Summary counts the outcome of one report run.
type Summary struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ReportWorker generates and sends spending report emails, logging every
// attempt to the email audit trail.
type ReportWorker struct {
	store     Store
	generator *reports.Generator
	sender    Sender
	logger    *log.Logger
}

func NewReportWorker(store Store, generator *reports.Generator, sender Sender, logger *log.Logger) *ReportWorker {
	return &ReportWorker{
		store:     store,
		generator: generator,
		sender:    sender,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleReportJob processes one queued report job.
func (w *ReportWorker) HandleReportJob(ctx context.Context, msg *amqp.ReportJobMessage) error {
	period, err := core.ParsePeriod(msg.Period)
	if err != nil {
		// Malformed period will never succeed on retry.
		w.logger.ErrorContext(ctx, "dropping report job with bad period",
			log.FieldUserID, msg.UserID,
			log.FieldPeriod, msg.Period)
		return nil
	}

	status, err := w.sendReport(ctx, msg.UserID, period)
	if err != nil {
		return err
	}
	w.logger.InfoContext(ctx, "report job finished",
		log.FieldUserID, msg.UserID,
		log.FieldPeriod, string(period),
		"status", status)
	return nil
}

// RunAll generates and sends a report for every user with at least one bank
// connection. Per-user failures are counted, not propagated: one broken
// enrollment must not starve everyone else of their report.
func (w *ReportWorker) RunAll(ctx context.Context, period core.Period) (Summary, error) {
	users, err := w.store.UsersWithEnrollments(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list users: %w", err)
	}

	summary := Summary{Total: len(users)}
	for _, user := range users {
		status, err := w.sendReport(ctx, user.ID, period)
		switch {
		case err != nil:
			summary.Failed++
			w.logger.ErrorContext(ctx, "report failed",
				log.FieldUserID, user.ID,
				log.FieldError, err.Error())
		case status == "skipped":
			summary.Skipped++
		default:
			summary.Sent++
		}
	}

	w.logger.InfoContext(ctx, "report run finished",
		log.FieldPeriod, string(period),
		"total", summary.Total,
		"sent", summary.Sent,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	return summary, nil
}

func (w *ReportWorker) sendReport(ctx context.Context, userID string, period core.Period) (status string, err error) {
	user, err := w.store.UserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}

	report, summary, err := w.generator.Generate(ctx, userID, period)
	if errors.Is(err, reports.ErrNoEnrollments) {
		return "skipped", nil
	}
	if err != nil {
		w.logEmail(ctx, userID, period, "failed", err.Error())
		return "", err
	}

	if err := w.sender.SendSpendingReport(ctx, user.Email, report, summary); err != nil {
		w.logEmail(ctx, userID, period, "failed", err.Error())
		return "", err
	}

	w.logEmail(ctx, userID, period, "sent", "")
	return "sent", nil
}

func (w *ReportWorker) logEmail(ctx context.Context, userID string, period core.Period, status, detail string) {
	meta, _ := json.Marshal(map[string]string{
		"period": string(period),
		"detail": detail,
	})
	if err := w.store.LogEmail(ctx, storage.EmailLog{
		UserID:    userID,
		EmailType: "spending_report",
		Status:    status,
		Metadata:  string(meta),
	}); err != nil {
		w.logger.WarnContext(ctx, "failed to log email",
			log.FieldUserID, userID,
			log.FieldError, err.Error())
	}
}
