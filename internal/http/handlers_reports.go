package http

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"beep/internal/core"
	"beep/internal/log"
	"beep/internal/reports"
	"beep/internal/storage"
	"beep/internal/worker"
)

// handleTestEmail sends the caller their own report built from live data.
func (s *Server) handleTestEmail(w http.ResponseWriter, r *http.Request, user storage.User) {
	if s.reporter == nil || s.mailer == nil {
		writeError(w, http.StatusServiceUnavailable, "Email is not configured")
		return
	}

	report, summary, err := s.reporter.Generate(r.Context(), user.ID, core.PeriodWeek)
	if errors.Is(err, reports.ErrNoEnrollments) {
		writeError(w, http.StatusBadRequest, "No linked accounts")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "test report generation failed",
			log.FieldError, err, log.FieldUserID, user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to generate report")
		return
	}

	if err := s.mailer.SendSpendingReport(r.Context(), user.Email, report, summary); err != nil {
		s.logger.ErrorContext(r.Context(), "test email send failed",
			log.FieldError, err, log.FieldUserID, user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to send email")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Test email sent"})
}

// handleSendReports kicks off report delivery for every user with linked
// accounts. With a broker configured it enqueues one job per user;
// otherwise reports are sent inline before responding.
func (s *Server) handleSendReports(w http.ResponseWriter, r *http.Request) {
	if s.cronSecret == "" || subtle.ConstantTimeCompare(
		[]byte(r.URL.Query().Get("secret")), []byte(s.cronSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	period, err := core.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period")
		return
	}

	if s.publisher != nil {
		users, err := s.store.UsersWithEnrollments(r.Context())
		if err != nil {
			s.logger.ErrorContext(r.Context(), "listing users for reports failed", log.FieldError, err)
			writeError(w, http.StatusInternalServerError, "Failed to dispatch reports")
			return
		}

		// Queued jobs count as sent; the worker logs per-user outcomes.
		summary := worker.Summary{Total: len(users)}
		for _, user := range users {
			if err := s.publisher.PublishReportJob(r.Context(), user.ID, string(period)); err != nil {
				s.logger.ErrorContext(r.Context(), "report job publish failed",
					log.FieldError, err, log.FieldUserID, user.ID)
				summary.Failed++
				continue
			}
			summary.Sent++
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "Reports are not configured")
		return
	}

	summary, err := s.runner.RunAll(r.Context(), period)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "report run failed",
			log.FieldError, err, log.FieldPeriod, string(period))
		writeError(w, http.StatusInternalServerError, "Failed to send reports")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
