package http

import (
	"context"
	"net/http"

	"beep/internal/core"
	"beep/internal/log"
	"beep/internal/storage"
	"beep/internal/teller"
)

// fetchDays is how far back the summary fetch reaches. The widest window is
// 30 completed days, so 31 covers it from any time of day.
const fetchDays = 31

func (s *Server) handleSpendingSummary(w http.ResponseWriter, r *http.Request, user storage.User) {
	summary, err := s.cachedSummary(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "spending summary failed",
			log.FieldError, err, log.FieldUserID, user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to compute spending summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleLegacySummary serves the original three-window shape for clients
// that predate the five-window summary.
func (s *Server) handleLegacySummary(w http.ResponseWriter, r *http.Request, user storage.User) {
	summary, err := s.cachedSummary(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "transactions summary failed",
			log.FieldError, err, log.FieldUserID, user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to compute spending summary")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		DailySpend   string `json:"dailySpend"`
		WeeklySpend  string `json:"weeklySpend"`
		MonthlySpend string `json:"monthlySpend"`
	}{
		DailySpend:   summary.DailySpend,
		WeeklySpend:  summary.WeeklySpend,
		MonthlySpend: summary.MonthlySpend,
	})
}

func (s *Server) cachedSummary(ctx context.Context, userID string) (core.Summary, error) {
	if summary, ok := s.summaryCache.Get(userID); ok {
		s.metrics.cacheHits.Add(1)
		return summary, nil
	}
	s.metrics.cacheMisses.Add(1)

	summary, err := s.computeSummary(ctx, userID)
	if err != nil {
		return core.Summary{}, err
	}
	s.summaryCache.Set(userID, summary)
	return summary, nil
}

// computeSummary aggregates spend across every linked account. A failing
// account is logged and skipped so one dead enrollment does not blank the
// whole summary. No linked accounts yields all-zero totals.
func (s *Server) computeSummary(ctx context.Context, userID string) (core.Summary, error) {
	accounts, err := s.store.AccountsByUser(ctx, userID)
	if err != nil {
		return core.Summary{}, err
	}

	now := s.now().In(s.loc)
	today := core.DateOf(now)
	query := teller.TransactionQuery{
		From:  today.AddDays(-fetchDays),
		To:    today,
		Count: 500,
	}

	var fetched []core.AccountTransactions
	seen := make(map[string]bool, len(accounts))
	for _, account := range accounts {
		// Accounts under one enrollment share a transaction list; fetch it
		// once per enrollment instead of once per account.
		if account.EnrollmentID != "" {
			if seen[account.EnrollmentID] {
				continue
			}
			seen[account.EnrollmentID] = true
		}
		txs, err := s.source.Transactions(ctx, account.AccessToken, account.AccountID, query)
		if err != nil {
			s.logger.WarnContext(ctx, "account fetch failed, skipping",
				log.FieldError, err,
				log.FieldAccountID, account.AccountID,
				log.FieldEnrollmentID, account.EnrollmentID)
			continue
		}
		fetched = append(fetched, core.AccountTransactions{
			EnrollmentID: account.EnrollmentID,
			AccountID:    account.AccountID,
			Transactions: txs,
		})
	}

	return core.Aggregate(fetched, now).Format(), nil
}
