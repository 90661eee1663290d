// Package reports builds spending reports by pulling fresh transactions for
// every bank connection a user has.
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"beep/internal/core"
	"beep/internal/log"
	"beep/internal/storage"
	"beep/internal/teller"
)

// ErrNoEnrollments means the user has no bank connections, so there is
// nothing to report on. The job treats it as a skip, not a failure.
var ErrNoEnrollments = errors.New("reports: no enrollments")

const fetchConcurrency = 4

// Store is what report generation needs from storage.
type Store interface {
	UserByID(ctx context.Context, id string) (storage.User, error)
	EnrollmentsByUser(ctx context.Context, userID string) ([]storage.Enrollment, error)
}

type Generator struct {
	store  Store
	source teller.Source
	logger *log.Logger
	now    func() time.Time
}

func NewGenerator(store Store, source teller.Source, logger *log.Logger) *Generator {
	return &Generator{
		store:  store,
		source: source,
		logger: logger.WithComponent(log.ComponentReports),
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report and window summary for one user. Transactions
// are fetched once, wide enough to cover both the requested period and the
// 30-day summary windows.
func (g *Generator) Generate(ctx context.Context, userID string, period core.Period) (core.SpendingReport, core.Summary, error) {
	user, err := g.store.UserByID(ctx, userID)
	if err != nil {
		return core.SpendingReport{}, core.Summary{}, fmt.Errorf("load user: %w", err)
	}

	enrollments, err := g.store.EnrollmentsByUser(ctx, userID)
	if err != nil {
		return core.SpendingReport{}, core.Summary{}, fmt.Errorf("load enrollments: %w", err)
	}
	if len(enrollments) == 0 {
		return core.SpendingReport{}, core.Summary{}, ErrNoEnrollments
	}

	now := g.now()
	periodFrom, to := period.Range(now)
	fetchFrom := core.DateOf(now).AddDays(-31)
	if periodFrom.Before(fetchFrom) {
		fetchFrom = periodFrom
	}

	accounts, err := g.fetchAll(ctx, enrollments, teller.TransactionQuery{From: fetchFrom, To: to})
	if err != nil {
		return core.SpendingReport{}, core.Summary{}, err
	}

	summary := core.Aggregate(accounts, now).Format()

	// The report covers only the requested period, deduplicated the same
	// way the summary windows are.
	var periodTxs []core.Transaction
	seen := make(map[string]bool, len(accounts))
	for _, acct := range accounts {
		if acct.EnrollmentID != "" {
			if seen[acct.EnrollmentID] {
				continue
			}
			seen[acct.EnrollmentID] = true
		}
		for _, tx := range acct.Transactions {
			if tx.Date.Before(periodFrom) || tx.Date.After(to) {
				continue
			}
			periodTxs = append(periodTxs, tx)
		}
	}

	report := core.BuildReport(firstNameOf(user), period, periodTxs)

	g.logger.InfoContext(ctx, "report generated",
		log.FieldUserID, userID,
		log.FieldPeriod, string(period),
		"enrollments", len(enrollments),
		"accounts", len(accounts),
		"transactions", len(periodTxs))
	return report, summary, nil
}

// fetchAll pulls accounts and transactions for every enrollment
// concurrently. One failing enrollment fails the whole report; partial data
// would silently understate spending.
func (g *Generator) fetchAll(ctx context.Context, enrollments []storage.Enrollment, q teller.TransactionQuery) ([]core.AccountTransactions, error) {
	var (
		mu  sync.Mutex
		out []core.AccountTransactions
	)

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(fetchConcurrency)

	for _, enr := range enrollments {
		grp.Go(func() error {
			accounts, err := g.source.Accounts(ctx, enr.AccessToken)
			if err != nil {
				return fmt.Errorf("accounts for enrollment %s: %w", enr.EnrollmentID, err)
			}

			for _, acct := range accounts {
				txs, err := g.source.Transactions(ctx, enr.AccessToken, acct.ID, q)
				if err != nil {
					return fmt.Errorf("transactions for account %s: %w", acct.ID, err)
				}

				enrollmentID := acct.EnrollmentID
				if enrollmentID == "" {
					enrollmentID = enr.EnrollmentID
				}
				mu.Lock()
				out = append(out, core.AccountTransactions{
					EnrollmentID: enrollmentID,
					AccountID:    acct.ID,
					Transactions: txs,
				})
				mu.Unlock()
			}
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func firstNameOf(user storage.User) string {
	if user.FirstName != "" {
		return user.FirstName
	}
	if at := strings.IndexByte(user.Email, '@'); at > 0 {
		return user.Email[:at]
	}
	return "there"
}
