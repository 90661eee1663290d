package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"beep/internal/cache"
	"beep/internal/core"
	"beep/internal/log"
	"beep/internal/storage"
	"beep/internal/teller"
	"beep/internal/worker"

	"github.com/stripe/stripe-go/v82"
)

// Store is the slice of the repository the HTTP surface needs.
type Store interface {
	UpsertUser(ctx context.Context, email, firstName string) (storage.User, error)
	UserByEmail(ctx context.Context, email string) (storage.User, error)
	UserBySession(ctx context.Context, token string) (storage.User, error)
	EnrollmentsByUser(ctx context.Context, userID string) ([]storage.Enrollment, error)
	SaveEnrollment(ctx context.Context, e storage.Enrollment) (storage.Enrollment, error)
	SaveAccount(ctx context.Context, a storage.LinkedAccount) error
	AccountsByUser(ctx context.Context, userID string) ([]storage.AccountWithToken, error)
	DeleteAccount(ctx context.Context, userID, accountID string) (bool, error)
	SubscriptionByUser(ctx context.Context, userID string) (storage.Subscription, error)
	UsersWithEnrollments(ctx context.Context) ([]storage.User, error)
}

// Biller creates Stripe-hosted checkout and billing portal sessions.
type Biller interface {
	CheckoutURL(ctx context.Context, userID, email, planID string) (string, error)
	PortalURL(ctx context.Context, customerID string) (string, error)
}

// WebhookProcessor verifies and applies Stripe webhook events.
type WebhookProcessor interface {
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
	HandleEvent(ctx context.Context, event stripe.Event) error
}

// Mailer sends transactional email.
type Mailer interface {
	SendWelcome(ctx context.Context, to, firstName string) error
	SendSpendingReport(ctx context.Context, to string, report core.SpendingReport, summary core.Summary) error
}

// Reporter builds a spending report for one user.
type Reporter interface {
	Generate(ctx context.Context, userID string, period core.Period) (core.SpendingReport, core.Summary, error)
}

// ReportRunner sends reports to every user with linked accounts.
type ReportRunner interface {
	RunAll(ctx context.Context, period core.Period) (worker.Summary, error)
}

// JobPublisher enqueues report jobs on the broker. Nil means reports are
// sent inline by the cron endpoint.
type JobPublisher interface {
	PublishReportJob(ctx context.Context, userID, period string) error
}

// Deps collects everything the server calls out to.
type Deps struct {
	Store     Store
	Source    teller.Source
	Biller    Biller
	Webhooks  WebhookProcessor
	Mailer    Mailer
	Reporter  Reporter
	Runner    ReportRunner
	Publisher JobPublisher

	Logger     *log.Logger
	Location   *time.Location
	CronSecret string
}

type Server struct {
	http.Server

	store     Store
	source    teller.Source
	biller    Biller
	webhooks  WebhookProcessor
	mailer    Mailer
	reporter  Reporter
	runner    ReportRunner
	publisher JobPublisher

	logger     *log.Logger
	loc        *time.Location
	cronSecret string
	now        func() time.Time

	rateLimiter  *rateLimiter
	summaryCache *cache.LRUCache[core.Summary]
	cacheManager *cache.Manager

	metrics      serverMetrics
	shutdownOnce sync.Once
}

// serverMetrics backs the plain-text /metrics endpoint.
type serverMetrics struct {
	requestsTotal atomic.Int64
	responses5xx  atomic.Int64
	rateLimited   atomic.Int64
	cacheHits     atomic.Int64
	cacheMisses   atomic.Int64
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:        deps.Store,
		source:       deps.Source,
		biller:       deps.Biller,
		webhooks:     deps.Webhooks,
		mailer:       deps.Mailer,
		reporter:     deps.Reporter,
		runner:       deps.Runner,
		publisher:    deps.Publisher,
		logger:       deps.Logger.WithComponent(log.ComponentHTTP),
		loc:          loc,
		cronSecret:   deps.CronSecret,
		now:          time.Now,
		rateLimiter:  newRateLimiter(),
		summaryCache: cache.NewLRUCache[core.Summary](1000, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/subscribe", s.withObservability(s.handleSubscribe))
	mux.HandleFunc("GET /api/spending/summary", s.withObservability(s.withAuth(s.handleSpendingSummary)))
	mux.HandleFunc("GET /api/transactions/summary", s.withObservability(s.withAuth(s.handleLegacySummary)))
	mux.HandleFunc("POST /api/teller/enrollment", s.withObservability(s.withAuth(s.handleSaveEnrollment)))
	mux.HandleFunc("DELETE /api/teller/account", s.withObservability(s.withAuth(s.handleDeleteAccount)))
	mux.HandleFunc("POST /api/stripe/create-checkout", s.withObservability(s.withAuth(s.handleCreateCheckout)))
	mux.HandleFunc("POST /api/stripe/create-portal", s.withObservability(s.withAuth(s.handleCreatePortal)))
	mux.HandleFunc("GET /api/stripe/subscription-status", s.withObservability(s.withAuth(s.handleSubscriptionStatus)))
	mux.HandleFunc("POST /api/stripe/webhook", s.withObservability(s.handleStripeWebhook))
	mux.HandleFunc("POST /api/email/test", s.withObservability(s.withAuth(s.handleTestEmail)))
	mux.HandleFunc("GET /api/cron/send-reports", s.withObservability(s.handleSendReports))

	return s
}

// Shutdown stops the server and its background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
