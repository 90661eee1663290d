// Package storage persists users, bank enrollments, linked accounts,
// subscription state, and the email audit trail in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const timeLayout = time.RFC3339

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// UpsertUser creates the user for an email or returns the existing one.
// A non-empty first name overwrites what is stored.
func (r *SQLiteRepository) UpsertUser(ctx context.Context, email, firstName string) (User, error) {
	id := uuid.NewString()
	now := formatTime(time.Now())

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, created_at, updated_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			first_name = COALESCE(NULLIF(excluded.first_name, ''), users.first_name),
			updated_at = excluded.updated_at`,
		id, email, firstName, now, now)
	if err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}

	return r.UserByEmail(ctx, email)
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id string) (User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, selectUser+" WHERE id = ?", id))
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, selectUser+" WHERE email = ?", email))
}

func (r *SQLiteRepository) UserByStripeCustomer(ctx context.Context, customerID string) (User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, selectUser+" WHERE stripe_customer_id = ?", customerID))
}

const selectUser = `
	SELECT id, email, COALESCE(first_name, ''), COALESCE(stripe_customer_id, ''),
	       COALESCE(subscription_status, ''), COALESCE(subscription_plan, ''),
	       COALESCE(subscription_current_period_end, ''), created_at, updated_at
	FROM users`

func (r *SQLiteRepository) scanUser(row *sql.Row) (User, error) {
	var u User
	var periodEnd, createdAt, updatedAt string
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.StripeCustomerID,
		&u.SubscriptionStatus, &u.SubscriptionPlan, &periodEnd, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	if periodEnd != "" {
		u.SubscriptionCurrentPeriodEnd = parseTime(periodEnd)
	}
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return u, nil
}

// SetStripeCustomer records the Stripe customer id for a user.
func (r *SQLiteRepository) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET stripe_customer_id = ?, updated_at = ? WHERE id = ?`,
		customerID, formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("set stripe customer: %w", err)
	}
	return requireRow(res)
}

// UpdateUserSubscription refreshes the denormalized subscription columns.
func (r *SQLiteRepository) UpdateUserSubscription(ctx context.Context, userID, status, plan string, periodEnd time.Time) error {
	var end any
	if !periodEnd.IsZero() {
		end = formatTime(periodEnd)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET subscription_status = NULLIF(?, ''),
		    subscription_plan = NULLIF(?, ''),
		    subscription_current_period_end = ?,
		    updated_at = ?
		WHERE id = ?`,
		status, plan, end, formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("update user subscription: %w", err)
	}
	return requireRow(res)
}

// CreateSession issues an opaque bearer token for a user. The auth protocol
// (magic-link issuance and delivery) lives outside this repo, so none of the
// shipped binaries call this; it is the seam the external auth service uses
// to mint the tokens UserBySession resolves.
func (r *SQLiteRepository) CreateSession(ctx context.Context, userID string, ttl time.Duration) (Session, error) {
	s := Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		s.Token, s.UserID, formatTime(s.CreatedAt), formatTime(s.ExpiresAt))
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// UserBySession resolves a bearer token to its user. Expired or unknown
// tokens both come back as ErrNotFound.
func (r *SQLiteRepository) UserBySession(ctx context.Context, token string) (User, error) {
	var userID, expiresAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, expires_at FROM sessions WHERE token = ?`, token).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup session: %w", err)
	}
	if time.Now().After(parseTime(expiresAt)) {
		return User{}, ErrNotFound
	}
	return r.UserByID(ctx, userID)
}

// SaveEnrollment stores a bank connection, replacing the access token and
// institution if the enrollment already exists.
func (r *SQLiteRepository) SaveEnrollment(ctx context.Context, e Enrollment) (Enrollment, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := formatTime(time.Now())

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teller_enrollments (id, user_id, enrollment_id, access_token, institution_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(enrollment_id) DO UPDATE SET
			access_token = excluded.access_token,
			institution_name = excluded.institution_name,
			updated_at = excluded.updated_at`,
		e.ID, e.UserID, e.EnrollmentID, e.AccessToken, e.InstitutionName, now, now)
	if err != nil {
		return Enrollment{}, fmt.Errorf("save enrollment: %w", err)
	}

	return r.enrollmentByEnrollmentID(ctx, e.EnrollmentID)
}

func (r *SQLiteRepository) enrollmentByEnrollmentID(ctx context.Context, enrollmentID string) (Enrollment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, enrollment_id, access_token, institution_name, created_at, updated_at
		FROM teller_enrollments WHERE enrollment_id = ?`, enrollmentID)

	var e Enrollment
	var createdAt, updatedAt string
	err := row.Scan(&e.ID, &e.UserID, &e.EnrollmentID, &e.AccessToken, &e.InstitutionName, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Enrollment{}, ErrNotFound
	}
	if err != nil {
		return Enrollment{}, fmt.Errorf("scan enrollment: %w", err)
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func (r *SQLiteRepository) EnrollmentsByUser(ctx context.Context, userID string) ([]Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, enrollment_id, access_token, institution_name, created_at, updated_at
		FROM teller_enrollments WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []Enrollment
	for rows.Next() {
		var e Enrollment
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.UserID, &e.EnrollmentID, &e.AccessToken, &e.InstitutionName, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveAccount stores a linked account, refreshing its metadata if the
// provider account already exists.
func (r *SQLiteRepository) SaveAccount(ctx context.Context, a LinkedAccount) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := formatTime(time.Now())

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teller_accounts (id, user_id, enrollment_id, account_id, account_name, account_type,
			account_subtype, institution_name, last_four, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			account_name = excluded.account_name,
			account_type = excluded.account_type,
			account_subtype = excluded.account_subtype,
			institution_name = excluded.institution_name,
			last_four = excluded.last_four,
			updated_at = excluded.updated_at`,
		a.ID, a.UserID, a.EnrollmentID, a.AccountID, a.AccountName, a.AccountType,
		a.AccountSubtype, a.InstitutionName, a.LastFour, now, now)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}

// AccountsByUser lists the user's linked accounts joined with the access
// token of their enrollment.
func (r *SQLiteRepository) AccountsByUser(ctx context.Context, userID string) ([]AccountWithToken, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, a.enrollment_id, a.account_id, a.account_name, a.account_type,
		       COALESCE(a.account_subtype, ''), a.institution_name, COALESCE(a.last_four, ''),
		       a.created_at, a.updated_at, e.access_token
		FROM teller_accounts a
		JOIN teller_enrollments e ON e.enrollment_id = a.enrollment_id AND e.user_id = a.user_id
		WHERE a.user_id = ?
		ORDER BY a.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []AccountWithToken
	for rows.Next() {
		var a AccountWithToken
		var createdAt, updatedAt string
		if err := rows.Scan(&a.ID, &a.UserID, &a.EnrollmentID, &a.AccountID, &a.AccountName, &a.AccountType,
			&a.AccountSubtype, &a.InstitutionName, &a.LastFour, &createdAt, &updatedAt, &a.AccessToken); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAccount removes one linked account. When it was the last account of
// its enrollment, the enrollment goes too so the stale access token does not
// linger; the returned flag reports that cleanup.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, userID, accountID string) (enrollmentRemoved bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var enrollmentID string
	err = tx.QueryRowContext(ctx, `
		SELECT enrollment_id FROM teller_accounts WHERE user_id = ? AND account_id = ?`,
		userID, accountID).Scan(&enrollmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("find account: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM teller_accounts WHERE user_id = ? AND account_id = ?`,
		userID, accountID); err != nil {
		return false, fmt.Errorf("delete account: %w", err)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM teller_accounts WHERE user_id = ? AND enrollment_id = ?`,
		userID, enrollmentID).Scan(&remaining); err != nil {
		return false, fmt.Errorf("count remaining accounts: %w", err)
	}

	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM teller_enrollments WHERE user_id = ? AND enrollment_id = ?`,
			userID, enrollmentID); err != nil {
			return false, fmt.Errorf("delete enrollment: %w", err)
		}
		enrollmentRemoved = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return enrollmentRemoved, nil
}

// UsersWithEnrollments lists users who have at least one bank connection,
// which is the report job's audience.
func (r *SQLiteRepository) UsersWithEnrollments(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, selectUser+`
		WHERE id IN (SELECT DISTINCT user_id FROM teller_enrollments)
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users with enrollments: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		var periodEnd, createdAt, updatedAt string
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.StripeCustomerID,
			&u.SubscriptionStatus, &u.SubscriptionPlan, &periodEnd, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if periodEnd != "" {
			u.SubscriptionCurrentPeriodEnd = parseTime(periodEnd)
		}
		u.CreatedAt = parseTime(createdAt)
		u.UpdatedAt = parseTime(updatedAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpsertSubscription mirrors a Stripe subscription row.
func (r *SQLiteRepository) UpsertSubscription(ctx context.Context, s Subscription) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := formatTime(time.Now())

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, stripe_subscription_id, stripe_customer_id, plan_id,
			status, cancel_at_period_end, current_period_start, current_period_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stripe_subscription_id) DO UPDATE SET
			plan_id = excluded.plan_id,
			status = excluded.status,
			cancel_at_period_end = excluded.cancel_at_period_end,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at`,
		s.ID, s.UserID, s.StripeSubscriptionID, s.StripeCustomerID, s.PlanID,
		s.Status, boolToInt(s.CancelAtPeriodEnd), formatTime(s.CurrentPeriodStart), formatTime(s.CurrentPeriodEnd), now, now)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SubscriptionByUser(ctx context.Context, userID string) (Subscription, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, stripe_subscription_id, stripe_customer_id, plan_id, status,
		       cancel_at_period_end, current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions WHERE user_id = ?
		ORDER BY updated_at DESC LIMIT 1`, userID)

	var s Subscription
	var cancel int
	var periodStart, periodEnd, createdAt, updatedAt string
	err := row.Scan(&s.ID, &s.UserID, &s.StripeSubscriptionID, &s.StripeCustomerID, &s.PlanID, &s.Status,
		&cancel, &periodStart, &periodEnd, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("scan subscription: %w", err)
	}
	s.CancelAtPeriodEnd = cancel != 0
	s.CurrentPeriodStart = parseTime(periodStart)
	s.CurrentPeriodEnd = parseTime(periodEnd)
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return s, nil
}

// LogEmail appends to the email audit trail.
func (r *SQLiteRepository) LogEmail(ctx context.Context, l EmailLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.SentAt.IsZero() {
		l.SentAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_logs (id, user_id, email_type, status, metadata, sent_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?)`,
		l.ID, l.UserID, l.EmailType, l.Status, l.Metadata, formatTime(l.SentAt))
	if err != nil {
		return fmt.Errorf("log email: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
