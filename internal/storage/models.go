package storage

import "time"

// User is an application account. Subscription columns are a denormalized
// copy of the latest Stripe state so the summary path never calls Stripe.
type User struct {
	ID                           string
	Email                        string
	FirstName                    string
	StripeCustomerID             string
	SubscriptionStatus           string
	SubscriptionPlan             string
	SubscriptionCurrentPeriodEnd time.Time
	CreatedAt                    time.Time
	UpdatedAt                    time.Time
}

// Session is an opaque bearer token tied to one user.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Enrollment is one bank connection. The access token authenticates every
// provider call for the accounts linked under it.
type Enrollment struct {
	ID              string
	UserID          string
	EnrollmentID    string
	AccessToken     string
	InstitutionName string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LinkedAccount is a bank account surfaced by an enrollment.
type LinkedAccount struct {
	ID              string
	UserID          string
	EnrollmentID    string
	AccountID       string
	AccountName     string
	AccountType     string
	AccountSubtype  string
	InstitutionName string
	LastFour        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AccountWithToken joins a linked account with its enrollment's access
// token, which is what the summary and report paths need to fetch data.
type AccountWithToken struct {
	LinkedAccount
	AccessToken string
}

// Subscription mirrors one Stripe subscription.
type Subscription struct {
	ID                   string
	UserID               string
	StripeSubscriptionID string
	StripeCustomerID     string
	PlanID               string
	Status               string
	CancelAtPeriodEnd    bool
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// EmailLog records one outbound email attempt.
type EmailLog struct {
	ID        string
	UserID    string
	EmailType string
	Status    string
	Metadata  string
	SentAt    time.Time
}
