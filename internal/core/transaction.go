package core

import (
	"github.com/shopspring/decimal"
)

// TransactionStatus is the settlement state reported by the bank-data
// provider. Anything other than posted or pending is tracked but never
// contributes to totals.
type TransactionStatus string

const (
	StatusPosted  TransactionStatus = "posted"
	StatusPending TransactionStatus = "pending"
)

// Transaction is a single bank transaction after the provider payload has
// passed the typed parsing boundary. Amount keeps the provider's sign
// convention: negative means money spent, positive means money received.
type Transaction struct {
	ID          string
	AccountID   string
	Date        Date
	Description string
	Category    string
	Amount      decimal.Decimal
	Status      TransactionStatus
}

// Spend reports whether the transaction represents money leaving the
// account.
func (t Transaction) Spend() bool {
	return t.Amount.Sign() < 0
}

// Account is a financial account exposed by one enrollment.
type Account struct {
	ID              string
	EnrollmentID    string
	Name            string
	Type            string
	Subtype         string
	LastFour        string
	InstitutionName string
	Currency        string
	Status          string
}

// Balance is a point-in-time account balance.
type Balance struct {
	AccountID string
	Available decimal.Decimal
	Ledger    decimal.Decimal
}

// AccountTransactions pairs an account with the transactions fetched for it.
// EnrollmentID drives deduplication: providers may return the same
// transaction list for every account linked under one enrollment.
type AccountTransactions struct {
	EnrollmentID string
	AccountID    string
	Transactions []Transaction
}
