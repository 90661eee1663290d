package teller

import (
	"context"

	"beep/internal/core"
)

// Source is the outbound port to the bank-data provider. The access token
// identifies one enrollment; every call is scoped to it.
type Source interface {
	// Accounts lists the accounts linked under the enrollment.
	Accounts(ctx context.Context, accessToken string) ([]core.Account, error)

	// Transactions fetches transactions for one account. Zero dates mean
	// no bound; count <= 0 means the provider default.
	Transactions(ctx context.Context, accessToken, accountID string, q TransactionQuery) ([]core.Transaction, error)

	// Balance returns the current balance of one account.
	Balance(ctx context.Context, accessToken, accountID string) (core.Balance, error)
}

// TransactionQuery bounds a transaction fetch.
type TransactionQuery struct {
	From  core.Date
	To    core.Date
	Count int
}
