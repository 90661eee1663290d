package teller

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"beep/internal/core"
)

// Sandbox is an in-memory Source keyed by access token. It backs local
// development and tests without provider credentials.
type Sandbox struct {
	mu          sync.Mutex
	accounts    map[string][]core.Account     // access token -> accounts
	txs         map[string][]core.Transaction // account id -> transactions
	balances    map[string]core.Balance       // account id -> balance
	knownTokens map[string]bool
}

var _ Source = (*Sandbox)(nil)

func NewSandbox() *Sandbox {
	return &Sandbox{
		accounts:    make(map[string][]core.Account),
		txs:         make(map[string][]core.Transaction),
		balances:    make(map[string]core.Balance),
		knownTokens: make(map[string]bool),
	}
}

// Seed registers an enrollment under the token with its accounts and
// per-account transactions.
func (s *Sandbox) Seed(accessToken string, accounts []core.Account, txsByAccount map[string][]core.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.knownTokens[accessToken] = true
	s.accounts[accessToken] = append(s.accounts[accessToken], accounts...)
	for id, txs := range txsByAccount {
		s.txs[id] = append(s.txs[id], txs...)
		s.balances[id] = core.Balance{AccountID: id, Available: decimal.Zero, Ledger: decimal.Zero}
	}
}

// SeedBalance overrides the balance of one account.
func (s *Sandbox) SeedBalance(accountID string, b core.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.AccountID = accountID
	s.balances[accountID] = b
}

func (s *Sandbox) Accounts(_ context.Context, accessToken string) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.knownTokens[accessToken] {
		return nil, ErrUnauthorized
	}
	return append([]core.Account(nil), s.accounts[accessToken]...), nil
}

func (s *Sandbox) Transactions(_ context.Context, accessToken, accountID string, q TransactionQuery) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.knownTokens[accessToken] {
		return nil, ErrUnauthorized
	}

	var out []core.Transaction
	for _, tx := range s.txs[accountID] {
		if !q.From.IsZero() && tx.Date.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && tx.Date.After(q.To) {
			continue
		}
		out = append(out, tx)
		if q.Count > 0 && len(out) == q.Count {
			break
		}
	}
	return out, nil
}

func (s *Sandbox) Balance(_ context.Context, accessToken, accountID string) (core.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.knownTokens[accessToken] {
		return core.Balance{}, ErrUnauthorized
	}
	return s.balances[accountID], nil
}
