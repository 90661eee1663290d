package teller

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"beep/internal/core"
)

// amount decodes a provider amount that may arrive as a JSON number or as a
// quoted string. Decoding goes through the textual form so values are never
// bounced off a float.
type amount struct {
	value decimal.Decimal
	set   bool
}

func (a *amount) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return err
		}
		s = unquoted
	}
	v, err := core.ParseAmount(s)
	if err != nil {
		return err
	}
	a.value = v
	a.set = true
	return nil
}

type wireAccount struct {
	ID           string `json:"id"`
	EnrollmentID string `json:"enrollment_id"`
	Institution  struct {
		Name string `json:"name"`
	} `json:"institution"`
	LastFour string `json:"last_four"`
	Name     string `json:"name"`
	Subtype  string `json:"subtype"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Currency string `json:"currency"`
}

func (w wireAccount) toAccount() core.Account {
	return core.Account{
		ID:              w.ID,
		EnrollmentID:    w.EnrollmentID,
		Name:            w.Name,
		Type:            w.Type,
		Subtype:         w.Subtype,
		LastFour:        w.LastFour,
		InstitutionName: w.Institution.Name,
		Currency:        w.Currency,
		Status:          w.Status,
	}
}

type wireTransaction struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Details     struct {
		ProcessingStatus string `json:"processing_status"`
		Category         string `json:"category"`
	} `json:"details"`
	Amount json.RawMessage `json:"amount"`
	Status string          `json:"status"`
	Type   string          `json:"type"`
}

// toTransaction converts a wire record, rejecting records whose date or
// amount cannot be parsed so they never reach aggregation.
func (w wireTransaction) toTransaction() (core.Transaction, error) {
	date, err := core.ParseDate(w.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", w.ID, err)
	}

	var amt amount
	if len(w.Amount) > 0 {
		if err := amt.UnmarshalJSON(w.Amount); err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %s: %w", w.ID, err)
		}
	}
	if !amt.set {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", w.ID, core.ErrInvalidAmount)
	}

	return core.Transaction{
		ID:          w.ID,
		AccountID:   w.AccountID,
		Date:        date,
		Description: w.Description,
		Category:    w.Details.Category,
		Amount:      amt.value,
		Status:      core.TransactionStatus(w.Status),
	}, nil
}

type wireBalance struct {
	AccountID string          `json:"account_id"`
	Available json.RawMessage `json:"available"`
	Ledger    json.RawMessage `json:"ledger"`
}

func (w wireBalance) toBalance() (core.Balance, error) {
	b := core.Balance{AccountID: w.AccountID}

	for _, field := range []struct {
		name string
		raw  json.RawMessage
		dst  *decimal.Decimal
	}{
		{"available", w.Available, &b.Available},
		{"ledger", w.Ledger, &b.Ledger},
	} {
		if len(field.raw) == 0 {
			continue
		}
		var amt amount
		if err := amt.UnmarshalJSON(field.raw); err != nil {
			return core.Balance{}, fmt.Errorf("balance %s: %w", field.name, err)
		}
		*field.dst = amt.value
	}
	return b, nil
}
