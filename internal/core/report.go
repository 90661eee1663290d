package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	reportTransactionLimit = 10
	topCategoryLimit       = 5
)

// ReportTransaction is a spend line in a report email. Amount is the
// positive magnitude of the original transaction.
type ReportTransaction struct {
	ID          string
	Date        Date
	Description string
	Category    string
	Amount      decimal.Decimal
}

// CategoryTotal is spend aggregated by category name.
type CategoryTotal struct {
	Name   string
	Amount decimal.Decimal
}

// SpendingReport is the payload of a periodic report email: total spend over
// the period, the top categories, and the most recent transactions.
type SpendingReport struct {
	FirstName     string
	Period        Period
	TotalSpent    decimal.Decimal
	TopCategories []CategoryTotal
	Transactions  []ReportTransaction
}

// BuildReport computes a spending report from raw provider transactions.
// Only spend (negative amounts) contributes; amounts are flipped to
// positive magnitudes for presentation. Transactions are ordered newest
// first and capped at ten; categories are ranked by spend and capped at
// five, with uncategorized spend grouped under "Uncategorized".
func BuildReport(firstName string, period Period, txs []Transaction) SpendingReport {
	report := SpendingReport{
		FirstName:  firstName,
		Period:     period,
		TotalSpent: decimal.Zero,
	}

	byCategory := make(map[string]decimal.Decimal)
	var lines []ReportTransaction

	for _, tx := range txs {
		if !tx.Spend() {
			continue
		}
		amount := tx.Amount.Abs()
		report.TotalSpent = report.TotalSpent.Add(amount)

		category := tx.Category
		if category == "" {
			category = "Uncategorized"
		}
		byCategory[category] = byCategory[category].Add(amount)

		lines = append(lines, ReportTransaction{
			ID:          tx.ID,
			Date:        tx.Date,
			Description: tx.Description,
			Category:    tx.Category,
			Amount:      amount,
		})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[j].Date.Before(lines[i].Date)
	})
	if len(lines) > reportTransactionLimit {
		lines = lines[:reportTransactionLimit]
	}
	report.Transactions = lines

	for name, amount := range byCategory {
		report.TopCategories = append(report.TopCategories, CategoryTotal{Name: name, Amount: amount})
	}
	sort.SliceStable(report.TopCategories, func(i, j int) bool {
		if !report.TopCategories[i].Amount.Equal(report.TopCategories[j].Amount) {
			return report.TopCategories[i].Amount.GreaterThan(report.TopCategories[j].Amount)
		}
		return report.TopCategories[i].Name < report.TopCategories[j].Name
	})
	if len(report.TopCategories) > topCategoryLimit {
		report.TopCategories = report.TopCategories[:topCategoryLimit]
	}

	return report
}
