// Package email renders and sends transactional mail through Resend.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/resend/resend-go/v2"

	"beep/internal/core"
	"beep/internal/log"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

// Options configures the sender. From addresses follow the
// "Name <addr@domain>" form Resend expects.
type Options struct {
	APIKey      string
	ReportFrom  string
	WelcomeFrom string
	AppURL      string
}

type Sender struct {
	client *resend.Client
	opts   Options
	logger *log.Logger
}

func NewSender(opts Options, logger *log.Logger) *Sender {
	if opts.ReportFrom == "" {
		opts.ReportFrom = "Beep Money <reports@beep.money>"
	}
	if opts.WelcomeFrom == "" {
		opts.WelcomeFrom = "Beep Money <welcome@beep.money>"
	}

	return &Sender{
		client: resend.NewClient(opts.APIKey),
		opts:   opts,
		logger: logger.WithComponent(log.ComponentEmail),
	}
}

type reportData struct {
	FirstName     string
	PeriodLabel   string
	TotalSpent    string
	Summary       core.Summary
	TopCategories []categoryLine
	Transactions  []transactionLine
	AppURL        string
	Year          int
}

type categoryLine struct {
	Name   string
	Amount string
}

type transactionLine struct {
	Date        string
	Description string
	Amount      string
}

// SendSpendingReport renders and delivers one report email. The summary
// carries the window totals; the report carries categories and recent
// transactions.
func (s *Sender) SendSpendingReport(ctx context.Context, to string, report core.SpendingReport, summary core.Summary) error {
	html, err := renderSpendingReport(report, summary, s.opts.AppURL)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Your %s Spending Report", report.Period.Label())
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.opts.ReportFrom,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("send spending report: %w", err)
	}

	s.logger.InfoContext(ctx, "spending report sent",
		log.FieldEmail, to,
		log.FieldPeriod, string(report.Period),
		"email_id", sent.Id)
	return nil
}

// SendWelcome delivers the newsletter welcome email. An empty first name
// falls back to a generic greeting.
func (s *Sender) SendWelcome(ctx context.Context, to, firstName string) error {
	html, err := renderWelcome(firstName, s.opts.AppURL)
	if err != nil {
		return err
	}

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.opts.WelcomeFrom,
		To:      []string{to},
		Subject: "Welcome to Beep Money!",
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("send welcome email: %w", err)
	}

	s.logger.InfoContext(ctx, "welcome email sent",
		log.FieldEmail, to,
		"email_id", sent.Id)
	return nil
}

func renderSpendingReport(report core.SpendingReport, summary core.Summary, appURL string) (string, error) {
	firstName := report.FirstName
	if firstName == "" {
		firstName = "there"
	}

	data := reportData{
		FirstName:   firstName,
		PeriodLabel: report.Period.Label(),
		TotalSpent:  core.FormatUSD(report.TotalSpent),
		Summary:     summary,
		AppURL:      appURL,
		Year:        time.Now().Year(),
	}
	for _, c := range report.TopCategories {
		data.TopCategories = append(data.TopCategories, categoryLine{
			Name:   c.Name,
			Amount: core.FormatUSD(c.Amount),
		})
	}
	for _, tx := range report.Transactions {
		data.Transactions = append(data.Transactions, transactionLine{
			Date:        tx.Date.In(time.UTC).Format("Jan 2"),
			Description: tx.Description,
			Amount:      core.FormatUSD(tx.Amount),
		})
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "spending_report.html.tmpl", data); err != nil {
		return "", fmt.Errorf("render spending report: %w", err)
	}
	return buf.String(), nil
}

func renderWelcome(firstName, appURL string) (string, error) {
	if firstName == "" {
		firstName = "there"
	}

	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "welcome.html.tmpl", struct {
		FirstName string
		AppURL    string
		Year      int
	}{firstName, appURL, time.Now().Year()})
	if err != nil {
		return "", fmt.Errorf("render welcome email: %w", err)
	}
	return buf.String(), nil
}
