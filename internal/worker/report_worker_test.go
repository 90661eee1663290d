package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"beep/internal/amqp"
	"beep/internal/core"
	"beep/internal/log"
	"beep/internal/reports"
	"beep/internal/storage"
	"beep/internal/teller"
)

type fakeStore struct {
	users       map[string]storage.User
	enrollments map[string][]storage.Enrollment
	emailLogs   []storage.EmailLog
}

func (f *fakeStore) UserByID(_ context.Context, id string) (storage.User, error) {
	u, ok := f.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) EnrollmentsByUser(_ context.Context, userID string) ([]storage.Enrollment, error) {
	return f.enrollments[userID], nil
}

func (f *fakeStore) UsersWithEnrollments(_ context.Context) ([]storage.User, error) {
	var out []storage.User
	for id, enrs := range f.enrollments {
		if len(enrs) > 0 {
			out = append(out, f.users[id])
		}
	}
	return out, nil
}

func (f *fakeStore) LogEmail(_ context.Context, l storage.EmailLog) error {
	f.emailLogs = append(f.emailLogs, l)
	return nil
}

type fakeSender struct {
	sent []string
	fail bool
}

func (f *fakeSender) SendSpendingReport(_ context.Context, to string, _ core.SpendingReport, _ core.Summary) error {
	if f.fail {
		return errors.New("provider down")
	}
	f.sent = append(f.sent, to)
	return nil
}

func testWorker(t *testing.T, store *fakeStore, sender *fakeSender) *ReportWorker {
	t.Helper()
	logger := log.New(log.DefaultConfig())

	sb := teller.NewSandbox()
	sb.Seed("tok_1",
		[]core.Account{{ID: "acc_1", EnrollmentID: "enr_1"}},
		map[string][]core.Transaction{
			"acc_1": {
				{ID: "txn_1", Date: core.DateOf(time.Now().AddDate(0, 0, -1)), Description: "Coffee", Amount: decimal.RequireFromString("-10.00"), Status: core.StatusPosted},
			},
		})

	gen := reports.NewGenerator(store, sb, logger)
	return NewReportWorker(store, gen, sender, logger)
}

func TestHandleReportJob(t *testing.T) {
	store := &fakeStore{
		users: map[string]storage.User{
			"user_1": {ID: "user_1", Email: "ada@example.com", FirstName: "Ada"},
		},
		enrollments: map[string][]storage.Enrollment{
			"user_1": {{UserID: "user_1", EnrollmentID: "enr_1", AccessToken: "tok_1"}},
		},
	}
	sender := &fakeSender{}
	w := testWorker(t, store, sender)

	msg := amqp.NewReportJobMessage("user_1", "week")
	if err := w.HandleReportJob(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(sender.sent) != 1 || sender.sent[0] != "ada@example.com" {
		t.Errorf("sent = %v", sender.sent)
	}
	if len(store.emailLogs) != 1 || store.emailLogs[0].Status != "sent" {
		t.Errorf("email logs = %+v", store.emailLogs)
	}
}

func TestHandleReportJobBadPeriod(t *testing.T) {
	store := &fakeStore{users: map[string]storage.User{}, enrollments: map[string][]storage.Enrollment{}}
	sender := &fakeSender{}
	w := testWorker(t, store, sender)

	// Unserviceable job is dropped without error so it is not requeued.
	msg := amqp.NewReportJobMessage("user_1", "decade")
	if err := w.HandleReportJob(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want none", sender.sent)
	}
}

func TestRunAll(t *testing.T) {
	store := &fakeStore{
		users: map[string]storage.User{
			"user_1": {ID: "user_1", Email: "ada@example.com"},
			"user_2": {ID: "user_2", Email: "bob@example.com"},
		},
		enrollments: map[string][]storage.Enrollment{
			"user_1": {{UserID: "user_1", EnrollmentID: "enr_1", AccessToken: "tok_1"}},
			// user_2's token is unknown to the sandbox: the provider call
			// fails, so this user counts as failed.
			"user_2": {{UserID: "user_2", EnrollmentID: "enr_2", AccessToken: "tok_revoked"}},
		},
	}
	sender := &fakeSender{}
	w := testWorker(t, store, sender)

	summary, err := w.RunAll(context.Background(), core.PeriodWeek)
	if err != nil {
		t.Fatalf("run all: %v", err)
	}

	if summary.Total != 2 || summary.Sent != 1 || summary.Failed != 1 || summary.Skipped != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "ada@example.com" {
		t.Errorf("sent = %v", sender.sent)
	}
}

func TestRunAllSendFailureLogged(t *testing.T) {
	store := &fakeStore{
		users: map[string]storage.User{
			"user_1": {ID: "user_1", Email: "ada@example.com"},
		},
		enrollments: map[string][]storage.Enrollment{
			"user_1": {{UserID: "user_1", EnrollmentID: "enr_1", AccessToken: "tok_1"}},
		},
	}
	sender := &fakeSender{fail: true}
	w := testWorker(t, store, sender)

	summary, err := w.RunAll(context.Background(), core.PeriodWeek)
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if summary.Failed != 1 || summary.Sent != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(store.emailLogs) != 1 || store.emailLogs[0].Status != "failed" {
		t.Errorf("email logs = %+v", store.emailLogs)
	}
}
