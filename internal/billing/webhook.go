package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"beep/internal/log"
	"beep/internal/storage"
)

// Store is what webhook processing needs from storage.
type Store interface {
	UserByStripeCustomer(ctx context.Context, customerID string) (storage.User, error)
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
	UpdateUserSubscription(ctx context.Context, userID, status, plan string, periodEnd time.Time) error
	UpsertSubscription(ctx context.Context, s storage.Subscription) error
}

// Processor applies Stripe webhook events to the local subscription mirror.
type Processor struct {
	client *Client
	store  Store
	logger *log.Logger
}

func NewProcessor(client *Client, store Store, logger *log.Logger) *Processor {
	return &Processor{
		client: client,
		store:  store,
		logger: logger.WithComponent(log.ComponentBilling),
	}
}

// VerifyEvent checks the webhook signature and parses the event.
func (p *Processor) VerifyEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.client.opts.WebhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("verify webhook: %w", err)
	}
	return event, nil
}

// HandleEvent dispatches one verified event. Unhandled event types are
// acknowledged without action so Stripe does not retry them.
func (p *Processor) HandleEvent(ctx context.Context, event stripe.Event) error {
	p.logger.InfoContext(ctx, "webhook event received",
		"event_id", event.ID,
		"event_type", string(event.Type))

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return p.handleCheckoutCompleted(ctx, &session)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return p.handleSubscriptionUpdated(ctx, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return p.handleSubscriptionDeleted(ctx, &sub)

	default:
		p.logger.DebugContext(ctx, "ignoring webhook event", "event_type", string(event.Type))
		return nil
	}
}

func (p *Processor) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	userID := session.ClientReferenceID
	if userID == "" {
		return fmt.Errorf("checkout session %s has no client reference id", session.ID)
	}
	if session.Mode != stripe.CheckoutSessionModeSubscription {
		p.logger.DebugContext(ctx, "skipping non-subscription checkout", "session_id", session.ID)
		return nil
	}
	if session.Subscription == nil {
		return fmt.Errorf("checkout session %s has no subscription", session.ID)
	}

	sub, err := p.client.subscription(ctx, session.Subscription.ID)
	if err != nil {
		return err
	}

	customerID := customerIDOf(session.Customer)
	periodStart, periodEnd := subscriptionPeriod(sub)

	if err := p.store.SetStripeCustomer(ctx, userID, customerID); err != nil {
		return fmt.Errorf("record stripe customer: %w", err)
	}
	if err := p.store.UpdateUserSubscription(ctx, userID, string(sub.Status), PlanPro, periodEnd); err != nil {
		return fmt.Errorf("update user subscription: %w", err)
	}
	if err := p.store.UpsertSubscription(ctx, storage.Subscription{
		UserID:               userID,
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     customerID,
		PlanID:               PlanPro,
		Status:               string(sub.Status),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}); err != nil {
		return fmt.Errorf("mirror subscription: %w", err)
	}

	p.logger.InfoContext(ctx, "checkout completed",
		log.FieldUserID, userID,
		"subscription_id", sub.ID,
		"status", string(sub.Status))
	return nil
}

func (p *Processor) handleSubscriptionUpdated(ctx context.Context, sub *stripe.Subscription) error {
	user, err := p.store.UserByStripeCustomer(ctx, customerIDOf(sub.Customer))
	if err != nil {
		return fmt.Errorf("find user for subscription %s: %w", sub.ID, err)
	}

	periodStart, periodEnd := subscriptionPeriod(sub)

	if err := p.store.UpdateUserSubscription(ctx, user.ID, string(sub.Status), PlanPro, periodEnd); err != nil {
		return fmt.Errorf("update user subscription: %w", err)
	}
	if err := p.store.UpsertSubscription(ctx, storage.Subscription{
		UserID:               user.ID,
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     customerIDOf(sub.Customer),
		PlanID:               PlanPro,
		Status:               string(sub.Status),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}); err != nil {
		return fmt.Errorf("mirror subscription: %w", err)
	}
	return nil
}

func (p *Processor) handleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	user, err := p.store.UserByStripeCustomer(ctx, customerIDOf(sub.Customer))
	if err != nil {
		return fmt.Errorf("find user for subscription %s: %w", sub.ID, err)
	}

	periodStart, periodEnd := subscriptionPeriod(sub)

	if err := p.store.UpdateUserSubscription(ctx, user.ID, "canceled", "", time.Time{}); err != nil {
		return fmt.Errorf("update user subscription: %w", err)
	}
	if err := p.store.UpsertSubscription(ctx, storage.Subscription{
		UserID:               user.ID,
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     customerIDOf(sub.Customer),
		PlanID:               PlanPro,
		Status:               "canceled",
		CancelAtPeriodEnd:    true,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}); err != nil {
		return fmt.Errorf("mirror subscription: %w", err)
	}

	p.logger.InfoContext(ctx, "subscription canceled",
		log.FieldUserID, user.ID,
		"subscription_id", sub.ID)
	return nil
}

func customerIDOf(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// subscriptionPeriod reads the current period from the first subscription
// item, where the API reports it.
func subscriptionPeriod(sub *stripe.Subscription) (start, end time.Time) {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return time.Time{}, time.Time{}
	}
	item := sub.Items.Data[0]
	return time.Unix(item.CurrentPeriodStart, 0).UTC(), time.Unix(item.CurrentPeriodEnd, 0).UTC()
}
