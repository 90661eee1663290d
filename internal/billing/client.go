// Package billing wraps Stripe: checkout and portal session creation plus
// webhook processing that mirrors subscription state into storage.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"beep/internal/log"
	"beep/internal/storage"
)

// PlanPro is the only paid plan.
const PlanPro = "pro"

var ErrUnknownPlan = errors.New("billing: unknown plan")

// Options configures the Stripe client.
type Options struct {
	SecretKey     string
	WebhookSecret string
	ProPriceID    string
	AppURL        string
}

type Client struct {
	api    *client.API
	opts   Options
	logger *log.Logger
}

func NewClient(opts Options, logger *log.Logger) *Client {
	api := &client.API{}
	api.Init(opts.SecretKey, nil)

	return &Client{
		api:    api,
		opts:   opts,
		logger: logger.WithComponent(log.ComponentBilling),
	}
}

// CheckoutURL creates a subscription checkout session and returns its URL.
// The user id rides along as the client reference so the webhook can tie the
// completed session back to the account.
func (c *Client) CheckoutURL(ctx context.Context, userID, email, planID string) (string, error) {
	if planID != PlanPro {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}

	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		CustomerEmail:      stripe.String(email),
		ClientReferenceID:  stripe.String(userID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.opts.ProPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Mode:                     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:               stripe.String(c.opts.AppURL + "/dashboard?success=true"),
		CancelURL:                stripe.String(c.opts.AppURL + "/dashboard?canceled=true"),
		BillingAddressCollection: stripe.String("auto"),
		AllowPromotionCodes:      stripe.Bool(true),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"userId": userID,
				"planId": planID,
			},
		},
	}
	params.AddMetadata("userId", userID)
	params.AddMetadata("planId", planID)

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	if session.URL == "" {
		return "", errors.New("billing: checkout session has no url")
	}

	c.logger.InfoContext(ctx, "checkout session created",
		log.FieldUserID, userID,
		"session_id", session.ID)
	return session.URL, nil
}

// PortalURL creates a billing portal session for an existing customer.
func (c *Client) PortalURL(ctx context.Context, customerID string) (string, error) {
	session, err := c.api.BillingPortalSessions.New(&stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.opts.AppURL + "/dashboard"),
	})
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return session.URL, nil
}

// Active reports whether a mirrored subscription currently grants access:
// active on Stripe's side and not past its paid period.
func Active(s storage.Subscription, now time.Time) bool {
	return s.Status == "active" && s.CurrentPeriodEnd.After(now)
}

func (c *Client) subscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	sub, err := c.api.Subscriptions.Get(id, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription %s: %w", id, err)
	}
	return sub, nil
}
