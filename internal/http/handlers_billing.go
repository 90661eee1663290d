package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"beep/internal/billing"
	"beep/internal/log"
	"beep/internal/storage"
)

type checkoutRequest struct {
	PlanID string `json:"planId"`
}

type urlResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request, user storage.User) {
	if s.biller == nil {
		writeError(w, http.StatusServiceUnavailable, "Billing is not configured")
		return
	}

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	url, err := s.biller.CheckoutURL(r.Context(), user.ID, user.Email, req.PlanID)
	if errors.Is(err, billing.ErrUnknownPlan) {
		writeError(w, http.StatusBadRequest, "Unknown plan")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "checkout session failed",
			log.FieldError, err, log.FieldUserID, user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	writeJSON(w, http.StatusOK, urlResponse{URL: url})
}

func (s *Server) handleCreatePortal(w http.ResponseWriter, r *http.Request, user storage.User) {
	if s.biller == nil {
		writeError(w, http.StatusServiceUnavailable, "Billing is not configured")
		return
	}
	if user.StripeCustomerID == "" {
		writeError(w, http.StatusNotFound, "No billing account found")
		return
	}

	url, err := s.biller.PortalURL(r.Context(), user.StripeCustomerID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "portal session failed",
			log.FieldError, err, log.FieldUserID, user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to create portal session")
		return
	}

	writeJSON(w, http.StatusOK, urlResponse{URL: url})
}

type subscriptionStatusResponse struct {
	Active           bool   `json:"active"`
	Status           string `json:"status"`
	Plan             string `json:"plan,omitempty"`
	CurrentPeriodEnd string `json:"currentPeriodEnd,omitempty"`
}

func (s *Server) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request, user storage.User) {
	sub, err := s.store.SubscriptionByUser(r.Context(), user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusOK, subscriptionStatusResponse{Active: false, Status: "inactive"})
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "subscription lookup failed",
			log.FieldError, err, log.FieldUserID, user.ID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, subscriptionStatusResponse{
		Active:           billing.Active(sub, s.now()),
		Status:           sub.Status,
		Plan:             sub.PlanID,
		CurrentPeriodEnd: sub.CurrentPeriodEnd.Format(time.RFC3339),
	})
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhooks == nil {
		writeError(w, http.StatusServiceUnavailable, "Billing is not configured")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	event, err := s.webhooks.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		s.logger.WarnContext(r.Context(), "webhook signature verification failed", log.FieldError, err)
		writeError(w, http.StatusBadRequest, "Invalid signature")
		return
	}

	if err := s.webhooks.HandleEvent(r.Context(), event); err != nil {
		s.logger.ErrorContext(r.Context(), "webhook handling failed",
			log.FieldError, err, "event_type", string(event.Type))
		writeError(w, http.StatusInternalServerError, "Webhook handling failed")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Received bool `json:"received"`
	}{Received: true})
}
