package http

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"beep/internal/log"
	"beep/internal/storage"
)

type subscribeRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, "Please provide a valid email address")
		return
	}

	if _, err := s.store.UserByEmail(r.Context(), email); err == nil {
		writeJSON(w, http.StatusOK, messageResponse{Message: "You're already subscribed!"})
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		s.logger.ErrorContext(r.Context(), "subscribe lookup failed", log.FieldError, err, log.FieldEmail, email)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user, err := s.store.UpsertUser(r.Context(), email, strings.TrimSpace(req.FirstName))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "subscribe upsert failed", log.FieldError, err, log.FieldEmail, email)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// The welcome email is best effort; the subscription already succeeded.
	if s.mailer != nil {
		if err := s.mailer.SendWelcome(r.Context(), user.Email, user.FirstName); err != nil {
			s.logger.WarnContext(r.Context(), "welcome email failed",
				log.FieldError, err, log.FieldUserID, user.ID)
		}
	}

	writeJSON(w, http.StatusCreated, messageResponse{Message: "Successfully subscribed!"})
}
