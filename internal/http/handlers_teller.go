package http

import (
	"errors"
	"net/http"
	"strings"

	"beep/internal/log"
	"beep/internal/storage"
)

type enrollmentRequest struct {
	AccessToken string `json:"accessToken"`
	Enrollment  struct {
		ID          string `json:"id"`
		Institution struct {
			Name string `json:"name"`
		} `json:"institution"`
	} `json:"enrollment"`
}

type enrollmentResponse struct {
	Message      string `json:"message"`
	EnrollmentID string `json:"enrollmentId"`
	Accounts     int    `json:"accounts"`
}

// handleSaveEnrollment persists a new bank connection. The enrollment is
// saved before any account fetch so a provider hiccup never loses the
// access token; accounts are filled in best effort.
func (s *Server) handleSaveEnrollment(w http.ResponseWriter, r *http.Request, user storage.User) {
	var req enrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" || strings.TrimSpace(req.Enrollment.ID) == "" {
		writeError(w, http.StatusBadRequest, "Missing enrollment data")
		return
	}

	enrollment, err := s.store.SaveEnrollment(r.Context(), storage.Enrollment{
		UserID:          user.ID,
		EnrollmentID:    req.Enrollment.ID,
		AccessToken:     req.AccessToken,
		InstitutionName: req.Enrollment.Institution.Name,
	})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "save enrollment failed",
			log.FieldError, err, log.FieldUserID, user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to save enrollment")
		return
	}

	saved := 0
	accounts, err := s.source.Accounts(r.Context(), req.AccessToken)
	if err != nil {
		s.logger.WarnContext(r.Context(), "account fetch after enrollment failed",
			log.FieldError, err, log.FieldEnrollmentID, enrollment.EnrollmentID)
	} else {
		for _, account := range accounts {
			err := s.store.SaveAccount(r.Context(), storage.LinkedAccount{
				UserID:          user.ID,
				EnrollmentID:    enrollment.EnrollmentID,
				AccountID:       account.ID,
				AccountName:     account.Name,
				AccountType:     account.Type,
				AccountSubtype:  account.Subtype,
				InstitutionName: account.InstitutionName,
				LastFour:        account.LastFour,
			})
			if err != nil {
				s.logger.WarnContext(r.Context(), "save account failed",
					log.FieldError, err, log.FieldAccountID, account.ID)
				continue
			}
			saved++
		}
	}

	s.summaryCache.Delete(user.ID)
	writeJSON(w, http.StatusCreated, enrollmentResponse{
		Message:      "Enrollment saved",
		EnrollmentID: enrollment.EnrollmentID,
		Accounts:     saved,
	})
}

type deleteAccountRequest struct {
	AccountID string `json:"accountId"`
}

type deleteAccountResponse struct {
	Message           string `json:"message"`
	EnrollmentRemoved bool   `json:"enrollmentRemoved"`
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, user storage.User) {
	var req deleteAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.AccountID) == "" {
		writeError(w, http.StatusBadRequest, "Missing account id")
		return
	}

	enrollmentRemoved, err := s.store.DeleteAccount(r.Context(), user.ID, req.AccountID)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Account not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "delete account failed",
			log.FieldError, err, log.FieldUserID, user.ID, log.FieldAccountID, req.AccountID)
		writeError(w, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	s.summaryCache.Delete(user.ID)
	writeJSON(w, http.StatusOK, deleteAccountResponse{
		Message:           "Account deleted",
		EnrollmentRemoved: enrollmentRemoved,
	})
}
