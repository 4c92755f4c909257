package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"socialcron/internal/core"

	"github.com/go-chi/chi/v5"
)

type createAccountRequest struct {
	UserID      string           `json:"user_id"`
	Platform    string           `json:"platform"`
	Username    string           `json:"username"`
	Credentials core.Credentials `json:"credentials"`
	Active      *bool            `json:"active,omitempty"`
}

type updateAccountRequest struct {
	Username    *string           `json:"username,omitempty"`
	Credentials *core.Credentials `json:"credentials,omitempty"`
	Active      *bool             `json:"active,omitempty"`
}

// accountResponse never echoes the credential blob back out.
type accountResponse struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Platform  string  `json:"platform"`
	Username  string  `json:"username"`
	Active    bool    `json:"active"`
	LastUsed  *string `json:"last_used,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	platform := core.Platform(strings.TrimSpace(req.Platform))
	if !core.ValidPlatform(platform) {
		writeError(w, http.StatusBadRequest, "invalid_input", "platform must be reddit or twitter")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "username is required")
		return
	}
	if req.Credentials.Username == "" || req.Credentials.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "credentials are required")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	account := &core.Account{
		ID:          core.NewID(),
		UserID:      strings.TrimSpace(req.UserID),
		Platform:    platform,
		Username:    req.Username,
		Credentials: req.Credentials,
		Active:      active,
	}
	if err := s.store.SaveAccount(r.Context(), account); err != nil {
		s.logger.Error("save account", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save account")
		return
	}
	writeJSON(w, http.StatusCreated, accountToResponse(account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	accounts, err := s.store.ListAccounts(r.Context(), userID)
	if err != nil {
		s.logger.Error("list accounts", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list accounts")
		return
	}
	res := make([]accountResponse, 0, len(accounts))
	for _, account := range accounts {
		res = append(res, accountToResponse(account))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	account, err := s.store.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, core.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found")
		} else {
			s.logger.Error("get account", "account_id", accountID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load account")
		}
		return
	}
	writeJSON(w, http.StatusOK, accountToResponse(account))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	account, err := s.store.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, core.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found")
		} else {
			s.logger.Error("get account for update", "account_id", accountID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load account")
		}
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "username cannot be empty")
			return
		}
		account.Username = username
	}
	if req.Credentials != nil {
		if req.Credentials.Username == "" || req.Credentials.Password == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "credentials are required")
			return
		}
		account.Credentials = *req.Credentials
	}
	if req.Active != nil {
		account.Active = *req.Active
	}

	if err := s.store.SaveAccount(r.Context(), account); err != nil {
		s.logger.Error("update account", "account_id", accountID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update account")
		return
	}
	writeJSON(w, http.StatusOK, accountToResponse(account))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if err := s.store.DeleteAccount(r.Context(), accountID); err != nil {
		if errors.Is(err, core.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found")
		} else {
			s.logger.Error("delete account", "account_id", accountID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete account")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func accountToResponse(account *core.Account) accountResponse {
	var lastUsed *string
	if account.LastUsed != nil {
		formatted := account.LastUsed.UTC().Format(time.RFC3339)
		lastUsed = &formatted
	}
	return accountResponse{
		ID:        account.ID,
		UserID:    account.UserID,
		Platform:  string(account.Platform),
		Username:  account.Username,
		Active:    account.Active,
		LastUsed:  lastUsed,
		CreatedAt: account.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: account.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
