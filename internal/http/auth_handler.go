package http

import (
	"encoding/json"
	"net/http"

	"github.com/olynsn15/fruitopia-store/internal/auth"
	"github.com/olynsn15/fruitopia-store/internal/domain"
)

type AuthHandler struct {
	base
}

type AuthResponse struct {
	User        *domain.Identity `json:"user"`
	AccessToken string           `json:"access_token,omitempty"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	var req auth.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	b := bundleFromContext(r.Context())
	identity, err := b.Auth.Register(ctx, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, AuthResponse{User: identity, AccessToken: b.Auth.Token()})
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	var req auth.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	b := bundleFromContext(r.Context())
	identity, err := b.Auth.Login(ctx, req)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, AuthResponse{User: identity, AccessToken: b.Auth.Token()})
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	b := bundleFromContext(r.Context())
	if err := b.Auth.Logout(ctx); err != nil {
		// the session is signed out locally either way
		h.logFailure(r, err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	b := bundleFromContext(r.Context())
	respondJSON(w, http.StatusOK, AuthResponse{User: b.Auth.Identity()})
}
