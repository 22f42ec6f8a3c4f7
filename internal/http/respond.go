package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/olynsn15/fruitopia-store/internal/auth"
	"github.com/olynsn15/fruitopia-store/internal/discount"
	"github.com/olynsn15/fruitopia-store/internal/domain"
	"go.uber.org/zap"
)

const genericFailureMessage = "Something went wrong. Please try again later."

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// base carries what every handler needs.
type base struct {
	logger  *zap.Logger
	timeout time.Duration
}

func (b base) context(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), b.timeout)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status line is already out, nothing useful to do with an encode error
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: "",
	})
}

// handleError converts a domain error to an HTTP status and error code.
// Remote and unexpected failures are logged and answered with a generic message.
func (b base) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Code: "validation_error", Details: verr.Field})
	case errors.Is(err, domain.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "login_required", "Please log in to continue.")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, "invalid_token", auth.ErrInvalidToken.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		respondError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrEmptySelection):
		respondError(w, http.StatusBadRequest, "empty_selection", err.Error())
	case errors.Is(err, discount.ErrInvalidPercent):
		respondError(w, http.StatusBadRequest, "invalid_discount", err.Error())
	case errors.Is(err, domain.ErrRemoteFailure):
		b.logFailure(r, err)
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", genericFailureMessage)
	case errors.Is(err, context.DeadlineExceeded):
		b.logFailure(r, err)
		respondError(w, http.StatusGatewayTimeout, "timeout", genericFailureMessage)
	default:
		b.logFailure(r, err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (b base) logFailure(r *http.Request, err error) {
	b.logger.Error("request failed",
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
}

// remoteUnlessNotFound marks storage errors as remote failures so they are
// not reported as internal errors.
func remoteUnlessNotFound(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.Remote(op, err)
}
