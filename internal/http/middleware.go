package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/olynsn15/fruitopia-store/internal/auth"
	"github.com/olynsn15/fruitopia-store/internal/session"
	"go.uber.org/zap"
)

const (
	SessionCookieName = "fruitopia_session"
	SessionHeader     = "X-Session-ID"
)

type contextKey string

const bundleContextKey = contextKey("session")

func bundleFromContext(ctx context.Context) *session.Bundle {
	b, _ := ctx.Value(bundleContextKey).(*session.Bundle)
	return b
}

// RequestIDHeader echoes the request id chi assigned back to the client.
func RequestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// SessionMiddleware attaches the client's session bundle, creating one and
// handing its id back when the client has none.
func SessionMiddleware(registry *session.Registry, secureCookie bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if id == "" {
				if c, err := r.Cookie(SessionCookieName); err == nil {
					id = c.Value
				}
			}

			b, created := registry.Resolve(id)
			if created {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    b.ID,
					Path:     "/",
					HttpOnly: true,
					Secure:   secureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(SessionHeader, b.ID)

			ctx := context.WithValue(r.Context(), bundleContextKey, b)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerMiddleware restores the session from an Authorization bearer token,
// as a returning client would on page load. Requests without the header pass
// through with whatever identity the session already has.
func BearerMiddleware(b base) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, http.StatusUnauthorized, "invalid_token", "Invalid Authorization header format")
				return
			}

			bundle := bundleFromContext(r.Context())
			if bundle == nil || bundle.Auth.Token() == parts[1] {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := b.context(r)
			defer cancel()

			if _, err := bundle.Auth.Restore(ctx, parts[1]); err != nil {
				if errors.Is(err, auth.ErrInvalidToken) {
					respondError(w, http.StatusUnauthorized, "invalid_token", auth.ErrInvalidToken.Error())
					return
				}
				b.handleError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
