// Package auth tracks the signed-in identity of a storefront session and
// talks to the account store that issues and checks access tokens.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/olynsn15/fruitopia-store/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Metadata is the profile data captured at sign-up.
type Metadata struct {
	FullName string `json:"full_name,omitempty" bson:"full_name,omitempty"`
}

type User struct {
	ID       string
	Email    string
	Metadata Metadata
}

// Identity formats the user the way the storefront shows it: the full name
// when one was given, otherwise the local part of the email.
func (u User) Identity() *domain.Identity {
	name := strings.TrimSpace(u.Metadata.FullName)
	if name == "" {
		name, _, _ = strings.Cut(u.Email, "@")
	}
	return &domain.Identity{ID: u.ID, Email: u.Email, DisplayName: name}
}

type AuthResult struct {
	User        User
	AccessToken string
	ExpiresAt   time.Time
}

// Provider is the external account service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*AuthResult, error)
	SignUp(ctx context.Context, email, password string, meta Metadata) (*AuthResult, error)
	GetSession(ctx context.Context, token string) (*User, error)
	SignOut(ctx context.Context, token string) error
}
