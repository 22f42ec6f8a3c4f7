package auth

import (
	"regexp"
	"strings"

	"github.com/olynsn15/fruitopia-store/internal/domain"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type RegisterInput struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the fields in form order and reports the first problem.
func (in RegisterInput) Validate() error {
	if strings.TrimSpace(in.FullName) == "" {
		return domain.NewValidationError("full_name", "Full name is required.")
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return domain.NewValidationError("email", "Email is required.")
	}
	if !emailPattern.MatchString(email) {
		return domain.NewValidationError("email", "Please enter a valid email address.")
	}
	if strings.TrimSpace(in.Password) == "" {
		return domain.NewValidationError("password", "Password is required.")
	}
	if strings.TrimSpace(in.ConfirmPassword) == "" {
		return domain.NewValidationError("confirm_password", "Please confirm your password.")
	}
	if in.Password != in.ConfirmPassword {
		return domain.NewValidationError("confirm_password", "Passwords do not match.")
	}
	if len(in.Password) < minPasswordLength {
		return domain.NewValidationError("password", "Password must be at least 6 characters.")
	}
	if !mixedCase(in.Password) {
		return domain.NewValidationError("password", "Password should contain uppercase, lowercase, and numbers for better security!")
	}
	return nil
}

func (in LoginInput) Validate() error {
	if strings.TrimSpace(in.Email) == "" {
		return domain.NewValidationError("email", "Email is required.")
	}
	if strings.TrimSpace(in.Password) == "" {
		return domain.NewValidationError("password", "Password is required.")
	}
	return nil
}

func mixedCase(password string) bool {
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	return upper && lower && digit
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
