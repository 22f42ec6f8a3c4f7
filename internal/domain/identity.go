package domain

// Identity is the authenticated user's minimal profile. A nil *Identity is a guest.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
}
