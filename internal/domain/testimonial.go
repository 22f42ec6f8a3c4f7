package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Testimonial struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	AuthorName string    `json:"author_name"`
	Message    string    `json:"message"`
	Rating     int       `json:"rating"`
	CreatedAt  time.Time `json:"created_at"`
}
