package repository

import (
	"context"

	"github.com/olynsn15/fruitopia-store/internal/domain"
)

// CartRepository stores one cart record per user, written wholesale.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.CartRecord, error)
	UpsertCart(ctx context.Context, cart *domain.CartRecord) error
}
