package cache

import (
	"context"
	"errors"

	"github.com/olynsn15/fruitopia-store/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.CartRecord, error)
	Set(ctx context.Context, userID string, cart *domain.CartRecord) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
