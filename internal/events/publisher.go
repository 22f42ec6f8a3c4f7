package events

import (
	"context"
	"time"

	"github.com/olynsn15/fruitopia-store/internal/domain"
)

const CheckoutTopic = "checkout-events"

// CheckoutCompleted is emitted after selected lines leave the cart.
type CheckoutCompleted struct {
	EventID    string            `json:"event_id"`
	UserID     string            `json:"user_id"`
	Lines      []domain.CartLine `json:"lines"`
	Quantity   int               `json:"quantity"`
	Subtotal   int64             `json:"subtotal"`
	Shipping   int64             `json:"shipping"`
	Tax        int64             `json:"tax"`
	Total      int64             `json:"total"`
	OccurredAt time.Time         `json:"occurred_at"`
}

type Publisher interface {
	PublishCheckout(ctx context.Context, event CheckoutCompleted) error
	Close() error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishCheckout(context.Context, CheckoutCompleted) error { return nil }

func (Nop) Close() error { return nil }
