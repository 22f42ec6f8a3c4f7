package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemote_MatchesSentinelAndCause(t *testing.T) {
	err := Remote("load cart", context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrRemoteFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "load cart: context deadline exceeded", err.Error())
}

func TestRemote_NilPassesThrough(t *testing.T) {
	assert.NoError(t, Remote("noop", nil))
}

func TestValidationError_As(t *testing.T) {
	var err error = NewValidationError("email", "Email is required.")

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "email", vErr.Field)
	assert.Equal(t, "email: Email is required.", err.Error())
}

func TestProduct_CartLine(t *testing.T) {
	p := Product{ID: 3, Name: "Pineapple", Price: 18000, ImageURL: "/img/pineapple.png"}

	line := p.CartLine(2)

	assert.Equal(t, CartLine{ProductID: 3, Name: "Pineapple", UnitPrice: 18000, Quantity: 2, ImageRef: "/img/pineapple.png"}, line)
}
