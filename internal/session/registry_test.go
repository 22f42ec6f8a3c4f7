package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/olynsn15/fruitopia-store/internal/auth"
	"github.com/olynsn15/fruitopia-store/internal/discount"
	"github.com/olynsn15/fruitopia-store/internal/domain"
	"github.com/olynsn15/fruitopia-store/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct{}

func (stubProvider) SignIn(_ context.Context, email, _ string) (*auth.AuthResult, error) {
	return &auth.AuthResult{User: auth.User{ID: "u-" + email, Email: email}, AccessToken: "tok"}, nil
}

func (stubProvider) SignUp(_ context.Context, email, _ string, meta auth.Metadata) (*auth.AuthResult, error) {
	return &auth.AuthResult{User: auth.User{ID: "u-" + email, Email: email, Metadata: meta}, AccessToken: "tok"}, nil
}

func (stubProvider) GetSession(context.Context, string) (*auth.User, error) {
	return nil, auth.ErrInvalidToken
}

func (stubProvider) SignOut(context.Context, string) error { return nil }

type memRecords struct {
	mu      sync.Mutex
	records map[string]*domain.CartRecord
}

func (m *memRecords) GetCart(_ context.Context, userID string) (*domain.CartRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[userID]; ok {
		cp := *r
		return &cp, nil
	}
	return &domain.CartRecord{UserID: userID}, nil
}

func (m *memRecords) SaveCart(_ context.Context, r *domain.CartRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.UserID] = r
	return nil
}

func (m *memRecords) get(userID string) *domain.CartRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[userID]
}

func setupRegistry(t *testing.T) (*Registry, *memRecords) {
	records := &memRecords{records: map[string]*domain.CartRecord{}}
	r := NewRegistry(stubProvider{}, records, events.Nop{}, zap.NewNop(), Config{
		IdleTTL:         time.Minute,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r, records
}

func login(t *testing.T, b *Bundle) {
	t.Helper()
	_, err := b.Auth.Login(context.Background(), auth.LoginInput{Email: "sari@example.com", Password: "Fruit123"})
	require.NoError(t, err)
}

func TestResolve_CreatesAndReuses(t *testing.T) {
	r, _ := setupRegistry(t)

	b, created := r.Resolve("")
	require.True(t, created)
	require.NotEmpty(t, b.ID)

	again, created := r.Resolve(b.ID)
	assert.False(t, created)
	assert.Same(t, b, again)

	other, created := r.Resolve("unknown-id")
	assert.True(t, created)
	assert.NotEqual(t, "unknown-id", other.ID)
	assert.Equal(t, 2, r.Len())
}

func TestBundle_CartFollowsLogin(t *testing.T) {
	r, records := setupRegistry(t)
	b := r.Create()

	ok, err := b.Cart.AddToCart(domain.CartLine{ProductID: 1, Name: "Apple", UnitPrice: 15000}, 1)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	login(t, b)
	require.NotNil(t, b.Cart.Identity())

	ok, err = b.Cart.AddToCart(domain.CartLine{ProductID: 1, Name: "Apple", UnitPrice: 15000}, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	b.Cart.Wait()

	stored := records.get("u-sari@example.com")
	require.NotNil(t, stored)
	require.Len(t, stored.CartLines, 1)
	assert.Equal(t, 2, stored.CartLines[0].Quantity)

	require.NoError(t, b.Auth.Logout(context.Background()))
	assert.Nil(t, b.Cart.Identity())
	assert.Empty(t, b.Cart.Lines())
}

func TestBundle_ClaimRequiresIdentity(t *testing.T) {
	r, _ := setupRegistry(t)
	b := r.Create()
	promo := discount.DefaultPromotions[0]

	_, err := b.Claim(promo)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Empty(t, b.Discounts.Discounts())

	login(t, b)
	price, err := b.Claim(promo)
	require.NoError(t, err)
	assert.Equal(t, int64(13500), price)
}

func TestBundle_DiscountFeedsCartPricing(t *testing.T) {
	r, _ := setupRegistry(t)
	b := r.Create()
	login(t, b)

	_, err := b.Claim(discount.DefaultPromotions[0])
	require.NoError(t, err)

	_, err = b.Cart.AddToCart(domain.CartLine{ProductID: 5, Name: "Pineapple", UnitPrice: 18000}, 2)
	require.NoError(t, err)
	b.Cart.SelectAllItems()

	assert.Equal(t, int64(27000), b.Cart.SelectedSubtotal())
}

func TestEvictIdle(t *testing.T) {
	r, _ := setupRegistry(t)
	now := time.Now()
	r.now = func() time.Time { return now }

	stale := r.Create()
	now = now.Add(45 * time.Second)
	fresh := r.Create()
	now = now.Add(30 * time.Second)

	r.evictIdle()

	_, ok := r.Get(stale.ID)
	assert.False(t, ok)
	_, ok = r.Get(fresh.ID)
	assert.True(t, ok)
}

func TestEvictIdle_GetKeepsAlive(t *testing.T) {
	r, _ := setupRegistry(t)
	now := time.Now()
	r.now = func() time.Time { return now }

	b := r.Create()
	now = now.Add(50 * time.Second)
	_, ok := r.Get(b.ID)
	require.True(t, ok)
	now = now.Add(50 * time.Second)

	r.evictIdle()
	_, ok = r.Get(b.ID)
	assert.True(t, ok)
}

func TestEvictIdle_UnbindsCart(t *testing.T) {
	r, _ := setupRegistry(t)
	now := time.Now()
	r.now = func() time.Time { return now }

	b := r.Create()
	now = now.Add(2 * time.Minute)
	r.evictIdle()

	login(t, b)
	assert.Nil(t, b.Cart.Identity(), "evicted cart should no longer follow the session")
}

func TestClose_FlushesPendingWrites(t *testing.T) {
	records := &memRecords{records: map[string]*domain.CartRecord{}}
	r := NewRegistry(stubProvider{}, records, events.Nop{}, zap.NewNop(), Config{})

	b := r.Create()
	login(t, b)
	_, err := b.Cart.AddToCart(domain.CartLine{ProductID: 1, Name: "Apple", UnitPrice: 15000}, 1)
	require.NoError(t, err)

	require.NoError(t, r.Close(context.Background()))
	assert.NotNil(t, records.get("u-sari@example.com"))
	assert.Zero(t, r.Len())
}
