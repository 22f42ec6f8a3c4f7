package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/olynsn15/fruitopia-store/internal/auth"
	"github.com/olynsn15/fruitopia-store/internal/catalog"
	"github.com/olynsn15/fruitopia-store/internal/discount"
	"github.com/olynsn15/fruitopia-store/internal/domain"
	"github.com/olynsn15/fruitopia-store/internal/events"
	"github.com/olynsn15/fruitopia-store/internal/session"
	"github.com/olynsn15/fruitopia-store/internal/testimonial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	mu     sync.Mutex
	tokens map[string]auth.User
}

func (p *stubProvider) issue(u auth.User) *auth.AuthResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	token := "tok-" + u.ID
	p.tokens[token] = u
	return &auth.AuthResult{User: u, AccessToken: token}
}

func (p *stubProvider) SignIn(_ context.Context, email, password string) (*auth.AuthResult, error) {
	if password != "Fruit123" {
		return nil, auth.ErrInvalidCredentials
	}
	return p.issue(auth.User{ID: "u-" + email, Email: email}), nil
}

func (p *stubProvider) SignUp(_ context.Context, email, _ string, meta auth.Metadata) (*auth.AuthResult, error) {
	if email == "taken@example.com" {
		return nil, auth.ErrEmailTaken
	}
	return p.issue(auth.User{ID: "u-" + email, Email: email, Metadata: meta}), nil
}

func (p *stubProvider) GetSession(_ context.Context, token string) (*auth.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.tokens[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &u, nil
}

func (p *stubProvider) SignOut(_ context.Context, token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tokens, token)
	return nil
}

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

type fakeCatalog struct {
	products map[int64]*domain.Product
	err      error
}

func (c *fakeCatalog) List(context.Context) ([]*domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := []*domain.Product{}
	for id := int64(1); id <= int64(len(c.products)); id++ {
		out = append(out, c.products[id])
	}
	return out, nil
}

func (c *fakeCatalog) Get(_ context.Context, id int64) (*domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (c *fakeCatalog) ListByIDs(_ context.Context, ids []int64) ([]*domain.Product, error) {
	out := []*domain.Product{}
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeBoard struct {
	mu    sync.Mutex
	items []domain.Testimonial
	err   error
}

func (f *fakeBoard) Submit(_ context.Context, author *domain.Identity, message string, rating int) (*domain.Testimonial, error) {
	if author == nil {
		return nil, domain.ErrUnauthenticated
	}
	if message == "" {
		return nil, domain.NewValidationError("message", "Please write a message")
	}
	t := domain.Testimonial{ID: uuid.New(), UserID: author.ID, AuthorName: author.DisplayName, Message: message, Rating: rating}
	f.mu.Lock()
	f.items = append(f.items, t)
	f.mu.Unlock()
	return &t, nil
}

func (f *fakeBoard) List(context.Context) (*testimonial.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &testimonial.Listing{Testimonials: append([]domain.Testimonial{}, f.items...)}, nil
}

func (f *fakeBoard) Delete(_ context.Context, requester *domain.Identity, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.items {
		if t.ID != id {
			continue
		}
		if requester == nil || t.UserID != requester.ID {
			return domain.ErrForbidden
		}
		f.items = append(f.items[:i], f.items[i+1:]...)
		return nil
	}
	return testimonial.ErrTestimonialNotFound
}

type testServer struct {
	handler  http.Handler
	catalog  *fakeCatalog
	board    *fakeBoard
	records  *memRecords
	registry *session.Registry
}

func newTestServer(t *testing.T) *testServer {
	records := &memRecords{records: map[string]*domain.CartRecord{}}
	registry := session.NewRegistry(&stubProvider{tokens: map[string]auth.User{}}, records, events.Nop{}, zap.NewNop(), session.Config{})
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	cat := &fakeCatalog{products: map[int64]*domain.Product{
		1: {ID: 1, Name: "Apple", Price: 20000, ImageURL: "/images/apple.png"},
		2: {ID: 2, Name: "Pineapple", Price: 18000, ImageURL: "/images/pineapple.png"},
	}}
	board := &fakeBoard{}

	h := NewRouter(Deps{
		Registry:           registry,
		Catalog:            cat,
		Testimonials:       board,
		Promotions:         discount.NewPromotions(discount.DefaultPromotions...),
		Logger:             zap.NewNop(),
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	})
	return &testServer{handler: h, catalog: cat, board: board, records: records, registry: registry}
}

// client keeps the session id between requests like a browser keeps the cookie.
type client struct {
	t         *testing.T
	srv       *testServer
	sessionID string
	token     string
}

func (s *testServer) client(t *testing.T) *client {
	return &client{t: t, srv: s}
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if c.sessionID != "" {
		req.Header.Set(SessionHeader, c.sessionID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.srv.handler.ServeHTTP(rec, req)
	if id := rec.Header().Get(SessionHeader); id != "" {
		c.sessionID = id
	}
	return rec
}

func (c *client) login() {
	c.t.Helper()
	rec := c.do("POST", "/api/v1/auth/login", auth.LoginInput{Email: "sari@example.com", Password: "Fruit123"})
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.client(t).do("GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestSession_CookieIssuedOnce(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	rec := c.do("GET", "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, SessionCookieName, rec.Result().Cookies()[0].Name)

	rec = c.do("GET", "/api/v1/auth/me", nil)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 1, srv.registry.Len())
}

func TestAuth_RegisterLoginLogout(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	rec := c.do("POST", "/api/v1/auth/register", auth.RegisterInput{
		FullName: "Sari Buah", Email: "sari@example.com", Password: "Fruit123", ConfirmPassword: "Fruit123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[AuthResponse](t, rec)
	assert.Equal(t, "Sari Buah", resp.User.DisplayName)
	assert.NotEmpty(t, resp.AccessToken)

	rec = c.do("GET", "/api/v1/auth/me", nil)
	me := decode[AuthResponse](t, rec)
	require.NotNil(t, me.User)
	assert.Equal(t, "sari@example.com", me.User.Email)

	rec = c.do("POST", "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.do("GET", "/api/v1/auth/me", nil)
	assert.Nil(t, decode[AuthResponse](t, rec).User)
}

func TestAuth_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	rec := c.do("POST", "/api/v1/auth/register", auth.RegisterInput{Email: "sari@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "validation_error", errResp.Code)
	assert.Equal(t, "Full name is required.", errResp.Error)
	assert.Equal(t, "full_name", errResp.Details)

	rec = c.do("POST", "/api/v1/auth/register", auth.RegisterInput{
		FullName: "X", Email: "taken@example.com", Password: "Fruit123", ConfirmPassword: "Fruit123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do("POST", "/api/v1/auth/login", auth.LoginInput{Email: "sari@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decode[ErrorResponse](t, rec).Code)

	rec = c.do("POST", "/api/v1/auth/login", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBearer_RestoresIdentityInNewSession(t *testing.T) {
	srv := newTestServer(t)
	first := srv.client(t)
	rec := first.do("POST", "/api/v1/auth/login", auth.LoginInput{Email: "sari@example.com", Password: "Fruit123"})
	token := decode[AuthResponse](t, rec).AccessToken

	second := srv.client(t)
	second.token = token
	rec = second.do("GET", "/api/v1/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[AuthResponse](t, rec)
	require.NotNil(t, me.User)
	assert.Equal(t, "u-sari@example.com", me.User.ID)

	bad := srv.client(t)
	bad.token = "bogus"
	rec = bad.do("GET", "/api/v1/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", decode[ErrorResponse](t, rec).Code)
}

func TestProducts(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	rec := c.do("GET", "/api/v1/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ProductsResponse](t, rec).Products, 2)

	rec = c.do("GET", "/api/v1/products?ids=2", nil)
	list := decode[ProductsResponse](t, rec)
	require.Len(t, list.Products, 1)
	assert.Equal(t, "Pineapple", list.Products[0].Name)

	rec = c.do("GET", "/api/v1/products?ids=a,b", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do("GET", "/api/v1/products/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(20000), decode[ProductResponse](t, rec).EffectivePrice)

	rec = c.do("GET", "/api/v1/products/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	srv.catalog.err = errors.New("disk I/O error")
	rec = c.do("GET", "/api/v1/products", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, genericFailureMessage, decode[ErrorResponse](t, rec).Error)
}

func TestCart_GuestAddRequiresLogin(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	rec := c.do("POST", "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "login_required", decode[ErrorResponse](t, rec).Code)

	rec = c.do("GET", "/api/v1/cart", nil)
	assert.Empty(t, decode[CartResponse](t, rec).Lines)
}

func TestCart_Flow(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.login()

	rec := c.do("POST", "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = c.do("POST", "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1})
	require.Equal(t, http.StatusCreated, rec.Code)

	cart := decode[CartResponse](t, rec)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Quantity)
	assert.Equal(t, 3, cart.TotalItemCount)
	assert.Zero(t, cart.Summary.Total)

	rec = c.do("POST", "/api/v1/cart/selection/1/toggle", nil)
	toggled := decode[ToggleResponse](t, rec)
	assert.True(t, toggled.Selected)
	assert.Equal(t, int64(60000), toggled.Cart.Summary.Subtotal)
	assert.Equal(t, int64(25000), toggled.Cart.Summary.Shipping)
	assert.Equal(t, int64(8500), toggled.Cart.Summary.Tax)
	assert.Equal(t, int64(93500), toggled.Cart.Summary.Total)

	rec = c.do("PUT", "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: 5})
	cart = decode[CartResponse](t, rec)
	assert.Equal(t, int64(100000), cart.Summary.Subtotal)
	assert.Zero(t, cart.Summary.Shipping)

	rec = c.do("PUT", "/api/v1/cart/items/1", UpdateQuantityRequestDTO{Quantity: 0})
	cart = decode[CartResponse](t, rec)
	assert.Empty(t, cart.Lines)
	assert.Empty(t, cart.SelectedItems)
}

func TestCart_Validation(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.login()

	rec := c.do("POST", "/api/v1/cart/items", AddItemRequestDTO{ProductID: 0, Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do("POST", "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 100})
	assert.Equal(t, "invalid_quantity", decode[ErrorResponse](t, rec).Code)

	rec = c.do("POST", "/api/v1/cart/items", AddItemRequestDTO{ProductID: 42, Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do("DELETE", "/api/v1/cart/items/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_SelectionAndCheckout(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	c.login()

	c.do("POST", "/api/v1/cart/items", AddItemRequestDTO{ProductID: 1, Quantity: 1})
	c.do("POST", "/api/v1/cart/items", AddItemRequestDTO{ProductID: 2, Quantity: 2})

	rec := c.do("POST", "/api/v1/cart/checkout", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_selection", decode[ErrorResponse](t, rec).Code)

	rec = c.do("POST", "/api/v1/cart/selection/all", nil)
	assert.Len(t, decode[CartResponse](t, rec).SelectedItems, 2)

	rec = c.do("DELETE", "/api/v1/cart/selection", nil)
	assert.Empty(t, decode[CartResponse](t, rec).SelectedItems)

	c.do("POST", "/api/v1/cart/selection/2/toggle", nil)
	rec = c.do("POST", "/api/v1/cart/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[domain.CheckoutSummary](t, rec)
	assert.Equal(t, int64(36000), summary.Subtotal)
	assert.Equal(t, 2, summary.Quantity)

	rec = c.do("GET", "/api/v1/cart", nil)
	cart := decode[CartResponse](t, rec)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(1), cart.Lines[0].ProductID)

	rec = c.do("DELETE", "/api/v1/cart", nil)
	assert.Empty(t, decode[CartResponse](t, rec).Lines)
}

func TestDiscounts_ClaimAppliesToCart(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)

	rec := c.do("POST", "/api/v1/discounts/pineapple-25/claim", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c.login()
	rec = c.do("POST", "/api/v1/discounts/pineapple-25/claim", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(13500), decode[ClaimResponse](t, rec).Price)

	rec = c.do("POST", "/api/v1/discounts/nope/claim", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.do("GET", "/api/v1/discounts", nil)
	list := decode[DiscountsResponse](t, rec)
	assert.Len(t, list.Promotions, 1)
	assert.Equal(t, int64(13500), list.Claimed["Pineapple"])

	rec = c.do("GET", "/api/v1/products/2", nil)
	assert.Equal(t, int64(13500), decode[ProductResponse](t, rec).EffectivePrice)

	c.do("POST", "/api/v1/cart/items", AddItemRequestDTO{ProductID: 2, Quantity: 2})
	rec = c.do("POST", "/api/v1/cart/selection/2/toggle", nil)
	assert.Equal(t, int64(27000), decode[ToggleResponse](t, rec).Cart.Summary.Subtotal)
}

func TestTestimonials(t *testing.T) {
	srv := newTestServer(t)
	guest := srv.client(t)

	rec := guest.do("POST", "/api/v1/testimonials", CreateTestimonialRequestDTO{Message: "Yum", Rating: 5})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	author := srv.client(t)
	author.login()
	rec = author.do("POST", "/api/v1/testimonials", CreateTestimonialRequestDTO{Message: "", Rating: 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = author.do("POST", "/api/v1/testimonials", CreateTestimonialRequestDTO{Message: "Yum", Rating: 5})
	require.Equal(t, http.StatusCreated, rec.Code)
	posted := decode[domain.Testimonial](t, rec)

	rec = guest.do("GET", "/api/v1/testimonials", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decode[testimonial.Listing](t, rec)
	assert.Len(t, listing.Testimonials, 1)
	assert.False(t, listing.Stale)

	rec = guest.do("DELETE", "/api/v1/testimonials/"+posted.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = author.do("DELETE", "/api/v1/testimonials/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = author.do("DELETE", "/api/v1/testimonials/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = author.do("DELETE", "/api/v1/testimonials/"+posted.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	srv.board.err = domain.Remote("list testimonials", errors.New("connection refused"))
	rec = guest.do("GET", "/api/v1/testimonials", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
