// Package http exposes the storefront over a JSON API.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/olynsn15/fruitopia-store/internal/catalog"
	"github.com/olynsn15/fruitopia-store/internal/discount"
	"github.com/olynsn15/fruitopia-store/internal/session"
	"go.uber.org/zap"
)

type Deps struct {
	Registry     *session.Registry
	Catalog      catalog.Catalog
	Testimonials Testimonials
	Promotions   *discount.Promotions
	Logger       *zap.Logger

	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	SecureCookie       bool
}

const defaultRequestTimeout = 30 * time.Second

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = defaultRequestTimeout
	}
	b := base{logger: d.Logger, timeout: d.RequestTimeout}

	authHandler := &AuthHandler{base: b}
	productHandler := &ProductHandler{base: b, catalog: d.Catalog}
	cartHandler := &CartHandler{base: b, catalog: d.Catalog}
	discountHandler := &DiscountHandler{base: b, promotions: d.Promotions}
	testimonialHandler := &TestimonialHandler{base: b, board: d.Testimonials}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDHeader)
	r.Use(RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	if d.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(d.MaxRequestBodySize))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(d.Registry, d.SecureCookie))
		r.Use(BearerMiddleware(b))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{id}", productHandler.Get)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Post("/selection/{product_id}/toggle", cartHandler.ToggleSelection)
			r.Post("/selection/all", cartHandler.SelectAll)
			r.Delete("/selection", cartHandler.ClearSelection)
			r.Post("/checkout", cartHandler.Checkout)
		})

		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", discountHandler.List)
			r.Post("/{promo_id}/claim", discountHandler.Claim)
		})

		r.Route("/testimonials", func(r chi.Router) {
			r.Get("/", testimonialHandler.List)
			r.Post("/", testimonialHandler.Create)
			r.Delete("/{id}", testimonialHandler.Delete)
		})
	})

	return r
}
