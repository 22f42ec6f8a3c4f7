package http

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/olynsn15/fruitopia-store/internal/cart"
	"github.com/olynsn15/fruitopia-store/internal/catalog"
	"github.com/olynsn15/fruitopia-store/internal/domain"
	"github.com/olynsn15/fruitopia-store/internal/pricing"
	"github.com/olynsn15/fruitopia-store/internal/session"
)

// a single request may ask for at most a full line
const maxQuantity = cart.MaxLineQuantity

type CartHandler struct {
	base
	catalog catalog.Catalog
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartLineResponse struct {
	domain.CartLine
	EffectivePrice int64 `json:"effective_price"`
	LineTotal      int64 `json:"line_total"`
	Selected       bool  `json:"selected"`
}

type CartResponse struct {
	Lines          []CartLineResponse `json:"lines"`
	SelectedItems  []int64            `json:"selected_items"`
	TotalItemCount int                `json:"total_item_count"`
	Summary        pricing.Breakdown  `json:"summary"`
}

type ToggleResponse struct {
	Selected bool         `json:"selected"`
	Cart     CartResponse `json:"cart"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, cartResponse(bundleFromContext(r.Context())))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	b := bundleFromContext(r.Context())
	if b.Auth.Identity() == nil {
		h.handleError(w, r, domain.ErrUnauthenticated)
		return
	}

	product, err := h.catalog.Get(ctx, req.ProductID)
	if err != nil {
		h.handleError(w, r, remoteUnlessNotFound("get product", err))
		return
	}

	if _, err := b.Cart.AddToCart(product.CartLine(req.Quantity), req.Quantity); err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, cartResponse(b))
}

// PUT /api/v1/cart/items/{product_id}
// A quantity of 0 removes the line.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	b := bundleFromContext(r.Context())
	b.Cart.UpdateQuantity(productID, req.Quantity)

	respondJSON(w, http.StatusOK, cartResponse(b))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	b := bundleFromContext(r.Context())
	b.Cart.RemoveFromCart(productID)

	respondJSON(w, http.StatusOK, cartResponse(b))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	b := bundleFromContext(r.Context())
	b.Cart.ClearCart()

	respondJSON(w, http.StatusOK, cartResponse(b))
}

// POST /api/v1/cart/selection/{product_id}/toggle
func (h *CartHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	b := bundleFromContext(r.Context())
	selected := b.Cart.ToggleSelectItem(productID)

	respondJSON(w, http.StatusOK, ToggleResponse{Selected: selected, Cart: cartResponse(b)})
}

// POST /api/v1/cart/selection/all
func (h *CartHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	b := bundleFromContext(r.Context())
	b.Cart.SelectAllItems()

	respondJSON(w, http.StatusOK, cartResponse(b))
}

// DELETE /api/v1/cart/selection
func (h *CartHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	b := bundleFromContext(r.Context())
	b.Cart.ClearSelectedItems()

	respondJSON(w, http.StatusOK, cartResponse(b))
}

// POST /api/v1/cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	b := bundleFromContext(r.Context())
	summary, err := b.Cart.Checkout()
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func cartResponse(b *session.Bundle) CartResponse {
	lines, selected := b.Cart.Snapshot()

	resp := CartResponse{
		Lines:          make([]CartLineResponse, len(lines)),
		SelectedItems:  selected,
		TotalItemCount: pricing.TotalItemCount(lines),
		Summary:        pricing.Compute(lines, selected, b.Discounts),
	}
	if resp.SelectedItems == nil {
		resp.SelectedItems = []int64{}
	}
	for i, l := range lines {
		resp.Lines[i] = CartLineResponse{
			CartLine:       l,
			EffectivePrice: pricing.UnitPrice(l, b.Discounts),
			LineTotal:      pricing.LineTotal(l, b.Discounts),
			Selected:       slices.Contains(selected, l.ProductID),
		}
	}
	return resp
}
