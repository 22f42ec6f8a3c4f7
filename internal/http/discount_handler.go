package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/olynsn15/fruitopia-store/internal/discount"
)

type DiscountHandler struct {
	base
	promotions *discount.Promotions
}

type DiscountsResponse struct {
	Promotions []discount.Promotion `json:"promotions"`
	Claimed    map[string]int64     `json:"claimed"`
}

type ClaimResponse struct {
	PromotionID string `json:"promotion_id"`
	ProductName string `json:"product_name"`
	Price       int64  `json:"price"`
}

// GET /api/v1/discounts
func (h *DiscountHandler) List(w http.ResponseWriter, r *http.Request) {
	b := bundleFromContext(r.Context())
	respondJSON(w, http.StatusOK, DiscountsResponse{
		Promotions: h.promotions.List(),
		Claimed:    b.Discounts.Discounts(),
	})
}

// POST /api/v1/discounts/{promo_id}/claim
func (h *DiscountHandler) Claim(w http.ResponseWriter, r *http.Request) {
	promo, err := h.promotions.Get(chi.URLParam(r, "promo_id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	b := bundleFromContext(r.Context())
	price, err := b.Claim(promo)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ClaimResponse{
		PromotionID: promo.ID,
		ProductName: promo.ProductName,
		Price:       price,
	})
}
