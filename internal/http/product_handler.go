package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/olynsn15/fruitopia-store/internal/catalog"
	"github.com/olynsn15/fruitopia-store/internal/domain"
)

type ProductHandler struct {
	base
	catalog catalog.Catalog
}

// ProductResponse is a catalog row plus the price this session pays for it.
type ProductResponse struct {
	*domain.Product
	EffectivePrice int64 `json:"effective_price"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

// GET /api/v1/products?ids=1,2
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	var (
		products []*domain.Product
		err      error
	)
	if raw := r.URL.Query().Get("ids"); raw != "" {
		ids, errParse := parseIDs(raw)
		if errParse != nil {
			respondError(w, http.StatusBadRequest, "invalid_product_id", "ids must be a comma separated list of positive integers")
			return
		}
		products, err = h.catalog.ListByIDs(ctx, ids)
	} else {
		products, err = h.catalog.List(ctx)
	}
	if err != nil {
		h.handleError(w, r, remoteUnlessNotFound("list products", err))
		return
	}

	b := bundleFromContext(r.Context())
	resp := ProductsResponse{Products: make([]ProductResponse, len(products))}
	for i, p := range products {
		resp.Products[i] = ProductResponse{Product: p, EffectivePrice: b.Discounts.EffectivePrice(p.Name, p.Price)}
	}

	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}

	p, err := h.catalog.Get(ctx, id)
	if err != nil {
		h.handleError(w, r, remoteUnlessNotFound("get product", err))
		return
	}

	b := bundleFromContext(r.Context())
	respondJSON(w, http.StatusOK, ProductResponse{Product: p, EffectivePrice: b.Discounts.EffectivePrice(p.Name, p.Price)})
}

func parseIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, strconv.ErrSyntax
		}
		ids = append(ids, id)
	}
	return ids, nil
}
