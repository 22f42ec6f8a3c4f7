package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/olynsn15/fruitopia-store/internal/domain"
	"github.com/olynsn15/fruitopia-store/internal/testimonial"
)

// Testimonials is the board the handler serves.
type Testimonials interface {
	Submit(ctx context.Context, author *domain.Identity, message string, rating int) (*domain.Testimonial, error)
	List(ctx context.Context) (*testimonial.Listing, error)
	Delete(ctx context.Context, requester *domain.Identity, id uuid.UUID) error
}

type TestimonialHandler struct {
	base
	board Testimonials
}

type CreateTestimonialRequestDTO struct {
	Message string `json:"message"`
	Rating  int    `json:"rating"`
}

// GET /api/v1/testimonials
func (h *TestimonialHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	listing, err := h.board.List(ctx)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, listing)
}

// POST /api/v1/testimonials
func (h *TestimonialHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	var req CreateTestimonialRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	b := bundleFromContext(r.Context())
	t, err := h.board.Submit(ctx, b.Auth.Identity(), req.Message, req.Rating)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

// DELETE /api/v1/testimonials/{id}
func (h *TestimonialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_testimonial_id", "id must be a UUID")
		return
	}

	b := bundleFromContext(r.Context())
	if err := h.board.Delete(ctx, b.Auth.Identity(), id); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
