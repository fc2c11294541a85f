package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/repository"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	AddItem(ctx context.Context, userID, variantID int64, quantity int) error
	UpdateQuantity(ctx context.Context, userID, variantID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, variantID int64) error
	ClearCart(ctx context.Context, userID int64) error
}

// CartReader returns the caller's cart from the read projection.
type CartReader interface {
	GetCart(ctx context.Context, userID int64) (*domain.CartProjection, error)
}

// CartResolver builds the cart straight from the primary store.
type CartResolver interface {
	ResolveForUser(ctx context.Context, userID int64) (*domain.CartProjection, error)
}

type CartHandler struct {
	carts    CartService
	reader   CartReader
	resolver CartResolver
	timeout  time.Duration
	log      *slog.Logger
}

func NewCartHandler(carts CartService, reader CartReader, resolver CartResolver, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		reader:   reader,
		resolver: resolver,
		timeout:  timeout,
		log:      log,
	}
}

type AddItemRequestDTO struct {
	VariantID int64 `json:"variantId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,min=1,max=99"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=99"`
}

// GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	c, err := h.reader.GetCart(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// POST /cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.carts.AddItem(ctx, userID, req.VariantID, req.Quantity); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	h.respondCart(ctx, w, r, http.StatusCreated, userID)
}

// PUT /cart/items/{variantId}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	variantID, ok := variantParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.carts.UpdateQuantity(ctx, userID, variantID, req.Quantity); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	h.respondCart(ctx, w, r, http.StatusOK, userID)
}

// DELETE /cart/items/{variantId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	variantID, ok := variantParam(w, r)
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(ctx, userID, variantID); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	h.respondCart(ctx, w, r, http.StatusOK, userID)
}

// DELETE /cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	if err := h.carts.ClearCart(ctx, userID); err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		handleServiceError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondCart answers a mutation with the cart as the primary store now sees it;
// the projection may not have caught up yet.
func (h *CartHandler) respondCart(ctx context.Context, w http.ResponseWriter, r *http.Request, status int, userID int64) {
	c, err := h.resolver.ResolveForUser(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		respondJSON(w, status, &domain.CartProjection{UserID: userID, CartProduct: []domain.CartItem{}})
		return
	}
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, status, c)
}

func variantParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "variantId"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_variant_id", "variantId must be a positive integer")
		return 0, false
	}
	return id, true
}
