package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/fjod/sneakpeak/internal/checkout"
	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CheckoutService interface {
	Checkout(ctx context.Context, userID int64, billing, shipping *domain.AddressInput) (*checkout.Result, error)
	Success(ctx context.Context, userID int64, reference string) (*checkout.SuccessResult, error)
	Cancel(ctx context.Context, userID int64, reference string) (*domain.PaymentSession, error)
	Reorder(ctx context.Context, userID int64, reference string) (*checkout.Result, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	carts    CartReader
	timeout  time.Duration
	log      *slog.Logger
}

func NewCheckoutHandler(svc CheckoutService, carts CartReader, timeout time.Duration, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		carts:    carts,
		timeout:  timeout,
		log:      log,
	}
}

// CheckoutRequestDTO leaves the addresses optional so a missing one maps to
// the checkout's own validation error. Present addresses are validated field by field.
type CheckoutRequestDTO struct {
	Billing  *domain.AddressInput `json:"billing"`
	Shipping *domain.AddressInput `json:"shipping"`
}

type CheckoutResponseDTO struct {
	Reference string          `json:"reference"`
	URL       string          `json:"url"`
	Total     string          `json:"total"`
	Billing   *domain.Address `json:"billing"`
	Shipping  *domain.Address `json:"shipping"`
}

func toCheckoutResponse(res *checkout.Result) CheckoutResponseDTO {
	return CheckoutResponseDTO{
		Reference: res.Reference,
		URL:       res.URL,
		Total:     res.Total.StringFixed(2),
		Billing:   res.Billing,
		Shipping:  res.Shipping,
	}
}

// GET /checkout
func (h *CheckoutHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	c, err := h.carts.GetCart(ctx, userID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// POST /checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CheckoutRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.checkout.Checkout(ctx, userID, req.Billing, req.Shipping)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCheckoutResponse(res))
}

// GET /checkout/success/{reference}
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	reference := chi.URLParam(r, "reference")
	res, err := h.checkout.Success(ctx, userID, reference)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if res.RedirectCancel {
		http.Redirect(w, r, "/checkout/cancel/"+url.PathEscape(reference), http.StatusSeeOther)
		return
	}
	respondJSON(w, http.StatusOK, res.Order)
}

// GET /checkout/cancel/{reference}
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	session, err := h.checkout.Cancel(ctx, userID, chi.URLParam(r, "reference"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// POST /checkout/reorder/{reference}
func (h *CheckoutHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	res, err := h.checkout.Reorder(ctx, userID, chi.URLParam(r, "reference"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, toCheckoutResponse(res))
}
