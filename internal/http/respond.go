package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fjod/sneakpeak/internal/cart"
	"github.com/fjod/sneakpeak/internal/checkout"
	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/fjod/sneakpeak/internal/repository"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// decodeBody reads a JSON body into dst and runs its validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			names := make([]string, 0, len(fields))
			for _, f := range fields {
				names = append(names, f.Namespace())
			}
			respondJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "invalid request body",
				Code:    "validation_failed",
				Details: strings.Join(names, ", "),
			})
			return false
		}
		respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return false
	}
	return true
}

// handleServiceError maps domain and orchestration errors onto HTTP responses.
// Anything unrecognised is logged and hidden behind a 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var notSaved *checkout.AddressNotSavedError
	var stock *domain.InsufficientStockError

	switch {
	case errors.As(err, &notSaved):
		respondJSON(w, http.StatusNotFound, ErrorResponse{
			Error:   "Order created but address could not be saved",
			Code:    "address_not_saved",
			Details: notSaved.Reference,
		})
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "Cart is empty")
	case errors.Is(err, checkout.ErrMissingAddress):
		respondError(w, http.StatusBadRequest, "missing_address", "Billing and shipping addresses are required")
	case errors.As(err, &stock):
		respondError(w, http.StatusBadRequest, "insufficient_stock", stock.Error())
	case errors.Is(err, checkout.ErrAlreadyPaid):
		respondError(w, http.StatusBadRequest, "already_paid", "Order is already paid")
	case errors.Is(err, checkout.ErrValidation), errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, checkout.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "Order not found")
	case errors.Is(err, cart.ErrVariantNotFound):
		respondError(w, http.StatusNotFound, "not_found", "Variant not found")
	case errors.Is(err, repository.ErrItemNotFound), errors.Is(err, repository.ErrCartNotFound):
		respondError(w, http.StatusNotFound, "not_found", "Item not found in cart")
	case errors.Is(err, checkout.ErrAddressUnprocessable):
		respondError(w, http.StatusUnprocessableEntity, "address_unprocessable", "Address could not be processed")
	case errors.Is(err, checkout.ErrExternalService):
		respondError(w, http.StatusUnprocessableEntity, "external_service", "External service error")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
