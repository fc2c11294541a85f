package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger reports whether the primary store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter mounts the cart and checkout surfaces behind the shared middleware stack.
func NewRouter(carts *CartHandler, checkout *CheckoutHandler, db Pinger, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDHeader)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(UserMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database_unavailable", "Database unavailable")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", carts.GetCart)
		r.Delete("/", carts.ClearCart)
		r.Post("/items", carts.AddItem)
		r.Put("/items/{variantId}", carts.UpdateQuantity)
		r.Delete("/items/{variantId}", carts.RemoveItem)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Get("/", checkout.GetCart)
		r.Post("/", checkout.Checkout)
		r.Get("/success/{reference}", checkout.Success)
		r.Get("/cancel/{reference}", checkout.Cancel)
		r.Post("/reorder/{reference}", checkout.Reorder)
	})

	return r
}
