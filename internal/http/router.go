package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Handlers struct {
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Products *ProductHandler
	Orders   *OrdersHandler
	Events   *EventsHandler
}

// NewRouter mounts the storefront routes. Products, Orders and Events are
// optional.
//
// requestTimeout bounds ordinary requests. Checkout events and cancellation
// wait on payment calls bounded by the session call timeout instead, and the
// event stream stays open until the client leaves.
func NewRouter(h Handlers, requestTimeout time.Duration, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if h.Events != nil {
			r.Get("/cart/events", h.Events.Stream)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))

			r.Post("/checkout/{id}/events", h.Checkout.SendEvent)
			r.Delete("/checkout/{id}", h.Checkout.CancelCheckout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))

				r.Get("/cart", h.Cart.GetCart)
				r.Delete("/cart", h.Cart.ClearCart)
				r.Get("/cart/count", h.Cart.Count)
				r.Post("/cart/items", h.Cart.AddItem)
				r.Put("/cart/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/cart/items/{product_id}", h.Cart.RemoveItem)

				r.Post("/checkout", h.Checkout.InitiateCheckout)
				r.Post("/checkout/discount", h.Checkout.ValidateDiscount)
				r.Get("/checkout/{id}", h.Checkout.GetCheckout)

				if h.Products != nil {
					r.Get("/products", h.Products.Get)
					r.Get("/products/{product_id}", h.Products.GetByID)
				}
				if h.Orders != nil {
					r.Get("/orders", h.Orders.ListOrders)
					r.Get("/orders/{order_id}", h.Orders.GetOrder)
				}
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront-gateway")
}
