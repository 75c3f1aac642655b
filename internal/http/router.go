package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Pinger reports whether a backing store is reachable.
type Pinger func(ctx context.Context) error

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// Health maps a dependency name to its check.
	Health map[string]Pinger
}

func NewRouter(cfg RouterConfig, cartHandler *CartHandler, ordersHandler *OrdersHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(BodyLimitMiddleware(cfg.MaxRequestBodySize))
	r.Use(IdentityMiddleware)

	r.Get("/health", healthHandler(cfg.Health))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items", cartHandler.SetItem)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
			r.Put("/selection", cartHandler.SelectAll)
			r.With(RequireUser).Post("/merge", cartHandler.Merge)
		})
		r.Route("/orders", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/", ordersHandler.ListOrders)
			r.Post("/", ordersHandler.CreateOrder)
			r.Get("/settlement", ordersHandler.Preview)
			r.Get("/{order_id}", ordersHandler.GetOrder)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				status[name] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		respondJSON(w, code, status)
	}
}
