package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/pos-order-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware POS-клиента.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddCartItem)
			r.Post("/items/{name}/increment", h.IncrementCartItem)
			r.Post("/items/{name}/decrement", h.DecrementCartItem)
			r.Put("/items/{name}/quantity", h.SetCartQuantity)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.SubmitOrder)
			r.Get("/", h.GetOrders)
			r.Delete("/{id}", h.CancelOrder)
		})

		r.Get("/notifications", h.GetNotifications)

		r.Route("/admin/orders", func(r chi.Router) {
			r.Get("/", h.AdminGetOrders)
			r.Patch("/{id}/status", h.AdminSetStatus)
			r.Delete("/{id}", h.AdminArchiveOrder)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
