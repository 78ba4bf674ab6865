package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/lunchorder-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса обедов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.UserID)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.GetOrders)
			r.Post("/orders/{id}/cancel", h.CancelOrder)

			r.Post("/lobby/join", h.JoinLobby)
			r.Post("/lobby/leave", h.LeaveLobby)
			r.Get("/lobby/status", h.LobbyStatus)
		})

		r.Get("/group-orders/pending", h.GetPendingGroupOrders)
		r.Post("/group-orders/{id}/accept", h.AcceptGroupOrder)
		r.Post("/group-orders/{id}/reject", h.RejectGroupOrder)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
