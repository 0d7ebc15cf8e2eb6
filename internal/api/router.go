package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the HTTP surface. ws serves the session websocket.
func NewRouter(h *Handlers, ws http.HandlerFunc, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(CORS(allowedOrigins))
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recovery)

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/{id}", h.GetSession)
		r.Get("/{id}/events", h.ListEvents)
	})

	if ws != nil {
		r.Get("/ws/session", ws)
	}
	return r
}
