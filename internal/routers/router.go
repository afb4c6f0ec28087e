package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/Adnxnn/ILCT-Platform-sub001/internal/api"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/metrics"
)

func New(h *api.Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/api/v1/healthz", h.Health)

	r.Get("/api/v1/rooms/{id}", h.RoomStatus)
	r.Get("/api/v1/rooms/{id}/permissions", h.RoomPermissions)

	r.Get("/ws", h.RoomWS)

	r.Handle("/metrics", metrics.Handler())

	return r
}
