package handlers

import (
	"os"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)

		h.MountGameAPI(r)
	})
}

// MountGameAPI registers the secured game endpoints on an existing route
// tree; the socket service mounts these next to its /ws endpoint.
func (h *Handler) MountGameAPI(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(h.tokenAuth))
		r.Use(jwtauth.Authenticator)

		r.Post("/games/session", h.CreateSessionHandler)
		r.Get("/games/state/{roomId}", h.GameStateHandler)

	})
}

func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)
}
