package routes

import (
	api "github.com/voysta/game-services/internal/gamesvc/handlers"
	"github.com/voysta/game-services/internal/socketsvc/handlers"
	"github.com/voysta/game-services/internal/socketsvc/ws"
	"github.com/go-chi/chi"
)

func SetRoutes(r *chi.Mux, ws *ws.Ws, gameAPI *api.Handler) {
	h := handlers.NewHandler(ws)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/health", h.HealthHandler)

		gameAPI.MountGameAPI(r)
	})
}
