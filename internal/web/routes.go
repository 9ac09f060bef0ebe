package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/rollcall/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	identitiesHandler := handlers.NewIdentitiesHandler(s.deps.Counter, s.deps.Enroller)
	roundsHandler := handlers.NewRoundsHandler(s.deps.Board, s.deps.Rounds)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Gallery
		r.Get("/identities", identitiesHandler.List)
		r.Post("/identities/{name}/references", identitiesHandler.AddReference)

		// Rounds
		r.Get("/rounds/latest", roundsHandler.Latest)
		r.Get("/rounds", roundsHandler.List)
		r.Get("/rounds/{id}", roundsHandler.Get)
	})
}
