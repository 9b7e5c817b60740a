package setlist

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	db  DB
	rdb *redis.Client
}

func NewServer(db DB, rdb *redis.Client) *Server {
	return &Server{
		db:  db,
		rdb: rdb,
	}
}

// Router builds the domain routes. Every route expects the X-User-Id header,
// injected by the auth middleware after token verification.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		for _, mw := range middlewares {
			r.Use(mw)
		}

		r.Get("/gigs", s.handleListGigs)
		r.Post("/gigs", s.handleCreateGig)
		r.Get("/gigs/{id}", s.handleGetGig)
		r.Patch("/gigs/{id}", s.handlePatchGig)
		r.Delete("/gigs/{id}", s.handleDeleteGig)

		r.Get("/tracks", s.handleListTracks)
		r.Post("/tracks", s.handleCreateTrack)
		r.Get("/tracks/{id}", s.handleGetTrack)
		r.Patch("/tracks/{id}", s.handlePatchTrack)
		r.Delete("/tracks/{id}", s.handleDeleteTrack)
		r.Get("/tracks/{id}/usage", s.handleTrackUsage)

		r.Get("/sets", s.handleListSets)
		r.Post("/sets", s.handleCreateSet)
		r.Get("/sets/{id}", s.handleGetSet)
		r.Patch("/sets/{id}", s.handlePatchSet)
		r.Delete("/sets/{id}", s.handleDeleteSet)

		r.Get("/sets/{id}/items", s.handleListItems)
		r.Post("/sets/{id}/items", s.handleAddItem)
		r.Put("/sets/{id}/items/reorder", s.handleReorderItems)
		r.Patch("/sets/{id}/items/{itemId}", s.handlePatchItem)
		r.Delete("/sets/{id}/items/{itemId}", s.handleDeleteItem)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "setlist-service",
	})
}
