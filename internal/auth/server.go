package auth

import (
	"time"

	"github.com/go-chi/chi/v5"
)

type Server struct {
	repo       Repository
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewServer(repo Repository, jwtSecret []byte, accessTTL, refreshTTL time.Duration) *Server {
	return &Server{
		repo:       repo,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Routes registers the auth endpoints on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.Middleware)
		r.Get("/auth/me", s.handleMe)
		r.Delete("/auth/me", s.handleDeleteMe)
	})
}
