package http

import (
	"database/sql"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-papers/internal/auth/middleware"
	"github.com/mind-engage/mindengage-papers/internal/rbac"
)

// Server groups the route sets. Papers is nil when the paper service is
// remote.
type Server struct {
	DB        *sql.DB
	Auth      *auth.AuthService
	Authoring *Authoring
	Papers    *PaperAPI
}

func (s *Server) Mount(r chi.Router) {
	r.Get("/healthz", Healthz)
	r.Get("/readyz", Readyz(s.DB))
	r.Post("/auth/login", auth.LoginHandler(s.Auth, s.DB))

	r.Route("/api", func(ar chi.Router) {
		ar.Get("/test", Ping)

		// Protected API (JWT → role in context → RBAC)
		ar.Group(func(pr chi.Router) {
			pr.Use(auth.JWTMiddleware(s.Auth))
			s.Authoring.Routes(pr)
			if s.Papers != nil {
				s.Papers.Routes(pr)
			}
			pr.With(rbac.Require("user:change_password")).
				Post("/users/change-password", ChangePasswordHandler(s.DB))
			mountAdmin(pr, s.DB, s.Auth)
		})
	})
}
