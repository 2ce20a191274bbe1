package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sirenwatch/siren-backend/internal/middleware"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	sessions := middleware.SessionMiddleware(SessionInfo{})

	r.Post("/register", RegisterHandler)
	r.Post("/login", LoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(sessions)
		r.Post("/logout", LogoutHandler)
		r.Get("/me", MeHandler)
		r.Post("/password", UpdatePasswordHandler)
		r.With(middleware.AdminMiddleware).Patch("/users/{id}/role", UpdateRoleHandler)
	})

	return r
}
