package sirens

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sirenwatch/siren-backend/internal/middleware"
)

func SetupRoutes(sessions middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()

	r.Get("/all", ListSirens)
	r.Get("/{id}", GetSiren)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions))
		r.Use(middleware.AdminMiddleware)

		r.Post("/create", CreateSiren)
		r.Post("/add_many", AddManySirens)
		r.Patch("/{id}", UpdateSiren)
		r.Delete("/{id}", DeleteSiren)
	})

	return r
}
