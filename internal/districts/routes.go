package districts

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sirenwatch/siren-backend/internal/middleware"
)

func SetupRoutes(sessions middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()

	r.Get("/all", ListDistricts)
	r.Get("/dashboard/data", DashboardData)
	r.Get("/{id}", GetDistrict)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions))
		r.Use(middleware.AdminMiddleware)

		r.Post("/create", CreateDistrict)
		r.Post("/add_many", AddManyDistricts)
		r.Patch("/{id}", UpdateDistrict)
		r.Delete("/{id}", DeleteDistrict)
	})

	return r
}
