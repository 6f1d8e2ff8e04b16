package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes builds the top-level router. The tracking API mounts under
// basePath so the service can sit behind the same reverse proxy prefix the
// dashboard already uses.
func SetupRoutes(trackingAPI *TrackingAPI, health *HealthChecker, basePath string, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", health.HandleHealth)

	if basePath == "" || basePath == "/" {
		trackingAPI.RegisterRoutes(r)
	} else {
		r.Route(basePath, func(r chi.Router) {
			trackingAPI.RegisterRoutes(r)
		})
	}

	return r
}
