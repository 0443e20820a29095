package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/fileserver-api/internal/api/middleware"
	"github.com/phrazzld/fileserver-api/internal/api/shared"
	"github.com/phrazzld/fileserver-api/internal/config"
)

// WelcomeMessage is returned by the root endpoint.
const WelcomeMessage = "Welcome to the File Server API"

// newRouter builds the top-level router and mounts apiRoutes under the
// configured prefix.
func newRouter(cfg config.ServerConfig, logger *slog.Logger, apiRoutes http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{middleware.TraceHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Trace(logger))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"message": WelcomeMessage})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Mount(cfg.APIPrefix, apiRoutes)

	return r
}
