package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/fileserver-api/internal/api/middleware"
)

// Routes returns the API sub-router. Register, token and refresh are public,
// everything else requires a bearer token.
func Routes(authHandler *AuthHandler, fileHandler *FileHandler, authMiddleware *middleware.AuthMiddleware) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", authHandler.Register)
	r.Post("/token", authHandler.Token)
	r.Post("/token/refresh", authHandler.Refresh)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/users", authHandler.ListUsers)

		r.Get("/files", fileHandler.ListFiles)
		r.Post("/files/upload", fileHandler.Upload)
		r.Post("/files/upload-multiple", fileHandler.UploadMultiple)
		r.Get("/files/task-status/{task_id}", fileHandler.TaskStatus)
	})

	return r
}
