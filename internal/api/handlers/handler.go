// handler.go — APIHandler собирает доменные handler'ы и регистрирует маршруты.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/apkstore/internal/api/contract"
	apierrors "github.com/bigkaa/apkstore/internal/api/errors"
)

// APIHandler — единая точка регистрации всех endpoints.
type APIHandler struct {
	uploads *UploadsHandler
	files   *FilesHandler
	health  *HealthHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(uploads *UploadsHandler, files *FilesHandler, health *HealthHandler) *APIHandler {
	return &APIHandler{
		uploads: uploads,
		files:   files,
		health:  health,
	}
}

// RegisterRoutes регистрирует маршруты в роутере.
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.uploads.Home)
	r.Post("/upload-files", h.uploads.UploadFiles)
	r.Get("/get-files", h.uploads.ListFiles)
	r.Get("/test-db", h.uploads.TestDB)

	r.Get("/files/{name}", h.files.ServePackage)
	r.Head("/files/{name}", h.files.ServePackage)
	r.Get("/images/{name}", h.files.ServeImage)
	r.Head("/images/{name}", h.files.ServeImage)

	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)
	r.Method(http.MethodGet, "/openapi.yaml", contract.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.MethodNotAllowed(w, "Method not allowed")
	})
}
