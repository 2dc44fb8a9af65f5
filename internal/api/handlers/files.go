// files.go — раздача сохранённых файлов: GET /files/{name}, GET /images/{name}.
// Поддерживает Range и условные запросы через http.ServeContent.
package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/apkstore/internal/api/errors"
	"github.com/bigkaa/apkstore/internal/storage/filestore"
	"github.com/bigkaa/apkstore/internal/storage/placement"
)

// FilesHandler — раздача файлов из областей хранения.
type FilesHandler struct {
	resolver *placement.Resolver
	logger   *slog.Logger
}

// NewFilesHandler создаёт обработчик раздачи файлов.
func NewFilesHandler(resolver *placement.Resolver, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		resolver: resolver,
		logger:   logger.With(slog.String("component", "files_handler")),
	}
}

// ServePackage обрабатывает GET /files/{name}.
func (h *FilesHandler) ServePackage(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, placement.AreaPackage)
}

// ServeImage обрабатывает GET /images/{name}.
func (h *FilesHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, placement.AreaImage)
}

func (h *FilesHandler) serve(w http.ResponseWriter, r *http.Request, area placement.Area) {
	name := chi.URLParam(r, "name")
	store := h.resolver.Store(area)

	f, err := store.Open(name)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) || errors.Is(err, filestore.ErrInvalidName) {
			apierrors.NotFound(w, "File not found")
			return
		}
		h.logger.Error("Ошибка открытия файла",
			slog.String("area", string(area)),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Failed to read file", err.Error())
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		apierrors.InternalError(w, "Failed to read file", err.Error())
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	switch area {
	case placement.AreaPackage:
		w.Header().Set("Content-Type", placement.PackageContentType)
	case placement.AreaImage:
		if ct := imageContentType(name); ct != "" {
			w.Header().Set("Content-Type", ct)
		} else {
			w.Header().Set("Content-Type", octetStream)
			w.Header().Set("Content-Disposition", "attachment")
		}
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

const octetStream = "application/octet-stream"

// imageContentType возвращает тип изображения по расширению имени.
// Пустая строка — расширение не относится к растровому изображению:
// имя присылает клиент, и по нему нельзя отдавать text/html или image/svg+xml.
func imageContentType(name string) string {
	ct := mime.TypeByExtension(path.Ext(name))
	mt := placement.MediaType(ct)
	if !strings.HasPrefix(mt, "image/") || mt == "image/svg+xml" {
		return ""
	}
	return ct
}
