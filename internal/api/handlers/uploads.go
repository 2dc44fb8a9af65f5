// uploads.go — HTTP handlers загрузки и выдачи записей.
// POST /upload-files, GET /get-files, GET /test-db, GET /.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/apkstore/internal/api/errors"
	"github.com/bigkaa/apkstore/internal/domain/model"
	"github.com/bigkaa/apkstore/internal/service"
)

// Сообщения ответов.
const (
	msgUploaded        = "Files uploaded successfully!"
	msgInvalidFileType = "Invalid file type"
	msgPlacementFailed = "Failed to store uploaded file"
	msgPersistFailed   = "Failed to save upload metadata"
	msgUploadRejected  = "Upload rejected"
	msgListFailed      = "Failed to fetch files"
	msgDBHealthy       = "Database connection is healthy"
	msgDBFailed        = "Database connection failed"
	msgInternal        = "Internal server error"
	msgHome            = "APK store server is running"
)

// multipartMemory — объём формы, который держится в памяти; остальное уходит во временные файлы.
const multipartMemory = 32 << 20

// UploadsHandler — обработчик endpoints загрузки и списка.
type UploadsHandler struct {
	svc         *service.UploadService
	maxBodySize int64
	logger      *slog.Logger
}

// NewUploadsHandler создаёт обработчик загрузки.
// maxFileSize — лимит одного файла; лимит тела запроса рассчитывается
// на два файла и текстовые поля.
func NewUploadsHandler(svc *service.UploadService, maxFileSize int64, logger *slog.Logger) *UploadsHandler {
	return &UploadsHandler{
		svc:         svc,
		maxBodySize: 2*maxFileSize + 1<<20,
		logger:      logger.With(slog.String("component", "uploads_handler")),
	}
}

// uploadResponse — запись о загрузке в ответе списка.
type uploadResponse struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Genre       string    `json:"genre"`
	Description string    `json:"description"`
	APKFile     string    `json:"apkFile"`
	ImageFile   string    `json:"imageFile"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toUploadResponse(rec *model.UploadRecord) uploadResponse {
	return uploadResponse{
		ID:          rec.ID,
		Title:       rec.Title,
		Genre:       rec.Genre,
		Description: rec.Description,
		APKFile:     rec.PackageFile,
		ImageFile:   rec.ImageFile,
		CreatedAt:   rec.CreatedAt.UTC(),
	}
}

// UploadFiles обрабатывает POST /upload-files.
// Multipart form: title, genre, description (текст), apk и image (файлы, не более одного в поле).
func (h *UploadsHandler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		h.writeUploadError(w, r, h.svc.Reject(parseFormError(err)))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("Ошибка удаления временных файлов формы", slog.String("error", err.Error()))
		}
	}()

	params, err := paramsFromForm(r)
	if err != nil {
		h.writeUploadError(w, r, h.svc.Reject(err))
		return
	}

	if _, err := h.svc.Upload(r.Context(), params); err != nil {
		h.writeUploadError(w, r, err)
		return
	}

	apierrors.WriteOK(w, msgUploaded)
}

// parseFormError классифицирует ошибку разбора multipart-формы.
func parseFormError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return &service.FrameworkUploadError{
			Err: fmt.Errorf("%w: тело запроса превышает %d байт", service.ErrFileTooLarge, maxBytesErr.Limit),
		}
	}
	return &service.FrameworkUploadError{Err: fmt.Errorf("%w: %w", service.ErrMalformedRequest, err)}
}

// paramsFromForm собирает параметры загрузки из разобранной формы.
func paramsFromForm(r *http.Request) (service.UploadParams, error) {
	params := service.UploadParams{
		Title:       r.PostFormValue("title"),
		Genre:       r.PostFormValue("genre"),
		Description: r.PostFormValue("description"),
	}

	for name, headers := range r.MultipartForm.File {
		field, ok := service.ParseField(name)
		if !ok {
			return params, &service.FrameworkUploadError{Err: fmt.Errorf("%w: %q", service.ErrUnexpectedField, name)}
		}
		if len(headers) > 1 {
			return params, &service.FrameworkUploadError{Err: fmt.Errorf("%w: %s", service.ErrDuplicateFile, name)}
		}

		input := fileInput(headers[0])
		switch field {
		case service.FieldPackage:
			params.Package = input
		case service.FieldImage:
			params.Image = input
		}
	}
	return params, nil
}

func fileInput(fh *multipart.FileHeader) *service.FileInput {
	return &service.FileInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// writeUploadError преобразует ошибку загрузки в ответ 500 с единым телом.
func (h *UploadsHandler) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		typeErr      *service.InvalidFileTypeError
		placementErr *service.PlacementError
		persistErr   *service.PersistenceError
		frameworkErr *service.FrameworkUploadError
	)

	// Ошибки запроса клиента — WARN, сбои хранилищ — ERROR
	message, level := msgInternal, slog.LevelError
	switch {
	case errors.As(err, &typeErr):
		message, level = msgInvalidFileType, slog.LevelWarn
	case errors.As(err, &placementErr):
		message = msgPlacementFailed
	case errors.As(err, &persistErr):
		message = msgPersistFailed
		if errors.Is(err, model.ErrRequiredField) {
			level = slog.LevelWarn
		}
	case errors.As(err, &frameworkErr):
		message, level = msgUploadRejected, slog.LevelWarn
	}

	h.logger.LogAttrs(r.Context(), level, "Загрузка не выполнена",
		slog.String("message", message),
		slog.String("error", err.Error()),
		slog.String("remote_addr", r.RemoteAddr),
	)
	apierrors.InternalError(w, message, err.Error())
}

// ListFiles обрабатывает GET /get-files: до 10 последних записей.
func (h *UploadsHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.ListUploads(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка записей", slog.String("error", err.Error()))
		apierrors.InternalError(w, msgListFailed, err.Error())
		return
	}

	data := make([]uploadResponse, 0, len(records))
	for _, rec := range records {
		data = append(data, toUploadResponse(rec))
	}
	apierrors.WriteData(w, data)
}

// TestDB обрабатывает GET /test-db: проверка доступности хранилища метаданных.
func (h *UploadsHandler) TestDB(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Error("Хранилище метаданных недоступно", slog.String("error", err.Error()))
		apierrors.InternalError(w, msgDBFailed, err.Error())
		return
	}
	apierrors.WriteOK(w, msgDBHealthy)
}

// Home обрабатывает GET /: сервис запущен.
func (h *UploadsHandler) Home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, msgHome)
}
