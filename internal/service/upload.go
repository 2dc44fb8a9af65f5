// Пакет service — бизнес-логика apkstore.
// upload.go — сервис загрузки: проверка типов, размещение файлов,
// создание записи в хранилище метаданных, выдача списка записей.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/apkstore/internal/domain/model"
	"github.com/bigkaa/apkstore/internal/storage/filestore"
	"github.com/bigkaa/apkstore/internal/storage/placement"
)

// ListLimit — максимальное количество записей в ответе списка.
const ListLimit = 10

// Prometheus метрики загрузок
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apkstore_uploads_total",
		Help: "Количество запросов на загрузку по результату",
	}, []string{"result"})

	uploadedBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apkstore_uploaded_bytes_total",
		Help: "Объём сохранённых данных по областям хранения",
	}, []string{"area"})

	uploadDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apkstore_upload_duration_seconds",
		Help:    "Длительность обработки загрузки в секундах",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// RecordStore — хранилище записей о загрузках.
type RecordStore interface {
	Create(ctx context.Context, rec *model.UploadRecord) error
	List(ctx context.Context, limit int) ([]*model.UploadRecord, error)
	Ping(ctx context.Context) error
}

// Placer — размещение файла в области хранения.
type Placer interface {
	Place(area placement.Area, originalName string, reader io.Reader, maxSize int64) (*filestore.SaveResult, error)
}

// FileInput — файл из multipart-формы.
type FileInput struct {
	// Filename — имя файла, присланное клиентом
	Filename string
	// ContentType — объявленный MIME-тип
	ContentType string
	// Size — размер из заголовков части (-1, если неизвестен)
	Size int64
	// Open открывает поток данных файла; вызывается только после проверки всех файлов
	Open func() (io.ReadCloser, error)
}

// UploadParams — параметры загрузки. Отсутствующий файл — nil.
type UploadParams struct {
	Title       string
	Genre       string
	Description string
	Package     *FileInput
	Image       *FileInput
}

// StoredFile — файл, записанный в область хранения.
type StoredFile struct {
	Field       Field
	Area        placement.Area
	Name        string
	ContentType string
	Size        int64
	Checksum    string
}

// UploadResult — результат загрузки.
type UploadResult struct {
	Record *model.UploadRecord
	Files  []StoredFile
}

// UploadService — сервис загрузки и выдачи записей.
type UploadService struct {
	store       RecordStore
	placer      Placer
	maxFileSize int64
	logger      *slog.Logger
}

// NewUploadService создаёт сервис загрузки.
func NewUploadService(store RecordStore, placer Placer, maxFileSize int64, logger *slog.Logger) *UploadService {
	return &UploadService{
		store:       store,
		placer:      placer,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "upload_service")),
	}
}

type fieldFile struct {
	field Field
	file  *FileInput
}

// files возвращает переданные файлы в порядке полей.
func (p *UploadParams) files() []fieldFile {
	var out []fieldFile
	if p.Package != nil {
		out = append(out, fieldFile{FieldPackage, p.Package})
	}
	if p.Image != nil {
		out = append(out, fieldFile{FieldImage, p.Image})
	}
	return out
}

// Upload выполняет загрузку.
//
// Поток:
//  1. Проверка типа и размера каждого переданного файла
//  2. Проверка обязательных текстовых полей
//  3. Размещение файлов в областях хранения
//  4. Создание записи в хранилище метаданных
//
// Ошибка на шагах 1-2 означает, что ни один файл не записан.
// Файлы, записанные до ошибки на шагах 3-4, не удаляются.
func (s *UploadService) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	start := time.Now()
	result, err := s.upload(ctx, params)
	uploadDurationSeconds.Observe(time.Since(start).Seconds())
	uploadsTotal.WithLabelValues(resultLabel(err)).Inc()
	return result, err
}

func (s *UploadService) upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	files := params.files()

	// 1. Все файлы проверяются до записи первого байта
	for _, ff := range files {
		if err := ValidateFile(ff.field, ff.file.ContentType); err != nil {
			s.logger.Warn("Недопустимый тип файла",
				slog.String("field", string(ff.field)),
				slog.String("content_type", ff.file.ContentType),
				slog.String("filename", ff.file.Filename),
			)
			return nil, err
		}
		if s.maxFileSize > 0 && ff.file.Size > s.maxFileSize {
			return nil, &FrameworkUploadError{
				Err: fmt.Errorf("%w: поле %s, %d байт, лимит %d байт",
					ErrFileTooLarge, ff.field, ff.file.Size, s.maxFileSize),
			}
		}
	}

	// 2. Запись с пустыми обязательными полями всё равно не будет создана
	rec := &model.UploadRecord{
		Title:       params.Title,
		Genre:       params.Genre,
		Description: params.Description,
	}
	if err := rec.Validate(); err != nil {
		return nil, &PersistenceError{Op: "create", Err: err}
	}

	// 3. Размещение
	stored := make([]StoredFile, 0, len(files))
	for _, ff := range files {
		sf, err := s.place(ctx, ff)
		if err != nil {
			s.logOrphans(stored, err)
			return nil, err
		}
		stored = append(stored, *sf)

		switch ff.field {
		case FieldPackage:
			rec.PackageFile = sf.Name
		case FieldImage:
			rec.ImageFile = sf.Name
		}
	}

	// 4. Запись метаданных
	if err := s.store.Create(ctx, rec); err != nil {
		perr := &PersistenceError{Op: "create", Err: err}
		s.logOrphans(stored, perr)
		return nil, perr
	}

	s.logger.Info("Загрузка выполнена",
		slog.String("id", rec.ID),
		slog.String("title", rec.Title),
		slog.String("apk_file", rec.PackageFile),
		slog.String("image_file", rec.ImageFile),
	)

	return &UploadResult{Record: rec, Files: stored}, nil
}

// place записывает один файл в область поля.
func (s *UploadService) place(ctx context.Context, ff fieldFile) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PlacementError{Field: ff.field, Err: err}
	}

	rc, err := ff.file.Open()
	if err != nil {
		return nil, &PlacementError{Field: ff.field, Err: fmt.Errorf("ошибка открытия файла: %w", err)}
	}
	defer rc.Close()

	area := ff.field.Area()
	res, err := s.placer.Place(area, ff.file.Filename, rc, s.maxFileSize)
	if err != nil {
		if errors.Is(err, filestore.ErrTooLarge) {
			return nil, &FrameworkUploadError{Err: fmt.Errorf("%w: поле %s: %w", ErrFileTooLarge, ff.field, err)}
		}
		s.logger.Error("Ошибка размещения файла",
			slog.String("field", string(ff.field)),
			slog.String("area", string(area)),
			slog.String("error", err.Error()),
		)
		return nil, &PlacementError{Field: ff.field, Err: err}
	}

	uploadedBytesTotal.WithLabelValues(string(area)).Add(float64(res.Size))
	s.logger.Debug("Файл сохранён",
		slog.String("area", string(area)),
		slog.String("name", res.Name),
		slog.Int64("size", res.Size),
		slog.String("sha256", res.Checksum),
	)

	return &StoredFile{
		Field:       ff.field,
		Area:        area,
		Name:        res.Name,
		ContentType: placement.MediaType(ff.file.ContentType),
		Size:        res.Size,
		Checksum:    res.Checksum,
	}, nil
}

// logOrphans фиксирует в логе файлы, оставшиеся без записи после ошибки.
func (s *UploadService) logOrphans(stored []StoredFile, cause error) {
	for _, sf := range stored {
		s.logger.Warn("Файл сохранён, но запись не создана",
			slog.String("area", string(sf.Area)),
			slog.String("name", sf.Name),
			slog.String("error", cause.Error()),
		)
	}
}

// Reject учитывает в метриках загрузку, отклонённую до вызова Upload
// (ошибка разбора формы, лишнее или повторное файловое поле), и возвращает err.
func (s *UploadService) Reject(err error) error {
	uploadsTotal.WithLabelValues(resultLabel(err)).Inc()
	return err
}

// ListUploads возвращает до ListLimit последних записей.
func (s *UploadService) ListUploads(ctx context.Context) ([]*model.UploadRecord, error) {
	records, err := s.store.List(ctx, ListLimit)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	if records == nil {
		records = []*model.UploadRecord{}
	}
	if len(records) > ListLimit {
		records = records[:ListLimit]
	}
	return records, nil
}

// Ping проверяет доступность хранилища метаданных.
func (s *UploadService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return &PersistenceError{Op: "ping", Err: err}
	}
	return nil
}

// resultLabel возвращает значение метки result для метрики загрузок.
func resultLabel(err error) string {
	var (
		typeErr      *InvalidFileTypeError
		placementErr *PlacementError
		persistErr   *PersistenceError
		frameworkErr *FrameworkUploadError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &typeErr):
		return "invalid_type"
	case errors.As(err, &placementErr):
		return "placement_error"
	case errors.As(err, &persistErr):
		return "persistence_error"
	case errors.As(err, &frameworkErr):
		return "rejected"
	default:
		return "error"
	}
}
