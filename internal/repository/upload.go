package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/apkstore/internal/domain/model"
)

// FileRefs — имена файлов, на которые ссылаются записи, по областям.
type FileRefs struct {
	Packages map[string]struct{}
	Images   map[string]struct{}
}

// UploadRepository — хранилище записей о загрузках (таблица uploads).
type UploadRepository struct {
	db   DBTX
	ping Pinger
}

// NewUploadRepository создаёт репозиторий записей о загрузках.
// db обычно *pgxpool.Pool; если он реализует Ping, он же используется для проверки доступности.
func NewUploadRepository(db DBTX) *UploadRepository {
	r := &UploadRepository{db: db}
	if p, ok := db.(Pinger); ok {
		r.ping = p
	}
	return r
}

// Create сохраняет запись. ID и CreatedAt назначаются хранилищем
// и записываются в переданную структуру.
func (r *UploadRepository) Create(ctx context.Context, rec *model.UploadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("ошибка генерации идентификатора: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO uploads (id, title, genre, description, apk_file, image_file)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		id, rec.Title, rec.Genre, rec.Description, rec.PackageFile, rec.ImageFile,
	).Scan(&rec.CreatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return fmt.Errorf("%w: ошибка создания записи: %w", ErrUnavailable, err)
	}

	rec.ID = id.String()
	return nil
}

// List возвращает до limit записей, начиная с самых новых.
// При отсутствии записей возвращает пустой (не nil) срез.
func (r *UploadRepository) List(ctx context.Context, limit int) ([]*model.UploadRecord, error) {
	if limit <= 0 {
		return []*model.UploadRecord{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, title, genre, description, apk_file, image_file, created_at
		 FROM uploads
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка запроса списка: %w", ErrUnavailable, err)
	}

	records, err := pgx.CollectRows(rows, scanUpload)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения списка: %w", ErrUnavailable, err)
	}
	if records == nil {
		records = []*model.UploadRecord{}
	}
	return records, nil
}

// FileRefs возвращает множества имён файлов, на которые ссылаются записи.
// Пустые ссылки не включаются.
func (r *UploadRepository) FileRefs(ctx context.Context) (*FileRefs, error) {
	rows, err := r.db.Query(ctx,
		`SELECT apk_file, image_file FROM uploads WHERE apk_file <> '' OR image_file <> ''`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка запроса ссылок на файлы: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	refs := &FileRefs{
		Packages: make(map[string]struct{}),
		Images:   make(map[string]struct{}),
	}
	for rows.Next() {
		var apkFile, imageFile string
		if err := rows.Scan(&apkFile, &imageFile); err != nil {
			return nil, fmt.Errorf("%w: ошибка сканирования ссылок: %w", ErrUnavailable, err)
		}
		if apkFile != "" {
			refs.Packages[apkFile] = struct{}{}
		}
		if imageFile != "" {
			refs.Images[imageFile] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения ссылок: %w", ErrUnavailable, err)
	}
	return refs, nil
}

// Ping проверяет доступность хранилища метаданных.
func (r *UploadRepository) Ping(ctx context.Context) error {
	var err error
	if r.ping != nil {
		err = r.ping.Ping(ctx)
	} else {
		_, err = r.db.Exec(ctx, "SELECT 1")
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// scanUpload сканирует строку результата в UploadRecord.
func scanUpload(row pgx.CollectableRow) (*model.UploadRecord, error) {
	var (
		rec model.UploadRecord
		id  uuid.UUID
	)
	if err := row.Scan(
		&id, &rec.Title, &rec.Genre, &rec.Description,
		&rec.PackageFile, &rec.ImageFile, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.ID = id.String()
	return &rec, nil
}
