// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя репозиториев.
var (
	// ErrValidation — запись нарушает ограничения схемы (пустое обязательное поле).
	ErrValidation = errors.New("запись не прошла проверку")
	// ErrUnavailable — хранилище метаданных недоступно или запрос не выполнен.
	ErrUnavailable = errors.New("хранилище метаданных недоступно")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pinger — проверка доступности подключения.
type Pinger interface {
	Ping(ctx context.Context) error
}

// isConstraintViolation проверяет нарушение NOT NULL или CHECK ограничения.
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23502 — not_null_violation, 23514 — check_violation
		return pgErr.Code == "23502" || pgErr.Code == "23514"
	}
	return false
}
