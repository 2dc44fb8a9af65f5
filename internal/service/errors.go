// errors.go — ошибки бизнес-логики сервисного слоя.
//
// Каждая ошибка загрузки относится к одной из четырёх категорий:
// недопустимый тип файла, ошибка размещения на диске, ошибка хранилища
// метаданных и ошибка разбора запроса. Категорию определяют через errors.As.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedField — в multipart-запросе передано неизвестное файловое поле.
	ErrUnexpectedField = errors.New("неожиданное файловое поле")
	// ErrDuplicateFile — в одном поле передано больше одного файла.
	ErrDuplicateFile = errors.New("в поле передано несколько файлов")
	// ErrFileTooLarge — файл превышает допустимый размер.
	ErrFileTooLarge = errors.New("файл превышает допустимый размер")
	// ErrMalformedRequest — тело запроса не является корректной multipart-формой.
	ErrMalformedRequest = errors.New("некорректная multipart-форма")
)

// InvalidFileTypeError — объявленный MIME-тип файла недопустим для поля.
type InvalidFileTypeError struct {
	Field       Field
	ContentType string
}

func (e *InvalidFileTypeError) Error() string {
	return fmt.Sprintf("недопустимый тип файла %q в поле %s", e.ContentType, e.Field)
}

// PlacementError — файл не удалось разместить в области хранения.
type PlacementError struct {
	Field Field
	Err   error
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("ошибка размещения файла из поля %s: %v", e.Field, e.Err)
}

func (e *PlacementError) Unwrap() error { return e.Err }

// PersistenceError — ошибка хранилища метаданных
// (недоступно, запрос не выполнен, запись не прошла проверку).
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ошибка хранилища метаданных (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FrameworkUploadError — запрос отклонён на этапе разбора
// (превышен размер, некорректная форма, неожиданное поле).
type FrameworkUploadError struct {
	Err error
}

func (e *FrameworkUploadError) Error() string {
	return fmt.Sprintf("запрос на загрузку отклонён: %v", e.Err)
}

func (e *FrameworkUploadError) Unwrap() error { return e.Err }
