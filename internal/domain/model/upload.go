// Пакет model — доменные модели apkstore.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRequiredField — не заполнено обязательное текстовое поле записи.
var ErrRequiredField = errors.New("не заполнено обязательное поле")

// UploadRecord — запись о загрузке: описательные поля и ссылки
// на сохранённые файлы. После создания не изменяется.
type UploadRecord struct {
	// ID — идентификатор, назначенный хранилищем метаданных
	ID string
	// Title — название приложения
	Title string
	// Genre — жанр
	Genre string
	// Description — описание
	Description string
	// PackageFile — имя файла в области пакетов (пусто, если файл не передан)
	PackageFile string
	// ImageFile — имя файла в области изображений (пусто, если файл не передан)
	ImageFile string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}

// Validate проверяет, что обязательные текстовые поля не пусты.
// Строка из одних пробелов считается пустой.
func (r *UploadRecord) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"title", r.Title},
		{"genre", r.Genre},
		{"description", r.Description},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrRequiredField, f.name)
		}
	}
	return nil
}
