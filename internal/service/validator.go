package service

import (
	"github.com/bigkaa/apkstore/internal/storage/placement"
)

// Field — имя файлового поля multipart-формы.
type Field string

const (
	// FieldPackage — поле с APK-пакетом.
	FieldPackage Field = "apk"
	// FieldImage — поле с изображением.
	FieldImage Field = "image"
)

// Fields возвращает допустимые файловые поля в порядке обработки.
func Fields() []Field {
	return []Field{FieldPackage, FieldImage}
}

// ParseField возвращает поле по имени из формы.
func ParseField(name string) (Field, bool) {
	switch Field(name) {
	case FieldPackage, FieldImage:
		return Field(name), true
	}
	return "", false
}

// Area возвращает область хранения, в которую попадают файлы поля.
func (f Field) Area() placement.Area {
	if f == FieldImage {
		return placement.AreaImage
	}
	return placement.AreaPackage
}

// ValidateFile проверяет объявленный MIME-тип файла до его записи.
// Поле apk принимает только тип APK-пакета, поле image — только image/*.
func ValidateFile(field Field, contentType string) error {
	area, err := placement.Resolve(contentType)
	if err != nil || area != field.Area() {
		return &InvalidFileTypeError{Field: field, ContentType: contentType}
	}
	return nil
}
