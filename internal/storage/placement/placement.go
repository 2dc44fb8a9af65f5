// Пакет placement — выбор области хранения по MIME-типу и генерация
// уникальных имён файлов.
package placement

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/bigkaa/apkstore/internal/storage/filestore"
)

// PackageContentType — MIME-тип Android-пакета.
const PackageContentType = "application/vnd.android.package-archive"

// imagePrefix — префикс MIME-типов изображений.
const imagePrefix = "image/"

// maxOriginalLen — максимальная длина оригинальной части имени (в байтах).
const maxOriginalLen = 100

// ErrUnsupportedType — MIME-тип не относится ни к одной области хранения.
var ErrUnsupportedType = errors.New("неподдерживаемый тип файла")

// Area — область хранения файлов.
type Area string

const (
	// AreaPackage — область APK-пакетов.
	AreaPackage Area = "package"
	// AreaImage — область изображений.
	AreaImage Area = "image"
)

// Resolve определяет область хранения по объявленному MIME-типу.
// Параметры типа (после ';') и регистр не учитываются.
func Resolve(contentType string) (Area, error) {
	mt := MediaType(contentType)
	switch {
	case mt == PackageContentType:
		return AreaPackage, nil
	case strings.HasPrefix(mt, imagePrefix) && len(mt) > len(imagePrefix):
		// "image/" без подтипа не принимается
		return AreaImage, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
}

// MediaType нормализует значение Content-Type: отбрасывает параметры,
// пробелы и приводит к нижнему регистру.
func MediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// GenerateName возвращает имя вида <префикс>-<оригинальное имя>.
// Префикс — UUIDv7 в hex без дефисов: упорядочен по времени
// и монотонно растёт в пределах процесса.
func GenerateName(originalName string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("ошибка генерации UUIDv7: %w", err)
	}
	return strings.ReplaceAll(id.String(), "-", "") + "-" + SanitizeName(originalName), nil
}

// SanitizeName приводит имя, присланное клиентом, к безопасному виду:
// отбрасывает путь, оставляет буквы, цифры, '.', '-' и '_',
// ограничивает длину с сохранением расширения.
func SanitizeName(originalName string) string {
	// Клиенты под Windows присылают путь с обратными слэшами
	name := filepath.Base(strings.ReplaceAll(originalName, `\`, "/"))

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	name = strings.TrimLeft(b.String(), ".")
	if name == "" || strings.Trim(name, "._-") == "" {
		return "file"
	}

	if len(name) > maxOriginalLen {
		ext := filepath.Ext(name)
		if len(ext) > 16 {
			ext = ""
		}
		name = truncateValid(strings.TrimSuffix(name, ext), maxOriginalLen-len(ext)) + ext
	}
	// Имя не должно совпадать с суффиксом временных файлов
	if strings.HasSuffix(name, ".tmp") {
		name += "_"
	}
	return name
}

// truncateValid обрезает строку до n байт, не разрывая UTF-8 последовательность.
func truncateValid(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// Resolver — размещение файлов в областях хранения.
type Resolver struct {
	stores map[Area]*filestore.FileStore
}

// NewResolver создаёт Resolver с двумя областями хранения.
func NewResolver(packages, images *filestore.FileStore) *Resolver {
	return &Resolver{
		stores: map[Area]*filestore.FileStore{
			AreaPackage: packages,
			AreaImage:   images,
		},
	}
}

// Store возвращает хранилище области или nil для неизвестной области.
func (r *Resolver) Store(area Area) *filestore.FileStore {
	return r.stores[area]
}

// Areas возвращает все области в фиксированном порядке.
func (r *Resolver) Areas() []Area {
	return []Area{AreaPackage, AreaImage}
}

// Place генерирует уникальное имя и записывает поток в область area.
func (r *Resolver) Place(area Area, originalName string, reader io.Reader, maxSize int64) (*filestore.SaveResult, error) {
	store := r.stores[area]
	if store == nil {
		return nil, fmt.Errorf("неизвестная область хранения %q", area)
	}

	name, err := GenerateName(originalName)
	if err != nil {
		return nil, err
	}

	result, err := store.SaveFile(reader, name, maxSize)
	if err != nil {
		return nil, fmt.Errorf("размещение в области %s: %w", area, err)
	}
	return result, nil
}
