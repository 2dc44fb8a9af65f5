// Пакет filestore — операции с файлами одной области хранения (плоская директория).
// Обеспечивает streaming-запись с подсчётом SHA-256 на лету,
// открытие файлов на чтение и перечисление содержимого области.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const tmpSuffix = ".tmp"

var (
	// ErrTooLarge — размер данных превышает допустимый лимит.
	ErrTooLarge = errors.New("превышен максимальный размер файла")
	// ErrExists — файл с таким именем уже есть в области.
	ErrExists = errors.New("файл уже существует")
	// ErrInvalidName — недопустимое имя файла (путь, скрытый или временный файл).
	ErrInvalidName = errors.New("недопустимое имя файла")
	// ErrNotFound — файл не найден.
	ErrNotFound = errors.New("файл не найден")
)

// FileStore — управление файлами в одной директории.
type FileStore struct {
	dir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// Name — имя файла в области
	Name string
	// FullPath — путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого
	Checksum string
}

// Entry — файл области, найденный при перечислении.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// New создаёт FileStore. Директория создаётся, если её нет.
func New(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// SaveFile записывает данные из reader в файл name с подсчётом SHA-256 на лету.
// maxSize <= 0 отключает проверку размера.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → rename.
// Существующий файл с тем же именем не перезаписывается.
// При ошибке temp файл удаляется.
func (fs *FileStore) SaveFile(reader io.Reader, name string, maxSize int64) (*SaveResult, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	// Директорию могли удалить после старта — создаём повторно
	if err := os.MkdirAll(fs.dir, 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", fs.dir, err)
	}

	fullPath := filepath.Join(fs.dir, name)
	if _, err := os.Lstat(fullPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}
	tmpPath := fullPath + tmpSuffix

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	cleanup := func() {
		f.Close()
		os.Remove(tmpPath)
	}

	src := reader
	if maxSize > 0 {
		// Читаем на байт больше лимита, чтобы отличить "ровно лимит" от превышения
		src = io.LimitReader(reader, maxSize+1)
	}

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(src, hasher))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}
	if maxSize > 0 && size > maxSize {
		cleanup()
		return nil, fmt.Errorf("%w: лимит %d байт", ErrTooLarge, maxSize)
	}

	if err := f.Sync(); err != nil {
		cleanup()
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// os.Link не заменяет существующий файл, в отличие от Rename
	if err := os.Link(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, name)
		}
		return nil, fmt.Errorf("ошибка публикации файла: %w", err)
	}
	os.Remove(tmpPath)

	return &SaveResult{
		Name:     name,
		FullPath: fullPath,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает файл области для чтения. Вызывающий код обязан закрыть файл.
func (fs *FileStore) Open(name string) (*os.File, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(fs.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", name, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка получения информации о файле %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, nil
}

// Exists проверяет существование файла в области.
func (fs *FileStore) Exists(name string) bool {
	if validName(name) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(fs.dir, name))
	return err == nil && info.Mode().IsRegular()
}

// List возвращает обычные файлы области. Временные и скрытые файлы пропускаются.
func (fs *FileStore) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", fs.dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if !de.Type().IsRegular() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, tmpSuffix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Файл мог быть удалён между ReadDir и Info
			continue
		}
		entries = append(entries, Entry{
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

// CheckWritable проверяет, что в директорию области можно писать.
func (fs *FileStore) CheckWritable() error {
	f, err := os.CreateTemp(fs.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("директория %s недоступна для записи: %w", fs.dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Dir возвращает путь к директории области.
func (fs *FileStore) Dir() string {
	return fs.dir
}

// validName отклоняет имена, выходящие за пределы плоской директории.
func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) ||
		strings.HasPrefix(name, ".") || strings.HasSuffix(name, tmpSuffix) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
