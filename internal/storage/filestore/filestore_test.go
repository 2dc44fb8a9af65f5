package filestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	return fs
}

// TestNew_CreatesDirectory проверяет создание директории области (в том числе вложенной).
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads", "apks")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}
	if fs.Dir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, fs.Dir())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}

	// Повторный вызов идемпотентен
	if _, err := New(dir); err != nil {
		t.Fatalf("повторное создание FileStore: %v", err)
	}
}

// TestSaveFile проверяет сохранение файла с подсчётом SHA-256.
func TestSaveFile(t *testing.T) {
	fs := newStore(t)
	content := []byte("PK\x03\x04 тестовые данные пакета")

	result, err := fs.SaveFile(bytes.NewReader(content), "0190-game.apk", 0)
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if result.Name != "0190-game.apk" {
		t.Errorf("имя: %q", result.Name)
	}
	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}

	expected := sha256.Sum256(content)
	if result.Checksum != hex.EncodeToString(expected[:]) {
		t.Errorf("checksum: получено %s", result.Checksum)
	}

	data, err := os.ReadFile(result.FullPath)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает")
	}

	// temp файл не должен остаться
	if _, err := os.Stat(result.FullPath + tmpSuffix); !os.IsNotExist(err) {
		t.Error("временный файл не удалён")
	}
}

// TestSaveFile_RecreatesDirectory проверяет запись после удаления директории.
func TestSaveFile_RecreatesDirectory(t *testing.T) {
	fs := newStore(t)
	if err := os.RemoveAll(fs.Dir()); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}

	if _, err := fs.SaveFile(strings.NewReader("x"), "a.png", 0); err != nil {
		t.Fatalf("ошибка сохранения после удаления директории: %v", err)
	}
}

// TestSaveFile_NoOverwrite проверяет, что существующий файл не перезаписывается.
func TestSaveFile_NoOverwrite(t *testing.T) {
	fs := newStore(t)

	if _, err := fs.SaveFile(strings.NewReader("first"), "dup.png", 0); err != nil {
		t.Fatalf("первая запись: %v", err)
	}
	_, err := fs.SaveFile(strings.NewReader("second"), "dup.png", 0)
	if !errors.Is(err, ErrExists) {
		t.Fatalf("ожидалась ErrExists, получено: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(fs.Dir(), "dup.png"))
	if string(data) != "first" {
		t.Errorf("файл перезаписан: %q", data)
	}
}

// TestSaveFile_TooLarge проверяет лимит размера.
func TestSaveFile_TooLarge(t *testing.T) {
	fs := newStore(t)

	// Ровно лимит — допустимо
	if _, err := fs.SaveFile(bytes.NewReader(make([]byte, 16)), "exact.bin", 16); err != nil {
		t.Fatalf("файл ровно по лимиту отклонён: %v", err)
	}

	_, err := fs.SaveFile(bytes.NewReader(make([]byte, 17)), "big.bin", 16)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("ожидалась ErrTooLarge, получено: %v", err)
	}
	if fs.Exists("big.bin") {
		t.Error("файл сверх лимита не должен сохраняться")
	}
	if _, err := os.Stat(filepath.Join(fs.Dir(), "big.bin"+tmpSuffix)); !os.IsNotExist(err) {
		t.Error("временный файл не удалён")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

// TestSaveFile_ReaderError проверяет очистку при ошибке чтения источника.
func TestSaveFile_ReaderError(t *testing.T) {
	fs := newStore(t)

	if _, err := fs.SaveFile(failingReader{}, "broken.apk", 0); err == nil {
		t.Fatal("ожидалась ошибка")
	}

	entries, err := os.ReadDir(fs.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("в директории остались файлы: %d", len(entries))
	}
}

// TestInvalidNames проверяет отклонение имён с путями и служебных имён.
func TestInvalidNames(t *testing.T) {
	fs := newStore(t)

	for _, name := range []string{"", ".", "..", "../escape", "a/b", `a\b`, ".hidden", "x.tmp"} {
		if _, err := fs.SaveFile(strings.NewReader("x"), name, 0); !errors.Is(err, ErrInvalidName) {
			t.Errorf("SaveFile(%q): ожидалась ErrInvalidName, получено %v", name, err)
		}
		if _, err := fs.Open(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Open(%q): ожидалась ErrInvalidName, получено %v", name, err)
		}
		if fs.Exists(name) {
			t.Errorf("Exists(%q) = true", name)
		}
	}
}

func TestOpen(t *testing.T) {
	fs := newStore(t)
	if _, err := fs.SaveFile(strings.NewReader("image-bytes"), "cover.png", 0); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	f, err := fs.Open("cover.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	data, _ := io.ReadAll(f)
	if string(data) != "image-bytes" {
		t.Errorf("содержимое: %q", data)
	}

	if _, err := fs.Open("missing.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено: %v", err)
	}
}

// TestOpen_Directory проверяет, что поддиректория не отдаётся как файл.
func TestOpen_Directory(t *testing.T) {
	fs := newStore(t)
	if err := os.Mkdir(filepath.Join(fs.Dir(), "sub"), 0o750); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, err := fs.Open("sub"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено: %v", err)
	}
}

// TestList проверяет перечисление с пропуском временных и скрытых файлов.
func TestList(t *testing.T) {
	fs := newStore(t)
	for _, name := range []string{"a.apk", "b.apk"} {
		if _, err := fs.SaveFile(strings.NewReader(name), name, 0); err != nil {
			t.Fatalf("SaveFile(%s): %v", name, err)
		}
	}
	_ = os.WriteFile(filepath.Join(fs.Dir(), "c.apk.tmp"), []byte("partial"), 0o640)
	_ = os.WriteFile(filepath.Join(fs.Dir(), ".probe-1"), nil, 0o640)
	_ = os.Mkdir(filepath.Join(fs.Dir(), "nested"), 0o750)

	entries, err := fs.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ожидалось 2 файла, получено %d: %+v", len(entries), entries)
	}
	for _, e := range entries {
		if e.Size != int64(len(e.Name)) {
			t.Errorf("%s: размер %d", e.Name, e.Size)
		}
		if e.ModTime.IsZero() {
			t.Errorf("%s: пустое время изменения", e.Name)
		}
	}
}

func TestCheckWritable(t *testing.T) {
	fs := newStore(t)
	if err := fs.CheckWritable(); err != nil {
		t.Fatalf("CheckWritable: %v", err)
	}

	entries, _ := os.ReadDir(fs.Dir())
	if len(entries) != 0 {
		t.Error("проверочный файл не удалён")
	}
}
