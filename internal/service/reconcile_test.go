package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/apkstore/internal/repository"
	"github.com/bigkaa/apkstore/internal/storage/filestore"
	"github.com/bigkaa/apkstore/internal/storage/placement"
)

type failingRefs struct{}

func (failingRefs) FileRefs(context.Context) (*repository.FileRefs, error) {
	return nil, repository.ErrUnavailable
}

func setupReconcileEnv(t *testing.T) (*placement.Resolver, string, string) {
	t.Helper()
	root := t.TempDir()
	pkgDir := filepath.Join(root, "apks")
	imgDir := filepath.Join(root, "images")

	pkgs, err := filestore.New(pkgDir)
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}
	imgs, err := filestore.New(imgDir)
	if err != nil {
		t.Fatalf("Ошибка создания FileStore: %v", err)
	}
	return placement.NewResolver(pkgs, imgs), pkgDir, imgDir
}

// writeAged записывает файл и сдвигает время изменения в прошлое.
func writeAged(t *testing.T, dir, name string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(name), 0o640); err != nil {
		t.Fatalf("Ошибка записи файла: %v", err)
	}
	ts := time.Now().Add(-age)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("Ошибка Chtimes: %v", err)
	}
}

func TestReconcileRunOnce_NoIssues(t *testing.T) {
	resolver, pkgDir, imgDir := setupReconcileEnv(t)
	writeAged(t, pkgDir, "a-game.apk", time.Hour)
	writeAged(t, imgDir, "a-cover.png", time.Hour)

	refs := &fakeStore{refs: &repository.FileRefs{
		Packages: map[string]struct{}{"a-game.apk": {}},
		Images:   map[string]struct{}{"a-cover.png": {}},
	}}
	rs := NewReconcileService(refs, resolver, time.Hour, 15*time.Minute, testLogger())

	report, err := rs.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() ошибка: %v", err)
	}
	if report.FilesChecked != 2 {
		t.Errorf("FilesChecked = %d, ожидалось 2", report.FilesChecked)
	}
	if len(report.Issues) != 0 {
		t.Errorf("ожидалось 0 расхождений, получено %+v", report.Issues)
	}
}

func TestReconcileRunOnce_Orphans(t *testing.T) {
	resolver, pkgDir, imgDir := setupReconcileEnv(t)
	writeAged(t, pkgDir, "old-orphan.apk", time.Hour)
	writeAged(t, pkgDir, "fresh-orphan.apk", time.Minute)
	writeAged(t, imgDir, "old-orphan.png", 2*time.Hour)

	rs := NewReconcileService(&fakeStore{}, resolver, time.Hour, 15*time.Minute, testLogger())

	report, err := rs.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() ошибка: %v", err)
	}

	if n := report.Count(IssueOrphanedFile, placement.AreaPackage); n != 1 {
		t.Errorf("осиротевших пакетов: %d, ожидался 1 (свежий файл пропускается)", n)
	}
	if n := report.Count(IssueOrphanedFile, placement.AreaImage); n != 1 {
		t.Errorf("осиротевших изображений: %d, ожидался 1", n)
	}

	// Сверка только сообщает: файлы остаются на диске
	for _, p := range []string{
		filepath.Join(pkgDir, "old-orphan.apk"),
		filepath.Join(imgDir, "old-orphan.png"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("файл %s удалён сверкой: %v", p, err)
		}
	}
}

func TestReconcileRunOnce_MissingFile(t *testing.T) {
	resolver, _, _ := setupReconcileEnv(t)

	refs := &fakeStore{refs: &repository.FileRefs{
		Packages: map[string]struct{}{"gone.apk": {}},
		Images:   map[string]struct{}{},
	}}
	rs := NewReconcileService(refs, resolver, time.Hour, 0, testLogger())

	report, err := rs.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() ошибка: %v", err)
	}
	if len(report.Issues) != 1 {
		t.Fatalf("ожидалось 1 расхождение, получено %+v", report.Issues)
	}
	is := report.Issues[0]
	if is.Type != IssueMissingFile || is.Area != placement.AreaPackage || is.Name != "gone.apk" {
		t.Errorf("некорректное расхождение: %+v", is)
	}
}

func TestReconcileRunOnce_RefsUnavailable(t *testing.T) {
	resolver, _, _ := setupReconcileEnv(t)
	rs := NewReconcileService(failingRefs{}, resolver, time.Hour, 0, testLogger())

	if _, err := rs.RunOnce(context.Background()); !errors.Is(err, repository.ErrUnavailable) {
		t.Fatalf("ожидалась ErrUnavailable, получено: %v", err)
	}
}

// TestReconcileRunOnce_InProgress проверяет защиту от параллельного запуска.
func TestReconcileRunOnce_InProgress(t *testing.T) {
	resolver, _, _ := setupReconcileEnv(t)
	rs := NewReconcileService(&fakeStore{}, resolver, time.Hour, 0, testLogger())

	rs.mu.Lock()
	rs.inProcess = true
	rs.mu.Unlock()

	if _, err := rs.RunOnce(context.Background()); !errors.Is(err, ErrReconcileInProgress) {
		t.Fatalf("ожидалась ErrReconcileInProgress, получено: %v", err)
	}
}

func TestReconcile_StartStop(t *testing.T) {
	resolver, _, _ := setupReconcileEnv(t)
	rs := NewReconcileService(&fakeStore{}, resolver, 10*time.Millisecond, 0, testLogger())

	rs.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	rs.Stop()

	// Stop отключённой сверки не блокируется
	disabled := NewReconcileService(&fakeStore{}, resolver, 0, 0, testLogger())
	disabled.Start(context.Background())
	disabled.Stop()
}
