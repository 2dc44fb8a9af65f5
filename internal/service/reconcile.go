// reconcile.go — фоновая сверка областей хранения с записями о загрузках.
//
// Сверка обнаруживает:
//   - orphaned_file: файл в области, на который не ссылается ни одна запись
//     (например, после ошибки хранилища метаданных или обрыва соединения)
//   - missing_file: запись ссылается на файл, которого нет в области
//
// Сверка только сообщает о расхождениях (лог + метрики) и ничего не удаляет.
// Запускается как горутина с периодическим тикером (APK_RECONCILE_INTERVAL).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/apkstore/internal/repository"
	"github.com/bigkaa/apkstore/internal/storage/filestore"
	"github.com/bigkaa/apkstore/internal/storage/placement"
)

// ErrReconcileInProgress — сверка уже выполняется.
var ErrReconcileInProgress = errors.New("сверка уже выполняется")

// Prometheus метрики сверки
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apkstore_reconcile_runs_total",
		Help: "Общее количество запусков сверки",
	})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apkstore_reconcile_duration_seconds",
		Help:    "Длительность выполнения сверки в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})

	orphanFiles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "apkstore_orphan_files",
		Help: "Количество файлов без записи по результатам последней сверки",
	}, []string{"area"})

	missingFiles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "apkstore_missing_files",
		Help: "Количество ссылок на отсутствующие файлы по результатам последней сверки",
	}, []string{"area"})
)

// RefSource — источник ссылок записей на файлы.
type RefSource interface {
	FileRefs(ctx context.Context) (*repository.FileRefs, error)
}

// AreaLister — перечисление файлов областей хранения.
type AreaLister interface {
	Areas() []placement.Area
	Store(area placement.Area) *filestore.FileStore
}

// IssueType — тип расхождения.
type IssueType string

const (
	IssueOrphanedFile IssueType = "orphaned_file"
	IssueMissingFile  IssueType = "missing_file"
)

// ReconcileIssue — обнаруженное расхождение.
type ReconcileIssue struct {
	Type IssueType
	Area placement.Area
	Name string
}

// ReconcileReport — результат одного цикла сверки.
type ReconcileReport struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	FilesChecked int
	Issues       []ReconcileIssue
}

// Count возвращает количество расхождений заданного типа в области.
func (r *ReconcileReport) Count(t IssueType, area placement.Area) int {
	n := 0
	for _, is := range r.Issues {
		if is.Type == t && is.Area == area {
			n++
		}
	}
	return n
}

// ReconcileService — сервис фоновой сверки.
type ReconcileService struct {
	refs     RefSource
	areas    AreaLister
	interval time.Duration
	grace    time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReconcileService создаёт сервис сверки.
// grace — минимальный возраст файла, после которого он считается осиротевшим:
// более свежий файл может принадлежать загрузке, запись о которой ещё создаётся.
func NewReconcileService(
	refs RefSource,
	areas AreaLister,
	interval time.Duration,
	grace time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		refs:     refs,
		areas:    areas,
		interval: interval,
		grace:    grace,
		logger:   logger.With(slog.String("component", "reconcile")),
		now:      time.Now,
	}
}

// Start запускает фоновую горутину сверки. При interval <= 0 сверка не запускается.
func (rs *ReconcileService) Start(ctx context.Context) {
	if rs.interval <= 0 {
		rs.logger.Info("Сверка отключена")
		return
	}

	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	go rs.run(rsCtx)

	rs.logger.Info("Сверка запущена",
		slog.String("interval", rs.interval.String()),
		slog.String("grace", rs.grace.String()),
	)
}

// Stop останавливает фоновую сверку и дожидается завершения горутины.
func (rs *ReconcileService) Stop() {
	if rs.cancel == nil {
		return
	}
	rs.cancel()
	<-rs.done
	rs.logger.Info("Сверка остановлена")
}

func (rs *ReconcileService) run(ctx context.Context) {
	defer close(rs.done)

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rs.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				rs.logger.Error("Ошибка сверки", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Если сверка уже выполняется, возвращает ErrReconcileInProgress.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, ErrReconcileInProgress
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	report := &ReconcileReport{StartedAt: rs.now().UTC()}

	areas := rs.areas.Areas()
	listings := make([][]filestore.Entry, len(areas))
	var refs *repository.FileRefs

	// Области и ссылки читаются параллельно
	g, gctx := errgroup.WithContext(ctx)
	for i, area := range areas {
		g.Go(func() error {
			store := rs.areas.Store(area)
			if store == nil {
				return fmt.Errorf("область %s не настроена", area)
			}
			entries, err := store.List()
			if err != nil {
				return fmt.Errorf("область %s: %w", area, err)
			}
			listings[i] = entries
			return nil
		})
	}
	g.Go(func() error {
		var err error
		refs, err = rs.refs.FileRefs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cutoff := rs.now().Add(-rs.grace)
	for i, area := range areas {
		referenced := refsFor(refs, area)
		onDisk := make(map[string]struct{}, len(listings[i]))

		for _, e := range listings[i] {
			onDisk[e.Name] = struct{}{}
			report.FilesChecked++
			if _, ok := referenced[e.Name]; ok {
				continue
			}
			if e.ModTime.After(cutoff) {
				continue
			}
			report.Issues = append(report.Issues, ReconcileIssue{Type: IssueOrphanedFile, Area: area, Name: e.Name})
		}

		for name := range referenced {
			if _, ok := onDisk[name]; !ok {
				report.Issues = append(report.Issues, ReconcileIssue{Type: IssueMissingFile, Area: area, Name: name})
			}
		}
	}

	sort.Slice(report.Issues, func(i, j int) bool {
		a, b := report.Issues[i], report.Issues[j]
		if a.Area != b.Area {
			return a.Area < b.Area
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Name < b.Name
	})

	report.CompletedAt = rs.now().UTC()
	rs.publish(report, areas)

	return report, nil
}

// publish обновляет метрики и пишет результат сверки в лог.
func (rs *ReconcileService) publish(report *ReconcileReport, areas []placement.Area) {
	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(report.CompletedAt.Sub(report.StartedAt).Seconds())

	for _, area := range areas {
		orphanFiles.WithLabelValues(string(area)).Set(float64(report.Count(IssueOrphanedFile, area)))
		missingFiles.WithLabelValues(string(area)).Set(float64(report.Count(IssueMissingFile, area)))
	}

	for _, is := range report.Issues {
		rs.logger.Warn("Обнаружено расхождение",
			slog.String("type", string(is.Type)),
			slog.String("area", string(is.Area)),
			slog.String("name", is.Name),
		)
	}

	rs.logger.Info("Сверка завершена",
		slog.Int("files_checked", report.FilesChecked),
		slog.Int("issues", len(report.Issues)),
		slog.Duration("duration", report.CompletedAt.Sub(report.StartedAt)),
	)
}

func refsFor(refs *repository.FileRefs, area placement.Area) map[string]struct{} {
	if refs == nil {
		return nil
	}
	switch area {
	case placement.AreaPackage:
		return refs.Packages
	case placement.AreaImage:
		return refs.Images
	}
	return nil
}
