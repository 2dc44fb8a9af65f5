// Точка входа apkstore — сервис загрузки APK-пакетов и изображений.
// Загружает конфигурацию, применяет миграции и подключается к PostgreSQL,
// готовит области хранения файлов, запускает фоновую сверку и topologymetrics,
// HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/apkstore/internal/api/contract"
	"github.com/bigkaa/apkstore/internal/api/handlers"
	"github.com/bigkaa/apkstore/internal/api/middleware"
	"github.com/bigkaa/apkstore/internal/config"
	"github.com/bigkaa/apkstore/internal/database"
	"github.com/bigkaa/apkstore/internal/repository"
	"github.com/bigkaa/apkstore/internal/server"
	"github.com/bigkaa/apkstore/internal/service"
	"github.com/bigkaa/apkstore/internal/storage/filestore"
	"github.com/bigkaa/apkstore/internal/storage/placement"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		return 1
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("apkstore запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("APK_DEPHEALTH_GROUP") == "" {
		logger.Warn("APK_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Проверка встроенного OpenAPI-контракта
	if _, err := contract.Load(); err != nil {
		logger.Error("Некорректный OpenAPI-контракт", slog.String("error", err.Error()))
		return 1
	}

	// 4. Миграции и подключение к PostgreSQL
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		return 1
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Области хранения файлов
	packages, err := filestore.New(cfg.PackagesDir)
	if err != nil {
		logger.Error("Ошибка инициализации каталога пакетов",
			slog.String("dir", cfg.PackagesDir),
			slog.String("error", err.Error()),
		)
		return 1
	}
	images, err := filestore.New(cfg.ImagesDir)
	if err != nil {
		logger.Error("Ошибка инициализации каталога изображений",
			slog.String("dir", cfg.ImagesDir),
			slog.String("error", err.Error()),
		)
		return 1
	}
	resolver := placement.NewResolver(packages, images)
	logger.Info("Области хранения готовы",
		slog.String("packages_dir", packages.Dir()),
		slog.String("images_dir", images.Dir()),
	)

	// 6. Repository и сервисы
	uploadRepo := repository.NewUploadRepository(pool)
	uploadSvc := service.NewUploadService(uploadRepo, resolver, cfg.MaxFileSize, logger)

	// 7. Фоновая сверка файлов и записей
	reconcileSvc := service.NewReconcileService(uploadRepo, resolver,
		cfg.ReconcileInterval, cfg.ReconcileGrace, logger)
	reconcileSvc.Start(ctx)
	defer reconcileSvc.Stop()

	// 8. topologymetrics — мониторинг PostgreSQL
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"apkstore",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		defer dephealthSvc.Stop()
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 9. Handlers
	healthHandler := handlers.NewHealthHandler(map[string]handlers.ReadinessChecker{
		"postgresql": handlers.NewPingChecker("PostgreSQL", uploadRepo),
		"storage":    handlers.NewStorageChecker(packages, images),
	})
	apiHandler := handlers.NewAPIHandler(
		handlers.NewUploadsHandler(uploadSvc, cfg.MaxFileSize, logger),
		handlers.NewFilesHandler(resolver, logger),
		healthHandler,
	)

	// 10. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, apiHandler,
		chimw.RequestID,
		middleware.Recoverer(logger),
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	)
	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("apkstore остановлен")
	return 0
}
