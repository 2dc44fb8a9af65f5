// health.go — обработчики health endpoints apkstore.
// /health/live — liveness probe (процесс жив)
// /health/ready — readiness probe (PostgreSQL доступен, области хранения доступны для записи)
// /metrics — Prometheus метрики
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/bigkaa/apkstore/internal/api/errors"
	"github.com/bigkaa/apkstore/internal/config"
	"github.com/bigkaa/apkstore/internal/storage/filestore"
)

const serviceName = "apkstore"

// Статусы health check.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status, message string)
}

// Pinger — зависимость, доступность которой проверяется запросом.
type Pinger interface {
	Ping(ctx context.Context) error
}

// pingChecker — проверка готовности через Ping с таймаутом.
type pingChecker struct {
	pinger  Pinger
	timeout time.Duration
	name    string
}

// NewPingChecker создаёт проверку готовности через Ping.
func NewPingChecker(name string, p Pinger) ReadinessChecker {
	return &pingChecker{pinger: p, timeout: 3 * time.Second, name: name}
}

func (c *pingChecker) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.pinger.Ping(ctx); err != nil {
		return statusFail, fmt.Sprintf("%s недоступен: %v", c.name, err)
	}
	return statusOK, "подключение активно"
}

// storageChecker — проверка записи в области хранения.
type storageChecker struct {
	stores []*filestore.FileStore
}

// NewStorageChecker создаёт проверку доступности областей хранения на запись.
func NewStorageChecker(stores ...*filestore.FileStore) ReadinessChecker {
	return &storageChecker{stores: stores}
}

func (c *storageChecker) CheckReady() (string, string) {
	for _, s := range c.stores {
		if err := s.CheckWritable(); err != nil {
			return statusFail, err.Error()
		}
	}
	return statusOK, "области хранения доступны для записи"
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	checkers    map[string]ReadinessChecker
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик health endpoints.
// checkers — проверки зависимостей по именам (например, "postgresql", "storage").
func NewHealthHandler(checkers map[string]ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		checkers:    checkers,
		promHandler: promhttp.Handler(),
	}
}

// healthCheckResult — результат проверки одной зависимости.
type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse — ответ liveness/readiness probe.
type healthResponse struct {
	Status    string                       `json:"status"`
	Timestamp string                       `json:"timestamp"`
	Version   string                       `json:"version"`
	Service   string                       `json:"service"`
	Checks    map[string]healthCheckResult `json:"checks,omitempty"`
}

// HealthLive — liveness probe. Возвращает 200 если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, healthResponse{
		Status:    statusOK,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	})
}

// HealthReady — readiness probe. Возвращает 200 (ok/degraded) или 503 (fail).
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
		Checks:    make(map[string]healthCheckResult, len(h.checkers)),
	}

	statuses := make([]string, 0, len(h.checkers))
	for name, c := range h.checkers {
		status, msg := c.CheckReady()
		resp.Checks[name] = healthCheckResult{Status: status, Message: msg}
		statuses = append(statuses, status)
	}
	resp.Status = overallStatus(statuses...)

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	apierrors.WriteJSON(w, code, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// overallStatus определяет итоговый статус из статусов зависимостей.
// Если хотя бы одна зависимость fail — итог fail.
// Если хотя бы одна degraded — итог degraded.
func overallStatus(statuses ...string) string {
	hasDegraded := false
	for _, s := range statuses {
		if s == statusFail {
			return statusFail
		}
		if s == statusDegraded {
			hasDegraded = true
		}
	}
	if hasDegraded {
		return statusDegraded
	}
	return statusOK
}
