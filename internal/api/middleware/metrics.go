// metrics.go — Prometheus HTTP метрики apkstore.
// Регистрирует метрики: apkstore_http_requests_total, apkstore_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apkstore_http_requests_total",
			Help: "Общее количество HTTP-запросов к apkstore",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apkstore_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к apkstore в секундах",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.status)
			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath заменяет имена файлов на {name}, а неизвестные пути — на "other".
// /files/0190...-game.apk → /files/{name}
func normalizePath(path string) string {
	switch path {
	case "/", "/upload-files", "/get-files", "/test-db",
		"/health/live", "/health/ready", "/metrics", "/openapi.yaml":
		return path
	}

	for _, prefix := range []string{"/files/", "/images/"} {
		if strings.HasPrefix(path, prefix) {
			return prefix + "{name}"
		}
	}
	return "other"
}
