// recover.go — перехват паники в обработчиках.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/bigkaa/apkstore/internal/api/errors"
)

// Recoverer возвращает middleware, превращающий панику обработчика
// в ответ 500 с единым телом ошибки. Процесс продолжает работу.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Штатное прерывание ответа сервером — пробрасываем дальше
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("Паника в обработчике запроса",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", chimw.GetReqID(r.Context())),
					slog.String("panic", fmt.Sprint(rec)),
				)
				apierrors.InternalError(w, "Internal server error", "unexpected server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
