// Пакет contract — встроенный OpenAPI контракт HTTP API apkstore.
// Документ проверяется при старте и раздаётся по /openapi.yaml.
package contract

import (
	_ "embed"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var spec []byte

// Raw возвращает исходный текст OpenAPI документа.
func Raw() []byte {
	return spec
}

// Load разбирает и валидирует встроенный OpenAPI документ.
func Load() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора OpenAPI документа: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("OpenAPI документ не прошёл валидацию: %w", err)
	}
	return doc, nil
}

// Handler отдаёт OpenAPI документ.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(spec)
	})
}
