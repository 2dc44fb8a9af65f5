// Пакет errors — формирование JSON-ответов apkstore.
// Единый формат ошибки: {"status": "error", "message": "...", "error": "..."}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // имя пакета совпадает со stdlib, импортируется как apierrors

import (
	"encoding/json"
	"net/http"
)

// Значения поля status.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// messageBody — ответ с сообщением.
type messageBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errorBody — ответ ошибки.
type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// dataBody — ответ с данными.
type dataBody struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// WriteJSON записывает v в формате JSON с указанным статус-кодом.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteOK записывает 200 {"status": "ok", "message": message}.
func WriteOK(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, messageBody{Status: StatusOK, Message: message})
}

// WriteData записывает 200 {"status": "ok", "data": data}.
func WriteData(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, dataBody{Status: StatusOK, Data: data})
}

// WriteError записывает ответ ошибки.
// message — сообщение для клиента, detail — описание причины.
func WriteError(w http.ResponseWriter, statusCode int, message, detail string) {
	WriteJSON(w, statusCode, errorBody{
		Status:  StatusError,
		Message: message,
		Error:   detail,
	})
}

// InternalError — 500 с единым телом ошибки.
func InternalError(w http.ResponseWriter, message, detail string) {
	WriteError(w, http.StatusInternalServerError, message, detail)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, "not found")
}

// MethodNotAllowed — 405 метод не поддерживается.
func MethodNotAllowed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusMethodNotAllowed, message, "method not allowed")
}
