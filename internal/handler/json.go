package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cordobacasas/casas/internal/domain"
)

// writeJSON sends a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("write JSON response", "error", err)
	}
}

// writeError sends a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// errorStatus maps a service error to an HTTP status. Unexpected errors are
// logged under op and reported as 500.
func errorStatus(op string, err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrDecode), errors.Is(err, domain.ErrEncode),
		errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDraftClosed):
		return http.StatusGone
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUpload):
		slog.Warn(op, "error", err)
		return http.StatusBadGateway
	default:
		slog.Error(op, "error", err)
		return http.StatusInternalServerError
	}
}

// userMessage returns a message safe to show for err.
func userMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return "Ocurrió un error inesperado. Intentá de nuevo."
	case http.StatusBadGateway:
		return "No se pudo subir la imagen. Intentá de nuevo."
	case http.StatusGone:
		return "El borrador ya no está disponible."
	default:
		return err.Error()
	}
}
