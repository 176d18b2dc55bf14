package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cordobacasas/casas/internal/domain"
)

// FileHandler serves images kept in the SQLite file store.
type FileHandler struct {
	files domain.FileReader
}

// NewFileHandler creates a new FileHandler.
func NewFileHandler(files domain.FileReader) *FileHandler {
	return &FileHandler{files: files}
}

// HandleServe serves image bytes with their stored Content-Type. Keys are
// random, so responses are cached aggressively.
// GET /files/{key...}
func (h *FileHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := h.files.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		slog.Error("serve file", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
