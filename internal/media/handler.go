package media

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
)

// Handler serves cached audio at GET {prefix}/{filename}.
type Handler struct {
	store *Store
}

// NewHandler returns a Handler for store.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Register adds the media route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("GET "+h.store.urlPrefix+"/{filename}", h)
}

// ServeHTTP implements [http.Handler].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	f, err := h.store.Open(name)
	switch {
	case errors.Is(err, ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid file name")
		return
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "Audio file not found")
		return
	case err != nil:
		slog.Error("media: serve file", "file", name, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to serve audio file")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, "Audio file not found")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	// Names are content hashes, so a file never changes.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
