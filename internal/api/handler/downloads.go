package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// DownloadsHandler serves files from the download directory.
type DownloadsHandler struct {
	dir string
}

// NewDownloadsHandler creates a handler serving dir.
func NewDownloadsHandler(dir string) *DownloadsHandler {
	return &DownloadsHandler{dir: dir}
}

// Serve handles GET /downloads/{filename}
func (h *DownloadsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if !safeFilename(name) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	path := filepath.Join(h.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	http.ServeFile(w, r, path)
}

// safeFilename accepts a single visible path element.
func safeFilename(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}
