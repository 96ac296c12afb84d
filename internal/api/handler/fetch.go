package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/iconidentify/reelrelay/internal/domain"
	"github.com/iconidentify/reelrelay/internal/service"
)

// FetchHandler handles batch downloads and the duplicate check.
type FetchHandler struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// NewFetchHandler creates a new fetch handler.
func NewFetchHandler(pipeline Pipeline, logger *slog.Logger) *FetchHandler {
	return &FetchHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// BatchItemResponse describes one URL of a batch.
type BatchItemResponse struct {
	URL          string `json:"url"`
	Filename     string `json:"filename,omitempty"`
	Shortcode    string `json:"shortcode,omitempty"`
	Username     string `json:"username"`
	Description  string `json:"description"`
	RemoteFileID string `json:"gdrive_file_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Error        string `json:"error,omitempty"`
}

// FetchResponse groups batch outcomes.
type FetchResponse struct {
	Downloaded []BatchItemResponse `json:"downloaded"`
	Skipped    []BatchItemResponse `json:"skipped"`
	Failed     []BatchItemResponse `json:"failed"`
}

// CheckResponse is the duplicate check result.
type CheckResponse struct {
	URL         string `json:"url"`
	IsDuplicate bool   `json:"is_duplicate"`
	Message     string `json:"message"`
	Username    string `json:"username"`
	Description string `json:"description"`
}

// Fetch handles POST /api/v1/fetch
func (h *FetchHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	urls, err := readField(w, r, "urls")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if urls == "" {
		writeError(w, http.StatusBadRequest, "Please provide at least one Instagram URL!")
		return
	}

	result, err := h.pipeline.FetchBatch(r.Context(), urls)
	switch {
	case errors.Is(err, domain.ErrNoValidURLs):
		writeError(w, http.StatusBadRequest, "No valid Instagram URLs found. Make sure URLs contain 'instagram.com/p/' or 'instagram.com/reel/'")
		return
	case errors.Is(err, domain.ErrToolMissing):
		writeError(w, http.StatusServiceUnavailable, "Please install yt-dlp first")
		return
	case err != nil:
		h.logger.Error("batch fetch failed", "error", err)
		writeError(w, http.StatusInternalServerError, "batch fetch failed")
		return
	}

	writeJSON(w, http.StatusOK, FetchResponse{
		Downloaded: toItemResponses(result.Downloaded),
		Skipped:    toItemResponses(result.Skipped),
		Failed:     toItemResponses(result.Failed),
	})
}

// Check handles POST /api/v1/check
func (h *FetchHandler) Check(w http.ResponseWriter, r *http.Request) {
	url, err := readField(w, r, "url")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if url == "" {
		writeError(w, http.StatusBadRequest, "No URL provided")
		return
	}

	result, err := h.pipeline.Check(r.Context(), url)
	if errors.Is(err, domain.ErrInvalidSourceURL) {
		writeError(w, http.StatusBadRequest, "Invalid Instagram URL")
		return
	}
	if err != nil {
		h.logger.Error("check failed", "url", url, "error", err)
		writeError(w, http.StatusInternalServerError, "check failed")
		return
	}

	writeJSON(w, http.StatusOK, CheckResponse{
		URL:         result.URL,
		IsDuplicate: result.IsDuplicate,
		Message:     result.Message,
		Username:    result.Uploader,
		Description: result.Caption,
	})
}

func toItemResponses(items []service.BatchItem) []BatchItemResponse {
	out := make([]BatchItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, BatchItemResponse{
			URL:          it.URL,
			Filename:     it.Filename,
			Shortcode:    it.Shortcode,
			Username:     it.Uploader,
			Description:  it.Caption,
			RemoteFileID: it.RemoteFileID,
			Reason:       it.Reason,
			Error:        it.Error,
		})
	}
	return out
}
