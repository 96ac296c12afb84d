package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/iconidentify/reelrelay/internal/domain"
)

// RelayHandler handles the Instagram to YouTube relay endpoint.
type RelayHandler struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// NewRelayHandler creates a new relay handler.
func NewRelayHandler(pipeline Pipeline, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// RelayResponse is the JSON result of a relay request. Failed requests
// only carry step, success and error.
type RelayResponse struct {
	Step         string `json:"step,omitempty"`
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	InstagramURL string `json:"instagram_url,omitempty"`
	YouTubeURL   string `json:"youtube_url,omitempty"`
	Filename     string `json:"filename,omitempty"`
	Username     string `json:"username,omitempty"`
	Description  string `json:"description,omitempty"`
	Duplicate    bool   `json:"duplicate,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Relay handles POST /api/v1/relay
func (h *RelayHandler) Relay(w http.ResponseWriter, r *http.Request) {
	url, err := readField(w, r, "url")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, RelayResponse{Error: "invalid request body"})
		return
	}
	if url == "" {
		writeJSON(w, http.StatusBadRequest, RelayResponse{Error: "No URL provided"})
		return
	}

	result, err := h.pipeline.Relay(r.Context(), url)
	if err != nil {
		h.writeRelayError(w, err)
		return
	}

	resp := RelayResponse{
		Step:         result.Step,
		Success:      true,
		InstagramURL: result.SourceURL,
		YouTubeURL:   result.RelayURL,
		Duplicate:    result.Duplicate,
	}
	if result.Duplicate {
		resp.Message = "This video is already uploaded to YouTube!"
	} else {
		resp.Message = "Video downloaded, uploaded to YouTube, and cleaned up!"
		resp.Filename = result.Filename
		resp.Username = result.Uploader
		resp.Description = result.Caption
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RelayHandler) writeRelayError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrInvalidSourceURL) {
		writeJSON(w, http.StatusBadRequest, RelayResponse{Error: "Invalid Instagram URL"})
		return
	}

	var stepErr *domain.StepError
	if errors.As(err, &stepErr) {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrRelayNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, RelayResponse{
			Step:  stepErr.Step,
			Error: stepErr.Message,
		})
		return
	}

	h.logger.Error("relay failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, RelayResponse{Error: "internal server error"})
}
