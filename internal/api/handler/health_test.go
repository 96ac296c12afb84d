package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iconidentify/reelrelay/internal/domain"
	"github.com/iconidentify/reelrelay/internal/service"
)

func TestHealthHandler_Live(t *testing.T) {
	h := NewHealthHandler(&mockPipeline{}, mockTool{}, t.TempDir(), testLogger())

	w := httptest.NewRecorder()
	h.Live(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHealthHandler_Ready(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	h := NewHealthHandler(&mockPipeline{}, mockTool{version: "2024.08.06"}, dir, testLogger())

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["download_dir"])
	assert.Equal(t, "2024.08.06", resp.Checks["ytdlp"])

	// The temp file is cleaned up.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHealthHandler_Ready_ToolMissing(t *testing.T) {
	h := NewHealthHandler(&mockPipeline{}, mockTool{missing: true}, t.TempDir(), testLogger())

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Checks["ytdlp"], "not installed")
}

func TestHealthHandler_Ready_DirNotWritable(t *testing.T) {
	// A regular file cannot be used as the download directory.
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	h := NewHealthHandler(&mockPipeline{}, mockTool{version: "v"}, file, testLogger())

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthHandler_Stats(t *testing.T) {
	dir := t.TempDir()
	relayed := domain.NewLedgerEntry("u2", "b.mp4", "https://www.youtube.com/watch?v=b", "")
	p := &mockPipeline{stats: &service.StatsResult{
		Count:       2,
		Entries:     []domain.LedgerEntry{domain.NewLedgerEntry("u1", "a.mp4", "", ""), relayed},
		Relayed:     1,
		Backend:     "gdrive",
		DownloadDir: dir,
	}}
	h := NewHealthHandler(p, mockTool{}, dir, testLogger())

	w := httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Ledger.Count)
	assert.Equal(t, 1, resp.Ledger.Relayed)
	assert.Equal(t, "gdrive", resp.Ledger.Backend)
	assert.Len(t, resp.Ledger.Links, 2)
	assert.Positive(t, resp.System.NumCPU)
	assert.GreaterOrEqual(t, resp.System.Uptime, int64(0))
}

func TestHealthHandler_StatsError(t *testing.T) {
	h := NewHealthHandler(&mockPipeline{statsErr: errors.New("boom")}, mockTool{}, t.TempDir(), testLogger())

	w := httptest.NewRecorder()
	h.Stats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Minute, "5m"},
		{2*time.Hour + 3*time.Minute, "2h 3m"},
		{49*time.Hour + 10*time.Minute, "2d 1h 10m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUptime(tt.d))
	}
}
