package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/iconidentify/reelrelay/internal/domain"
)

var startTime = time.Now()

// ToolChecker reports the installed downloader version.
type ToolChecker interface {
	Version(ctx context.Context) (string, error)
}

// HealthHandler handles health check and stats endpoints.
type HealthHandler struct {
	pipeline    Pipeline
	tool        ToolChecker
	downloadDir string
	logger      *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(pipeline Pipeline, tool ToolChecker, downloadDir string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		pipeline:    pipeline,
		tool:        tool,
		downloadDir: downloadDir,
		logger:      logger,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready - readiness probe. The download directory must
// be writable and yt-dlp must run.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]string),
	}

	if err := checkWritable(h.downloadDir); err != nil {
		h.logger.Warn("download directory not writable", "dir", h.downloadDir, "error", err)
		resp.Checks["download_dir"] = "error: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["download_dir"] = "ok"
	}

	if version, err := h.tool.Version(ctx); err != nil {
		resp.Checks["ytdlp"] = "error: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["ytdlp"] = version
	}

	if status != http.StatusOK {
		resp.Status = "error"
	}
	writeJSON(w, status, resp)
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".ready-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// LedgerStats summarizes the link ledger.
type LedgerStats struct {
	Count       int                  `json:"count"`
	Relayed     int                  `json:"relayed"`
	Backend     string               `json:"backend"`
	Degraded    bool                 `json:"degraded"`
	DownloadDir string               `json:"download_dir"`
	Links       []domain.LedgerEntry `json:"links"`
}

// SystemStats contains process and disk statistics.
type SystemStats struct {
	Uptime         int64   `json:"uptime_seconds"`
	UptimeHuman    string  `json:"uptime_human"`
	MemAllocMB     int64   `json:"mem_alloc_mb"`
	MemSysMB       int64   `json:"mem_sys_mb"`
	NumGoroutines  int     `json:"num_goroutines"`
	NumCPU         int     `json:"num_cpu"`
	CPUPct         float64 `json:"cpu_pct"`
	DiskUsedBytes  int64   `json:"disk_used_bytes"`
	DiskFreeBytes  int64   `json:"disk_free_bytes"`
	DiskTotalBytes int64   `json:"disk_total_bytes"`
	DiskUsedPct    float64 `json:"disk_used_pct"`
}

// StatsResponse is returned by the stats endpoint.
type StatsResponse struct {
	Ledger LedgerStats `json:"ledger"`
	System SystemStats `json:"system"`
}

// Stats handles GET /api/v1/stats
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.pipeline.Stats(r.Context())
	if err != nil {
		h.logger.Error("load ledger stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := time.Since(startTime)

	sys := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		CPUPct:        getCPUUsage(),
	}
	sys.DiskTotalBytes, sys.DiskFreeBytes, sys.DiskUsedBytes, sys.DiskUsedPct = getDiskStats(ledger.DownloadDir)

	writeJSON(w, http.StatusOK, StatsResponse{
		Ledger: LedgerStats{
			Count:       ledger.Count,
			Relayed:     ledger.Relayed,
			Backend:     ledger.Backend,
			Degraded:    ledger.Degraded,
			DownloadDir: ledger.DownloadDir,
			Links:       ledger.Entries,
		},
		System: sys,
	})
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
