package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/iconidentify/reelrelay/internal/domain"
)

const toolName = "yt-dlp"

// YtDLPConfig configures the yt-dlp wrapper.
type YtDLPConfig struct {
	Path            string
	Format          string
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
	Username        string
	Password        string
}

// MediaInfo is the subset of yt-dlp's --dump-json output used here.
type MediaInfo struct {
	ID          string `json:"id"`
	Ext         string `json:"ext"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Uploader    string `json:"uploader"`
	Channel     string `json:"channel"`
	UploaderID  string `json:"uploader_id"`
}

// YtDLP wraps the yt-dlp command line tool.
type YtDLP struct {
	cfg    YtDLPConfig
	runner Runner
	logger *slog.Logger
}

// NewYtDLP creates a wrapper. runner defaults to ExecRunner.
func NewYtDLP(cfg YtDLPConfig, runner Runner, logger *slog.Logger) *YtDLP {
	if cfg.Path == "" {
		cfg.Path = toolName
	}
	if cfg.Format == "" {
		cfg.Format = "best"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YtDLP{cfg: cfg, runner: runner, logger: logger}
}

// DumpJSON reads metadata for url without downloading media.
func (y *YtDLP) DumpJSON(ctx context.Context, url string) (*MediaInfo, error) {
	args := []string{"--dump-json", "--no-playlist", "--quiet", "--no-warnings"}
	args = append(args, y.credentialArgs()...)
	args = append(args, url)

	tctx, cancel := withTimeout(ctx, y.cfg.MetadataTimeout)
	defer cancel()

	stdout, stderr, err := y.runner.Run(tctx, y.cfg.Path, args...)
	if err != nil {
		return nil, y.classify(tctx, err, stderr, "Metadata timeout", "Metadata extraction failed")
	}

	var info MediaInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, fmt.Errorf("parse %s output: %w", toolName, err)
	}
	return &info, nil
}

// Download saves the media for url into dir as <id>.<ext>.
func (y *YtDLP) Download(ctx context.Context, url, dir string) error {
	args := []string{
		"-f", y.cfg.Format,
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--no-playlist",
		"--no-mtime",
		"--quiet",
		"--no-warnings",
	}
	args = append(args, y.credentialArgs()...)
	args = append(args, url)

	tctx, cancel := withTimeout(ctx, y.cfg.DownloadTimeout)
	defer cancel()

	start := time.Now()
	_, stderr, err := y.runner.Run(tctx, y.cfg.Path, args...)
	if err != nil {
		return y.classify(tctx, err, stderr, "Download timeout", "Download failed")
	}

	y.logger.Debug("yt-dlp download finished", "url", url, "duration", time.Since(start))
	return nil
}

// Version returns the installed yt-dlp version.
func (y *YtDLP) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := y.runner.Run(ctx, y.cfg.Path, "--version")
	if err != nil {
		return "", y.classify(ctx, err, stderr, "Version check timeout", "Version check failed")
	}
	return strings.TrimSpace(string(stdout)), nil
}

// Available reports whether yt-dlp can be executed.
func (y *YtDLP) Available(ctx context.Context) error {
	if _, err := y.Version(ctx); err != nil {
		if errors.Is(err, domain.ErrToolMissing) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrToolMissing, err)
	}
	return nil
}

func (y *YtDLP) credentialArgs() []string {
	if y.cfg.Username == "" || y.cfg.Password == "" {
		return nil
	}
	return []string{"--username", y.cfg.Username, "--password", y.cfg.Password}
}

// classify maps a failed invocation to a domain error. Timeouts take
// precedence over stderr because a killed process may print partial output.
func (y *YtDLP) classify(ctx context.Context, err error, stderr []byte, timeoutMsg, failMsg string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return domain.ErrToolMissing
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewToolError(toolName, timeoutMsg, domain.ErrToolTimeout)
	}
	if msg := strings.TrimSpace(string(stderr)); msg != "" {
		return domain.NewToolError(toolName, msg, domain.ErrDownloadFailed)
	}
	return domain.NewToolError(toolName, failMsg, domain.ErrDownloadFailed)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
