package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"

	"github.com/iconidentify/reelrelay/internal/domain"
)

// artifactExtensions are the media files a download can produce.
var artifactExtensions = []string{".mp4", ".jpg", ".png"}

// MediaDownloader downloads a source URL into a directory.
type MediaDownloader interface {
	Download(ctx context.Context, url, dir string) error
	Available(ctx context.Context) error
}

// ArtifactStore holds downloaded media remotely.
type ArtifactStore interface {
	UploadFile(ctx context.Context, localPath, name string) (string, error)
	DownloadFile(ctx context.Context, id, localPath string) error
	DeleteFile(ctx context.Context, id string) error
}

// FetchResult describes a downloaded artifact. LocalPath is empty when the
// artifact was moved to the remote store.
type FetchResult struct {
	Filename     string
	LocalPath    string
	RemoteFileID string
	MIME         string
}

// Fetcher downloads source media and optionally hands it to the remote
// store.
type Fetcher struct {
	dl     MediaDownloader
	store  ArtifactStore
	dir    string
	logger *slog.Logger
}

// NewFetcher creates a fetcher writing into dir. store may be nil.
func NewFetcher(dl MediaDownloader, store ArtifactStore, dir string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{dl: dl, store: store, dir: dir, logger: logger}
}

// Dir returns the download directory.
func (f *Fetcher) Dir() string {
	return f.dir
}

// Available reports whether the downloader can run.
func (f *Fetcher) Available(ctx context.Context) error {
	return f.dl.Available(ctx)
}

// Fetch downloads url. When a remote store is configured the artifact is
// uploaded and the local copy removed; a failed upload keeps the local
// file and leaves RemoteFileID empty.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	start := time.Now()
	if err := f.dl.Download(ctx, url, f.dir); err != nil {
		return nil, err
	}

	path, err := findArtifact(f.dir, domain.Shortcode(url))
	if err != nil {
		return nil, err
	}

	result := &FetchResult{
		Filename:  filepath.Base(path),
		LocalPath: path,
		MIME:      sniffMIME(path),
	}

	f.logger.Info("media downloaded",
		"url", url,
		"filename", result.Filename,
		"mime", result.MIME,
		"duration", time.Since(start),
	)

	if f.store == nil {
		return result, nil
	}

	id, err := f.store.UploadFile(ctx, path, result.Filename)
	if err != nil {
		f.logger.Warn("remote upload failed, keeping local file",
			"filename", result.Filename,
			"error", err,
		)
		return result, nil
	}

	result.RemoteFileID = id
	if err := os.Remove(path); err != nil {
		f.logger.Warn("remove local copy", "path", path, "error", err)
	} else {
		result.LocalPath = ""
	}
	return result, nil
}

// findArtifact picks the downloaded file. A file named after the shortcode
// wins; otherwise the most recently modified media file is used.
func findArtifact(dir, shortcode string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read download directory: %w", err)
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !hasArtifactExt(e.Name()) {
			continue
		}
		if strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())) == shortcode {
			return filepath.Join(dir, e.Name()), nil
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}

	if newest == "" {
		return "", domain.NewToolError("yt-dlp", "No video file found after download", domain.ErrNoArtifact)
	}
	return filepath.Join(dir, newest), nil
}

func hasArtifactExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range artifactExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

func sniffMIME(path string) string {
	kind, err := filetype.MatchFile(path)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}
