// Package youtube publishes videos through the YouTube Data API.
package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/iconidentify/reelrelay/internal/domain"
)

const (
	// TitleLimit is the maximum title length in runes.
	TitleLimit = 100

	// DescriptionLimit is the maximum description length in runes.
	DescriptionLimit = 5000

	// DefaultCategoryID is "People & Blogs".
	DefaultCategoryID = "22"

	// DefaultPrivacy applies when neither request nor config sets one.
	DefaultPrivacy = "public"

	// ChunkSize is the resumable upload chunk size.
	ChunkSize = 1 << 20

	watchURLPrefix = "https://www.youtube.com/watch?v="
)

// Scopes required by the client.
var Scopes = []string{yt.YoutubeUploadScope}

// TokenSourcer supplies OAuth tokens.
type TokenSourcer interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// Config holds publish defaults.
type Config struct {
	Privacy    string
	CategoryID string
}

// PublishRequest describes one upload.
type PublishRequest struct {
	Path        string
	Title       string
	Description string
	Tags        []string
	Privacy     string
}

// PublishResult identifies the published video.
type PublishResult struct {
	ID  string
	URL string
}

// Client uploads videos. The API handle is built on first use and kept
// for the lifetime of the client.
type Client struct {
	cfg    Config
	creds  TokenSourcer
	opts   []option.ClientOption
	logger *slog.Logger

	mu  sync.Mutex
	svc *yt.Service
}

// NewClient creates a publisher.
func NewClient(cfg Config, creds TokenSourcer, logger *slog.Logger, opts ...option.ClientOption) *Client {
	if cfg.Privacy == "" {
		cfg.Privacy = DefaultPrivacy
	}
	if cfg.CategoryID == "" {
		cfg.CategoryID = DefaultCategoryID
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, creds: creds, opts: opts, logger: logger}
}

func (c *Client) service(ctx context.Context) (*yt.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.svc != nil {
		return c.svc, nil
	}

	base := context.WithoutCancel(ctx)

	var opts []option.ClientOption
	if c.creds != nil {
		ts, err := c.creds.TokenSource(base)
		if err != nil {
			return nil, fmt.Errorf("%w: authenticate: %w", domain.ErrPublishFailed, err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}
	opts = append(opts, c.opts...)

	svc, err := yt.NewService(base, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create youtube service: %w", domain.ErrPublishFailed, err)
	}
	c.svc = svc
	return svc, nil
}

// Publish uploads the file at req.Path. Title and description are cut to
// the platform limits.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open video: %w", domain.ErrPublishFailed, err)
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	privacy := req.Privacy
	if privacy == "" {
		privacy = c.cfg.Privacy
	}

	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       domain.Truncate(req.Title, TitleLimit),
			Description: domain.Truncate(req.Description, DescriptionLimit),
			Tags:        req.Tags,
			CategoryId:  c.cfg.CategoryID,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           privacy,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	c.logger.Info("uploading video",
		"path", req.Path,
		"title", video.Snippet.Title,
		"privacy", privacy,
		"size_mb", size/(1024*1024),
	)

	call := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(f, googleapi.ChunkSize(ChunkSize), googleapi.ContentType("video/*")).
		ProgressUpdater(func(current, total int64) {
			if total > 0 {
				c.logger.Info("upload progress",
					"uploaded_mb", current/(1024*1024),
					"percent", fmt.Sprintf("%.1f%%", float64(current)/float64(total)*100),
				)
				return
			}
			c.logger.Info("upload progress", "uploaded_mb", current/(1024*1024))
		}).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPublishFailed, err)
	}

	if resp.Id == "" {
		return nil, fmt.Errorf("%w: response carried no video id", domain.ErrPublishFailed)
	}

	result := &PublishResult{ID: resp.Id, URL: WatchURL(resp.Id)}
	c.logger.Info("video published", "id", result.ID, "url", result.URL)
	return result, nil
}

// WatchURL returns the public URL of video id.
func WatchURL(id string) string {
	return watchURLPrefix + id
}
