package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/iconidentify/reelrelay/internal/domain"
	"github.com/iconidentify/reelrelay/internal/repository"
	"github.com/iconidentify/reelrelay/pkg/youtube"
)

const (
	unknownUploader    = "Unknown"
	defaultCaption     = "Amazing content from Instagram"
	missingDescription = "No description available"
	fallbackTitle      = "Instagram Reel by @%s"
)

// relayTags are attached to every relayed video ahead of the uploader.
var relayTags = []string{"Instagram", "Reels", "Viral", "Trending"}

// MetadataExtractor returns uploader and caption for a URL. It never fails.
type MetadataExtractor interface {
	Extract(ctx context.Context, url string) domain.Metadata
}

// MediaFetcher downloads a URL into the download directory.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchResult, error)
	Available(ctx context.Context) error
	Dir() string
}

// Publisher relays a local video to the target platform.
type Publisher interface {
	Publish(ctx context.Context, req youtube.PublishRequest) (*youtube.PublishResult, error)
}

// LedgerBackend is the ledger view the pipeline needs.
type LedgerBackend interface {
	Load(ctx context.Context) (repository.LoadResult, error)
	Append(ctx context.Context, entry domain.LedgerEntry) (repository.SaveResult, error)
	IsDuplicate(ctx context.Context, policy domain.DuplicatePolicy, url string) bool
	RelayURL(ctx context.Context, url string) (string, bool)
}

// Pipeline runs the duplicate-aware fetch and relay flows.
type Pipeline struct {
	extractor MetadataExtractor
	fetcher   MediaFetcher
	artifacts ArtifactStore
	publisher Publisher
	ledger    LedgerBackend
	logger    *slog.Logger
}

// NewPipeline creates a pipeline. artifacts and publisher may be nil when
// the remote store or the relay target is disabled.
func NewPipeline(
	extractor MetadataExtractor,
	fetcher MediaFetcher,
	artifacts ArtifactStore,
	publisher Publisher,
	ledger LedgerBackend,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: extractor,
		fetcher:   fetcher,
		artifacts: artifacts,
		publisher: publisher,
		ledger:    ledger,
		logger:    logger,
	}
}

// RelayEnabled reports whether a publisher is configured.
func (p *Pipeline) RelayEnabled() bool {
	return p.publisher != nil
}

// RelayResult is the outcome of a successful or duplicate relay.
type RelayResult struct {
	Step      string
	Duplicate bool
	SourceURL string
	RelayURL  string
	Filename  string
	Uploader  string
	Caption   string
}

// Relay fetches url and republishes it. Failures are returned as
// *domain.StepError tagged with the step that stopped the flow.
//
// Once the URL is accepted the flow runs to completion even if ctx is
// cancelled: a publish without its ledger entry would be relayed again.
func (p *Pipeline) Relay(ctx context.Context, url string) (*RelayResult, error) {
	url = strings.TrimSpace(url)
	if err := domain.ValidateSourceURL(url); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	logger := p.logger.With("relay_id", uuid.NewString(), "url", url)

	if existing, ok := p.ledger.RelayURL(ctx, url); ok {
		logger.Info("already relayed", "relay_url", existing)
		return &RelayResult{
			Step:      domain.StepDuplicate,
			Duplicate: true,
			SourceURL: url,
			RelayURL:  existing,
		}, nil
	}

	if p.publisher == nil {
		return nil, domain.NewStepError(domain.StepUpload, "YouTube upload is not configured", domain.ErrRelayNotConfigured)
	}

	meta := p.extractor.Extract(ctx, url)
	uploader := orDefault(meta.Uploader, unknownUploader)
	caption := orDefault(meta.Caption, defaultCaption)
	logger.Info("metadata ready", "uploader", uploader, "extracted", !meta.IsEmpty())

	fetched, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		logger.Warn("download failed", "error", err)
		return nil, domain.NewStepError(domain.StepDownload, "Download failed: "+failureMessage(err), err)
	}

	videoPath := fetched.LocalPath
	if fetched.RemoteFileID != "" {
		if p.artifacts == nil {
			return nil, domain.NewStepError(domain.StepRemotePull, "Failed to download video from Google Drive", domain.ErrRemoteNotConfigured)
		}
		videoPath = filepath.Join(p.fetcher.Dir(), fetched.Filename)
		if err := p.artifacts.DownloadFile(ctx, fetched.RemoteFileID, videoPath); err != nil {
			logger.Warn("remote pull failed", "remote_id", fetched.RemoteFileID, "error", err)
			return nil, domain.NewStepError(domain.StepRemotePull, "Failed to download video from Google Drive", err)
		}
	}

	published, err := p.publisher.Publish(ctx, youtube.PublishRequest{
		Path:        videoPath,
		Title:       RelayTitle(meta.Caption, uploader),
		Description: RelayDescription(caption, uploader, url),
		Tags:        RelayTags(uploader),
	})
	if err != nil {
		logger.Error("publish failed", "path", videoPath, "error", err)
		return nil, domain.NewStepError(domain.StepUpload, "YouTube upload failed: "+err.Error(), err)
	}

	if fetched.RemoteFileID != "" {
		if err := p.artifacts.DeleteFile(ctx, fetched.RemoteFileID); err != nil {
			logger.Warn("delete remote copy", "remote_id", fetched.RemoteFileID, "error", err)
		}
	}
	if err := os.Remove(videoPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("delete local copy", "path", videoPath, "error", err)
	}

	// The remote copy is gone, so the entry carries no remote id.
	saved, err := p.ledger.Append(ctx, domain.NewLedgerEntry(url, fetched.Filename, published.URL, ""))
	if err != nil {
		logger.Error("record relay in ledger", "error", err)
	} else if saved.Degraded {
		logger.Warn("relay recorded in fallback ledger", "backend", saved.Backend, "primary_error", saved.PrimaryErr)
	}

	logger.Info("relay complete", "relay_url", published.URL)
	return &RelayResult{
		Step:      domain.StepComplete,
		SourceURL: url,
		RelayURL:  published.URL,
		Filename:  fetched.Filename,
		Uploader:  uploader,
		Caption:   caption,
	}, nil
}

// BatchItem reports one URL of a batch fetch.
type BatchItem struct {
	URL          string
	Filename     string
	Shortcode    string
	Uploader     string
	Caption      string
	RemoteFileID string
	Reason       string
	Error        string
}

// BatchResult groups batch outcomes.
type BatchResult struct {
	Downloaded []BatchItem
	Skipped    []BatchItem
	Failed     []BatchItem
}

// FetchBatch downloads every valid, not yet recorded URL in the
// newline-separated input. Like Relay, it is not interrupted by ctx
// cancellation once the input is accepted.
func (p *Pipeline) FetchBatch(ctx context.Context, input string) (*BatchResult, error) {
	urls := domain.ParseSourceURLs(input)
	if len(urls) == 0 {
		return nil, domain.ErrNoValidURLs
	}
	ctx = context.WithoutCancel(ctx)
	if err := p.fetcher.Available(ctx); err != nil {
		return nil, err
	}

	result := &BatchResult{
		Downloaded: []BatchItem{},
		Skipped:    []BatchItem{},
		Failed:     []BatchItem{},
	}

	for _, url := range urls {
		meta := p.extractor.Extract(ctx, url)
		item := BatchItem{
			URL:      url,
			Uploader: orDefault(meta.Uploader, unknownUploader),
			Caption:  orDefault(meta.Caption, missingDescription),
		}

		if p.ledger.IsDuplicate(ctx, domain.PolicyAnyEntry, url) {
			item.Reason = "Already downloaded"
			result.Skipped = append(result.Skipped, item)
			p.logger.Info("skipping already downloaded url", "url", url)
			continue
		}

		fetched, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			item.Error = failureMessage(err)
			result.Failed = append(result.Failed, item)
			p.logger.Warn("fetch failed", "url", url, "error", err)
			continue
		}

		if _, err := p.ledger.Append(ctx, domain.NewLedgerEntry(url, fetched.Filename, "", fetched.RemoteFileID)); err != nil {
			p.logger.Error("record fetch in ledger", "url", url, "error", err)
		}

		item.Filename = fetched.Filename
		item.Shortcode = domain.Shortcode(url)
		item.RemoteFileID = fetched.RemoteFileID
		result.Downloaded = append(result.Downloaded, item)
	}

	p.logger.Info("batch complete",
		"downloaded", len(result.Downloaded),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
	)
	return result, nil
}

// CheckResult is the duplicate check outcome.
type CheckResult struct {
	URL         string
	IsDuplicate bool
	Message     string
	Uploader    string
	Caption     string
}

// Check reports whether url was already fetched along with its metadata.
func (p *Pipeline) Check(ctx context.Context, url string) (*CheckResult, error) {
	url = strings.TrimSpace(url)
	if err := domain.ValidateSourceURL(url); err != nil {
		return nil, err
	}

	dup := p.ledger.IsDuplicate(ctx, domain.PolicyAnyEntry, url)
	meta := p.extractor.Extract(ctx, url)

	msg := "New URL"
	if dup {
		msg = "Already downloaded"
	}
	return &CheckResult{
		URL:         url,
		IsDuplicate: dup,
		Message:     msg,
		Uploader:    meta.Uploader,
		Caption:     meta.Caption,
	}, nil
}

// StatsResult summarizes the ledger.
type StatsResult struct {
	Count       int
	Entries     []domain.LedgerEntry
	Relayed     int
	Backend     string
	Degraded    bool
	DownloadDir string
}

// Stats loads the ledger and reports its size.
func (p *Pipeline) Stats(ctx context.Context) (*StatsResult, error) {
	loaded, err := p.ledger.Load(ctx)
	if err != nil {
		return nil, err
	}

	relayed := 0
	for _, e := range loaded.Ledger.Links {
		if e.HasRelay() {
			relayed++
		}
	}

	return &StatsResult{
		Count:       loaded.Ledger.Count,
		Entries:     loaded.Ledger.Links,
		Relayed:     relayed,
		Backend:     loaded.Backend,
		Degraded:    loaded.Degraded,
		DownloadDir: p.fetcher.Dir(),
	}, nil
}

// RelayTitle uses the first TitleLimit runes of the caption, or a title
// naming the uploader when no caption was extracted.
func RelayTitle(caption, uploader string) string {
	if caption == "" {
		return fmt.Sprintf(fallbackTitle, uploader)
	}
	return domain.Truncate(caption, youtube.TitleLimit)
}

// RelayDescription appends the credit and hashtag footer to caption.
func RelayDescription(caption, uploader, sourceURL string) string {
	var b strings.Builder
	b.WriteString(caption)
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "Credit: @%s on Instagram\n", uploader)
	fmt.Fprintf(&b, "Original: %s\n", sourceURL)
	b.WriteString("\n#Instagram #Reels #Viral #Trending\n")
	return b.String()
}

// RelayTags returns the fixed tags plus the uploader handle.
func RelayTags(uploader string) []string {
	tags := make([]string, 0, len(relayTags)+2)
	tags = append(tags, relayTags...)
	return append(tags, uploader, "shorts")
}

// failureMessage returns the user-facing text of a fetch error.
func failureMessage(err error) string {
	var toolErr *domain.ToolError
	if errors.As(err, &toolErr) && toolErr.Message != "" {
		return toolErr.Message
	}
	return err.Error()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
