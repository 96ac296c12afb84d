package extractor

import (
	"context"

	"github.com/iconidentify/reelrelay/internal/domain"
	"github.com/iconidentify/reelrelay/internal/downloader"
)

// MetadataTool dumps structured metadata for a URL.
type MetadataTool interface {
	DumpJSON(ctx context.Context, url string) (*downloader.MediaInfo, error)
}

// ToolStrategy extracts metadata through yt-dlp.
type ToolStrategy struct {
	tool MetadataTool
}

// NewToolStrategy creates a strategy over tool.
func NewToolStrategy(tool MetadataTool) *ToolStrategy {
	return &ToolStrategy{tool: tool}
}

// Name returns "ytdlp".
func (s *ToolStrategy) Name() string {
	return "ytdlp"
}

// Extract maps the tool's JSON dump to Metadata.
func (s *ToolStrategy) Extract(ctx context.Context, url string) (domain.Metadata, error) {
	info, err := s.tool.DumpJSON(ctx, url)
	if err != nil {
		return domain.Metadata{}, err
	}

	caption := firstNonEmpty(info.Description, info.Title)
	return domain.Metadata{
		Uploader: firstNonEmpty(info.Uploader, info.Channel, info.UploaderID),
		Caption:  domain.TruncateCaption(caption),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
