package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/iconidentify/reelrelay/internal/domain"
	"github.com/iconidentify/reelrelay/internal/downloader"
)

var (
	handlePattern     = regexp.MustCompile(`@([a-zA-Z0-9._]+)`)
	sharedDataPattern = regexp.MustCompile(`window\._sharedData = ({.+?});</script>`)
)

// captionSeparator precedes the caption in og:description, e.g.
// `12 likes, 3 comments - @alice on Instagram: "caption"`.
const captionSeparator = " on Instagram: "

// ScrapeStrategy extracts metadata from the public post page.
type ScrapeStrategy struct {
	fetcher downloader.Fetcher
}

// NewScrapeStrategy creates a strategy using fetcher for page requests.
func NewScrapeStrategy(fetcher downloader.Fetcher) *ScrapeStrategy {
	return &ScrapeStrategy{fetcher: fetcher}
}

// Name returns "scrape".
func (s *ScrapeStrategy) Name() string {
	return "scrape"
}

// Extract fetches the page and parses its meta tags, falling back to the
// embedded shared data blob for fields the tags did not provide.
func (s *ScrapeStrategy) Extract(ctx context.Context, url string) (domain.Metadata, error) {
	html, err := s.fetcher.Get(ctx, url)
	if err != nil {
		return domain.Metadata{}, err
	}
	return ParsePage(html)
}

// ParsePage extracts metadata from a post page body.
func ParsePage(html []byte) (domain.Metadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("parse html: %w", err)
	}

	var meta domain.Metadata
	if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && desc != "" {
		meta.Caption = desc
		if m := handlePattern.FindStringSubmatch(desc); m != nil {
			meta.Uploader = m[1]
		}
		if _, after, found := strings.Cut(desc, captionSeparator); found {
			meta.Caption = strings.Trim(after, `"`)
		}
	}

	if meta.Uploader == "" || meta.Caption == "" {
		if m := sharedDataPattern.FindSubmatch(html); m != nil {
			owner, caption := parseSharedData(m[1])
			if meta.Uploader == "" {
				meta.Uploader = owner
			}
			if meta.Caption == "" {
				meta.Caption = caption
			}
		}
	}

	return meta, nil
}

type sharedData struct {
	EntryData struct {
		PostPage []struct {
			GraphQL struct {
				ShortcodeMedia struct {
					Owner struct {
						Username string `json:"username"`
					} `json:"owner"`
					EdgeMediaToCaption struct {
						Edges []struct {
							Node struct {
								Text string `json:"text"`
							} `json:"node"`
						} `json:"edges"`
					} `json:"edge_media_to_caption"`
				} `json:"shortcode_media"`
			} `json:"graphql"`
		} `json:"PostPage"`
	} `json:"entry_data"`
}

// parseSharedData reads the owner and first caption from the blob.
// Malformed blobs yield empty values.
func parseSharedData(raw []byte) (owner, caption string) {
	var data sharedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", ""
	}
	if len(data.EntryData.PostPage) == 0 {
		return "", ""
	}
	media := data.EntryData.PostPage[0].GraphQL.ShortcodeMedia
	owner = media.Owner.Username
	if edges := media.EdgeMediaToCaption.Edges; len(edges) > 0 {
		caption = edges[0].Node.Text
	}
	return owner, caption
}
