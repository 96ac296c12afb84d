package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	// SourceDomain is the only platform accepted for ingest.
	SourceDomain = "instagram.com"

	// CaptionLimit bounds captions read from the structured extractor.
	CaptionLimit = 500

	// EllipsisMarker is appended to truncated captions.
	EllipsisMarker = "..."
)

var sourcePathMarkers = []string{"/p/", "/reel/"}

// ValidateSourceURL checks that url points at an Instagram post or reel.
func ValidateSourceURL(url string) error {
	if url == "" || !strings.Contains(url, SourceDomain) {
		return ErrInvalidSourceURL
	}
	for _, marker := range sourcePathMarkers {
		if strings.Contains(url, marker) {
			return nil
		}
	}
	return ErrInvalidSourceURL
}

// ParseSourceURLs splits newline-separated input and keeps the valid URLs
// in input order.
func ParseSourceURLs(text string) []string {
	var valid []string
	for _, line := range strings.Split(text, "\n") {
		url := strings.TrimSpace(line)
		if url == "" {
			continue
		}
		if ValidateSourceURL(url) == nil {
			valid = append(valid, url)
		}
	}
	return valid
}

// Shortcode returns the path segment preceding the trailing slash,
// e.g. "ABC123" for https://www.instagram.com/reel/ABC123/.
func Shortcode(url string) string {
	parts := strings.Split(url, "/")
	if len(parts) < 2 {
		return "unknown"
	}
	return parts[len(parts)-2]
}

// Metadata is the uploader and caption extracted for a source URL.
// Empty strings mean the field could not be determined.
type Metadata struct {
	Uploader string `json:"username"`
	Caption  string `json:"description"`
}

// IsEmpty reports whether neither field was extracted.
func (m Metadata) IsEmpty() bool {
	return m.Uploader == "" && m.Caption == ""
}

// Truncate shortens s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// TruncateCaption shortens captions longer than CaptionLimit and marks
// the cut with EllipsisMarker.
func TruncateCaption(caption string) string {
	if utf8.RuneCountInString(caption) <= CaptionLimit {
		return caption
	}
	return Truncate(caption, CaptionLimit) + EllipsisMarker
}

// DuplicatePolicy decides whether a ledger already covers a URL.
type DuplicatePolicy int

const (
	// PolicyAnyEntry treats any recorded entry as a duplicate. Used by the
	// plain fetch flow and the duplicate check.
	PolicyAnyEntry DuplicatePolicy = iota

	// PolicyRelayed only treats entries with a relay URL as duplicates, so a
	// URL that was fetched but never relayed can still be relayed.
	PolicyRelayed
)

// String returns the policy name.
func (p DuplicatePolicy) String() string {
	switch p {
	case PolicyAnyEntry:
		return "any_entry"
	case PolicyRelayed:
		return "relayed"
	default:
		return "unknown"
	}
}

// IsDuplicate applies the policy to a ledger.
func (p DuplicatePolicy) IsDuplicate(l *Ledger, url string) bool {
	if l == nil {
		return false
	}
	switch p {
	case PolicyRelayed:
		_, ok := l.RelayURL(url)
		return ok
	default:
		return l.Contains(url)
	}
}
