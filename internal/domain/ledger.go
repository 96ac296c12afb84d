package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// legacyTimestampLayouts are accepted when reading ledgers written by older
// tooling that emitted zone-less ISO timestamps.
var legacyTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Timestamp is a time that tolerates the historical ledger formats.
type Timestamp struct {
	time.Time
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp{Time: time.Now()}
}

// MarshalJSON writes the timestamp as RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts RFC 3339 and zone-less ISO text. Unknown text
// decodes to the zero time so one bad entry cannot invalidate a ledger.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range legacyTimestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// LedgerEntry records one processed source URL.
type LedgerEntry struct {
	URL          string    `json:"url"`
	Filename     string    `json:"filename"`
	RelayURL     *string   `json:"youtube_url"`
	RemoteFileID *string   `json:"gdrive_file_id"`
	DownloadedAt Timestamp `json:"downloaded_at"`
}

// HasRelay reports whether the entry carries a non-empty relay URL.
func (e LedgerEntry) HasRelay() bool {
	return e.RelayURL != nil && *e.RelayURL != ""
}

// NewLedgerEntry creates an entry stamped with the current time.
// Empty relayURL or remoteFileID are stored as null.
func NewLedgerEntry(url, filename, relayURL, remoteFileID string) LedgerEntry {
	return LedgerEntry{
		URL:          url,
		Filename:     filename,
		RelayURL:     optional(relayURL),
		RemoteFileID: optional(remoteFileID),
		DownloadedAt: Now(),
	}
}

// Ledger is the full record of processed URLs. It is always loaded and
// written as a whole document.
type Ledger struct {
	Links []LedgerEntry `json:"links"`
	Count int           `json:"count"`
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{Links: []LedgerEntry{}, Count: 0}
}

// Normalize restores count == len(links).
func (l *Ledger) Normalize() {
	if l.Links == nil {
		l.Links = []LedgerEntry{}
	}
	l.Count = len(l.Links)
}

// Append adds an entry and keeps the count in step.
func (l *Ledger) Append(entry LedgerEntry) {
	l.Links = append(l.Links, entry)
	l.Normalize()
}

// Contains reports whether any entry was recorded for url.
func (l *Ledger) Contains(url string) bool {
	for _, e := range l.Links {
		if e.URL == url {
			return true
		}
	}
	return false
}

// RelayURL returns the relay URL of the first entry for url that has one.
func (l *Ledger) RelayURL(url string) (string, bool) {
	for _, e := range l.Links {
		if e.URL == url && e.HasRelay() {
			return *e.RelayURL, true
		}
	}
	return "", false
}

// ParseLedger decodes a ledger document and normalizes it.
func ParseLedger(data []byte) (*Ledger, error) {
	l := NewLedger()
	if err := json.Unmarshal(data, l); err != nil {
		return nil, err
	}
	l.Normalize()
	return l, nil
}

// Encode normalizes and serializes the ledger as indented JSON.
func (l *Ledger) Encode() ([]byte, error) {
	l.Normalize()
	return json.MarshalIndent(l, "", "  ")
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
