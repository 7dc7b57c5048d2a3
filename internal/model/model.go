package model

import (
	"strings"
	"time"
)

// VersionEntry is one observed release point. Absent fields are nil.
type VersionEntry struct {
	Version *string `json:"version"`
	Date    *string `json:"date"`
	Notes   *string `json:"notes"`
}

// Valid reports whether the entry carries a version or notes.
func (e VersionEntry) Valid() bool {
	return e.Version != nil || e.Notes != nil
}

// ExtractionResult is the output of one poll against the listing page.
type ExtractionResult struct {
	SourceURL string         `json:"sourceUrl"`
	Strategy  string         `json:"strategy,omitempty"`
	Entries   []VersionEntry `json:"entries"`
}

// MetadataRecord is the first result of the lookup endpoint.
type MetadataRecord struct {
	TrackName                 *string `json:"trackName"`
	Version                   *string `json:"version"`
	ReleaseNotes              *string `json:"releaseNotes"`
	TrackViewURL              *string `json:"trackViewUrl,omitempty"`
	CurrentVersionReleaseDate *string `json:"currentVersionReleaseDate,omitempty"`
}

// ObservedState combines both sources for a single poll.
type ObservedState struct {
	Metadata   *MetadataRecord
	Extraction ExtractionResult
}

// PersistedHistory is the durable record for one (app, country) pair.
type PersistedHistory struct {
	AppID        string          `json:"appId"`
	Country      string          `json:"country"`
	Entries      []VersionEntry  `json:"entries"`
	LastMetadata *MetadataRecord `json:"lastMetadata"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Verdict is the result of reconciling an observation against history.
type Verdict struct {
	Transitioned    bool             `json:"changed"`
	LatestVersion   *string          `json:"latestVersion"`
	PreviousVersion *string          `json:"prevLatest"`
	Record          PersistedHistory `json:"-"`
}

// Str returns a pointer to the trimmed string, or nil when it is empty.
func Str(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
