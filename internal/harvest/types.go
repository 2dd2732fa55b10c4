// Package harvest defines core types shared across subsystems.
package harvest

import (
	"time"
)

// SourceType identifies one of the portal's product listing pages.
type SourceType string

// Source types harvested from the portal.
const (
	SourceLife     SourceType = "life"
	SourceLifeList SourceType = "life_list"
	SourceNonLife  SourceType = "nonlife"
	SourceHealth   SourceType = "health"
)

// AllSourceTypes lists every source type in processing order.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceLife, SourceLifeList, SourceNonLife, SourceHealth}
}

// ParseSourceType validates a user-supplied source type string.
func ParseSourceType(s string) (SourceType, bool) {
	switch SourceType(s) {
	case SourceLife, SourceLifeList, SourceNonLife, SourceHealth:
		return SourceType(s), true
	}
	return "", false
}

// Record is one extracted row of product metadata. Fields holds the
// type-specific business columns; the named fields are universal.
// DocumentURL is the dedup key once non-empty. A record is immutable
// after it has been appended to a record store.
type Record struct {
	SourceType       SourceType
	Fields           map[string]string
	ArchiveStatus    string
	DocumentURL      string
	DocumentFilename string
	LocalFilePath    string
	RemoteURL        string
	ScrapedAt        time.Time
}

// Field returns a business field by column name, or "" when absent.
func (r Record) Field(name string) string {
	return r.Fields[name]
}

// DownloadTask is a single (url, destination) transfer request.
type DownloadTask struct {
	URL           string
	Destination   string
	SourceType    SourceType
	CorrelationID string
}

// DownloadResult is produced exactly once per task, success or not.
// On failure the destination must be treated as possibly partial or absent.
type DownloadResult struct {
	URL           string
	CorrelationID string
	Success       bool
	Path          string
	Bytes         int64
	Err           string
}

// SessionStatus is the lifecycle state of one source type's scrape session.
type SessionStatus string

// Session status values persisted in the state file.
const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// SessionState tracks scraping progress for one source type.
// LastCompletedPage is monotonically non-decreasing within a session;
// resuming reopens a running session at LastCompletedPage+1.
type SessionState struct {
	LastCompletedPage int           `json:"last_completed_page"`
	Status            SessionStatus `json:"status"`
	TotalRecords      int           `json:"total_records"`
	// Error holds the failure reason of the last failed run; cleared
	// when the session starts again.
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// FailedDownload records a download that exhausted its retries,
// unique per URL. Cleared on a successful retry.
type FailedDownload struct {
	URL         string    `json:"url"`
	Error       string    `json:"error"`
	RetryCount  int       `json:"retry_count"`
	LastAttempt time.Time `json:"last_attempt"`
}

// ScraperState is the aggregate persisted between runs.
type ScraperState struct {
	Sessions           map[SourceType]*SessionState `json:"sessions"`
	CompletedDownloads map[string]bool              `json:"-"`
	FailedDownloads    []FailedDownload             `json:"failed_downloads"`
	LastUpdated        time.Time                    `json:"last_updated"`
}

// NewScraperState returns an empty state with initialized containers.
func NewScraperState() *ScraperState {
	return &ScraperState{
		Sessions:           make(map[SourceType]*SessionState),
		CompletedDownloads: make(map[string]bool),
		FailedDownloads:    nil,
		LastUpdated:        time.Now().UTC(),
	}
}

// Summary reports the outcome of processing one source type.
type Summary struct {
	SourceType      SourceType
	RecordsSeen     int
	RecordsAppended int
	FilesDownloaded int
	FilesFailed     int
	FilesUploaded   int
}

// Add folds another summary into s.
func (s *Summary) Add(other Summary) {
	s.RecordsSeen += other.RecordsSeen
	s.RecordsAppended += other.RecordsAppended
	s.FilesDownloaded += other.FilesDownloaded
	s.FilesFailed += other.FilesFailed
	s.FilesUploaded += other.FilesUploaded
}
