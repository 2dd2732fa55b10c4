// Package state persists scraping progress for crash-safe resume.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openinsure/irdai-harvester/internal/harvest"
)

// stateFileName inside the data directory.
const stateFileName = "state.json"

// persistedState is the on-disk shape of the scraper state.
type persistedState struct {
	Sessions           map[string]*harvest.SessionState `json:"sessions"`
	CompletedDownloads []string                         `json:"completed_downloads"`
	FailedDownloads    []harvest.FailedDownload         `json:"failed_downloads"`
	LastUpdated        time.Time                        `json:"last_updated"`
}

// Store owns the process-wide scraper state: loaded lazily on first
// access, rewritten in full after every mutation. Write frequency is per
// page and per download, so coarse-grained write-through is cheap enough.
type Store struct {
	path   string
	logger *zap.Logger

	mu    sync.Mutex
	state *harvest.ScraperState
}

// NewStore manages the state file under dataDir.
func NewStore(dataDir string, logger *zap.Logger) *Store {
	return &Store{
		path:   filepath.Join(dataDir, stateFileName),
		logger: logger,
	}
}

// load reads the state file, discarding unparseable content: progress
// tracking is a convenience, not a correctness-critical ledger.
func (s *Store) load() *harvest.ScraperState {
	if s.state != nil {
		return s.state
	}
	s.state = harvest.NewScraperState()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("state file unreadable, starting fresh", zap.Error(err))
		}
		return s.state
	}

	var p persistedState
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("state file corrupted, starting fresh",
			zap.String("path", s.path), zap.Error(err))
		return s.state
	}

	for key, session := range p.Sessions {
		if session != nil {
			s.state.Sessions[harvest.SourceType(key)] = session
		}
	}
	for _, url := range p.CompletedDownloads {
		s.state.CompletedDownloads[url] = true
	}
	s.state.FailedDownloads = p.FailedDownloads
	if !p.LastUpdated.IsZero() {
		s.state.LastUpdated = p.LastUpdated
	}
	return s.state
}

func (s *Store) save() error {
	st := s.load()
	st.LastUpdated = time.Now().UTC()

	p := persistedState{
		Sessions:           make(map[string]*harvest.SessionState, len(st.Sessions)),
		CompletedDownloads: make([]string, 0, len(st.CompletedDownloads)),
		FailedDownloads:    st.FailedDownloads,
		LastUpdated:        st.LastUpdated,
	}
	for key, session := range st.Sessions {
		p.Sessions[string(key)] = session
	}
	for url := range st.CompletedDownloads {
		p.CompletedDownloads = append(p.CompletedDownloads, url)
	}
	sort.Strings(p.CompletedDownloads)

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	// Full rewrite via rename so a crash never leaves a torn file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

func (s *Store) session(st harvest.SourceType) *harvest.SessionState {
	state := s.load()
	session, ok := state.Sessions[st]
	if !ok {
		session = &harvest.SessionState{Status: harvest.SessionPending}
		state.Sessions[st] = session
	}
	return session
}

// Session returns a copy of the session state for a source type.
func (s *Store) Session(st harvest.SourceType) harvest.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.session(st)
}

// StartSession marks a session running, stamping the start time unless
// it is already running. Idempotent within a running session.
func (s *Store) StartSession(st harvest.SourceType) (harvest.SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.session(st)
	if session.Status != harvest.SessionRunning {
		session.Status = harvest.SessionRunning
		session.Error = ""
		now := time.Now().UTC()
		session.StartedAt = &now
	}
	return *session, s.save()
}

// UpdatePageProgress records the last fully processed page. Callers must
// pass monotonically increasing pages within a session; the store does
// not enforce it.
func (s *Store) UpdatePageProgress(st harvest.SourceType, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(st).LastCompletedPage = page
	return s.save()
}

// LastCompletedPage returns the session's page cursor.
func (s *Store) LastCompletedPage(st harvest.SourceType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(st).LastCompletedPage
}

// CompleteSession is the terminal success transition.
func (s *Store) CompleteSession(st harvest.SourceType, totalRecords int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.session(st)
	session.Status = harvest.SessionCompleted
	session.TotalRecords = totalRecords
	now := time.Now().UTC()
	session.CompletedAt = &now
	return s.save()
}

// FailSession is the terminal failure transition, recording the reason
// for status reporting.
func (s *Store) FailSession(st harvest.SourceType, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.session(st)
	session.Status = harvest.SessionFailed
	session.Error = errText
	return s.save()
}

// IsDownloadCompleted checks the resume dedup set. This tracks attempted
// and succeeded downloads across runs, independent of whether the record
// ever reached the table.
func (s *Store) IsDownloadCompleted(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().CompletedDownloads[url]
}

// MarkDownloadCompleted inserts a URL into the resume dedup set.
func (s *Store) MarkDownloadCompleted(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load().CompletedDownloads[url] = true
	return s.save()
}

// MarkDownloadFailed upserts a failed download, bumping its retry count.
func (s *Store) MarkDownloadFailed(url, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.load()
	for i := range state.FailedDownloads {
		if state.FailedDownloads[i].URL == url {
			state.FailedDownloads[i].Error = errText
			state.FailedDownloads[i].RetryCount++
			state.FailedDownloads[i].LastAttempt = time.Now().UTC()
			return s.save()
		}
	}
	state.FailedDownloads = append(state.FailedDownloads, harvest.FailedDownload{
		URL:         url,
		Error:       errText,
		RetryCount:  1,
		LastAttempt: time.Now().UTC(),
	})
	return s.save()
}

// FailedDownloads returns a copy of the failure list in recorded order.
func (s *Store) FailedDownloads() []harvest.FailedDownload {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.load()
	out := make([]harvest.FailedDownload, len(state.FailedDownloads))
	copy(out, state.FailedDownloads)
	return out
}

// ClearFailedDownload removes a URL after a successful retry.
func (s *Store) ClearFailedDownload(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.load()
	kept := state.FailedDownloads[:0]
	for _, fd := range state.FailedDownloads {
		if fd.URL != url {
			kept = append(kept, fd)
		}
	}
	state.FailedDownloads = kept
	return s.save()
}

// ResetSession replaces one session with fresh defaults. Destructive.
func (s *Store) ResetSession(st harvest.SourceType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.load()
	if _, ok := state.Sessions[st]; ok {
		state.Sessions[st] = &harvest.SessionState{Status: harvest.SessionPending}
	}
	return s.save()
}

// ResetAll discards the entire state. Destructive.
func (s *Store) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = harvest.NewScraperState()
	return s.save()
}

// Snapshot returns a point-in-time copy of the full state for reporting.
func (s *Store) Snapshot() harvest.ScraperState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.load()
	out := harvest.ScraperState{
		Sessions:           make(map[harvest.SourceType]*harvest.SessionState, len(state.Sessions)),
		CompletedDownloads: make(map[string]bool, len(state.CompletedDownloads)),
		FailedDownloads:    make([]harvest.FailedDownload, len(state.FailedDownloads)),
		LastUpdated:        state.LastUpdated,
	}
	for key, session := range state.Sessions {
		copied := *session
		out.Sessions[key] = &copied
	}
	for url := range state.CompletedDownloads {
		out.CompletedDownloads[url] = true
	}
	copy(out.FailedDownloads, state.FailedDownloads)
	return out
}
