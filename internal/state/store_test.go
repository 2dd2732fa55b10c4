package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openinsure/irdai-harvester/internal/harvest"
)

func TestSessionLifecycle(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())

	session := store.Session(harvest.SourceLife)
	assert.Equal(t, harvest.SessionPending, session.Status)
	assert.Equal(t, 0, session.LastCompletedPage)

	session, err := store.StartSession(harvest.SourceLife)
	require.NoError(t, err)
	assert.Equal(t, harvest.SessionRunning, session.Status)
	require.NotNil(t, session.StartedAt)
	firstStart := *session.StartedAt

	// Starting an already running session keeps the original stamp.
	session, err = store.StartSession(harvest.SourceLife)
	require.NoError(t, err)
	require.NotNil(t, session.StartedAt)
	assert.Equal(t, firstStart, *session.StartedAt)

	require.NoError(t, store.UpdatePageProgress(harvest.SourceLife, 7))
	assert.Equal(t, 7, store.LastCompletedPage(harvest.SourceLife))

	require.NoError(t, store.CompleteSession(harvest.SourceLife, 420))
	session = store.Session(harvest.SourceLife)
	assert.Equal(t, harvest.SessionCompleted, session.Status)
	assert.Equal(t, 420, session.TotalRecords)
	assert.NotNil(t, session.CompletedAt)
}

func TestFailSessionRecordsError(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, zap.NewNop())

	_, err := store.StartSession(harvest.SourceLife)
	require.NoError(t, err)
	require.NoError(t, store.FailSession(harvest.SourceLife, "discover pagination: status 503"))

	session := store.Session(harvest.SourceLife)
	assert.Equal(t, harvest.SessionFailed, session.Status)
	assert.Equal(t, "discover pagination: status 503", session.Error)

	// The reason survives a restart and is cleared by the next run.
	reopened := NewStore(dir, zap.NewNop())
	assert.Equal(t, "discover pagination: status 503", reopened.Session(harvest.SourceLife).Error)

	session, err = reopened.StartSession(harvest.SourceLife)
	require.NoError(t, err)
	assert.Empty(t, session.Error)
}

func TestResumeAcrossStores(t *testing.T) {
	dir := t.TempDir()

	store := NewStore(dir, zap.NewNop())
	_, err := store.StartSession(harvest.SourceHealth)
	require.NoError(t, err)
	require.NoError(t, store.UpdatePageProgress(harvest.SourceHealth, 12))
	require.NoError(t, store.MarkDownloadCompleted("https://irdai.gov.in/documents/a.pdf"))

	// A fresh store over the same directory simulates a process restart.
	reopened := NewStore(dir, zap.NewNop())
	assert.Equal(t, 12, reopened.LastCompletedPage(harvest.SourceHealth))
	assert.Equal(t, harvest.SessionRunning, reopened.Session(harvest.SourceHealth).Status)
	assert.True(t, reopened.IsDownloadCompleted("https://irdai.gov.in/documents/a.pdf"))
	assert.False(t, reopened.IsDownloadCompleted("https://irdai.gov.in/documents/b.pdf"))
}

func TestCorruptStateStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o600))

	store := NewStore(dir, zap.NewNop())
	assert.Equal(t, harvest.SessionPending, store.Session(harvest.SourceLife).Status)
	assert.Empty(t, store.FailedDownloads())

	// The fresh state must be writable over the corrupt file.
	_, err := store.StartSession(harvest.SourceLife)
	require.NoError(t, err)
	reopened := NewStore(dir, zap.NewNop())
	assert.Equal(t, harvest.SessionRunning, reopened.Session(harvest.SourceLife).Status)
}

func TestFailedDownloads(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	const url = "https://irdai.gov.in/documents/a.pdf"

	require.NoError(t, store.MarkDownloadFailed(url, "status 503"))
	require.NoError(t, store.MarkDownloadFailed(url, "status 502"))
	require.NoError(t, store.MarkDownloadFailed("https://irdai.gov.in/documents/b.pdf", "timeout"))

	failed := store.FailedDownloads()
	require.Len(t, failed, 2)
	assert.Equal(t, url, failed[0].URL)
	assert.Equal(t, 2, failed[0].RetryCount)
	assert.Equal(t, "status 502", failed[0].Error)
	assert.Equal(t, 1, failed[1].RetryCount)

	require.NoError(t, store.ClearFailedDownload(url))
	failed = store.FailedDownloads()
	require.Len(t, failed, 1)
	assert.Equal(t, "https://irdai.gov.in/documents/b.pdf", failed[0].URL)
}

func TestReset(t *testing.T) {
	t.Run("SingleSession", func(t *testing.T) {
		store := NewStore(t.TempDir(), zap.NewNop())
		_, err := store.StartSession(harvest.SourceLife)
		require.NoError(t, err)
		_, err = store.StartSession(harvest.SourceHealth)
		require.NoError(t, err)
		require.NoError(t, store.UpdatePageProgress(harvest.SourceLife, 5))

		require.NoError(t, store.ResetSession(harvest.SourceLife))
		assert.Equal(t, harvest.SessionPending, store.Session(harvest.SourceLife).Status)
		assert.Equal(t, 0, store.LastCompletedPage(harvest.SourceLife))
		assert.Equal(t, harvest.SessionRunning, store.Session(harvest.SourceHealth).Status)
	})

	t.Run("All", func(t *testing.T) {
		store := NewStore(t.TempDir(), zap.NewNop())
		_, err := store.StartSession(harvest.SourceLife)
		require.NoError(t, err)
		require.NoError(t, store.MarkDownloadCompleted("https://x/a.pdf"))
		require.NoError(t, store.MarkDownloadFailed("https://x/b.pdf", "boom"))

		require.NoError(t, store.ResetAll())
		assert.Equal(t, harvest.SessionPending, store.Session(harvest.SourceLife).Status)
		assert.False(t, store.IsDownloadCompleted("https://x/a.pdf"))
		assert.Empty(t, store.FailedDownloads())
	})
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())
	_, err := store.StartSession(harvest.SourceLife)
	require.NoError(t, err)

	snap := store.Snapshot()
	snap.Sessions[harvest.SourceLife].Status = harvest.SessionFailed
	snap.CompletedDownloads["https://x/a.pdf"] = true

	assert.Equal(t, harvest.SessionRunning, store.Session(harvest.SourceLife).Status)
	assert.False(t, store.IsDownloadCompleted("https://x/a.pdf"))
}

func TestSaveWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, zap.NewNop())
	require.NoError(t, store.MarkDownloadCompleted("https://x/a.pdf"))

	assert.FileExists(t, filepath.Join(dir, "state.json"))
	assert.NoFileExists(t, filepath.Join(dir, "state.json.tmp"))
}
