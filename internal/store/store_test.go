package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groucho/internal/eventbus"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "groucho.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Record("docker.dev.started", "docker.*", map[string]string{"env": "dev"}))
	require.NoError(t, s.Record("chrome.started", "chrome.*", nil))
	require.NoError(t, s.Record("docker.prod.stopped", "docker.*", "plain"))

	all, err := s.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "docker.prod.stopped", all[0].Event, "newest first")
	assert.Equal(t, `"plain"`, all[0].Payload)
	assert.Equal(t, "", all[1].Payload)
	assert.Equal(t, `{"env":"dev"}`, all[2].Payload)

	docker, err := s.Recent(10, "docker.")
	require.NoError(t, err)
	assert.Len(t, docker, 2)

	limited, err := s.Recent(1, "")
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecentPrefixIsLiteral(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Record("watch_compose.changed", "watch_compose.*", nil))
	require.NoError(t, s.Record("watchXcompose.changed", "watchXcompose.*", nil))
	require.NoError(t, s.Record("disk%full", "disk%full", nil))
	require.NoError(t, s.Record("diskfull", "diskfull", nil))

	entries, err := s.Recent(10, "watch_")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "watch_compose.changed", entries[0].Event)

	entries, err = s.Recent(10, "disk%")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "disk%full", entries[0].Event)
}

func TestRecordUnencodablePayload(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Record("game.dev.healthy", "game.*", make(chan int)))
	entries, err := s.Recent(1, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Payload, "0x")
}

func TestAttachJournalsWildcardEvents(t *testing.T) {
	s := openTestStore(t)
	bus := eventbus.New()

	detach := s.Attach(bus, "docker.*", "chrome.*")
	bus.Emit("docker.dev.started", "up")
	bus.Emit("chrome.profile.created", "qa")
	bus.Emit("puzzle.complete", 500)

	entries, err := s.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "chrome.profile.created", entries[0].Event)
	assert.Equal(t, "chrome.*", entries[0].Key)
	assert.Equal(t, "docker.dev.started", entries[1].Event)

	detach()
	assert.Empty(t, bus.Events())
	bus.Emit("docker.dev.stopped", nil)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Events)
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Record("docker.dev.built", "docker.*", nil))
	require.NoError(t, s.db.Model(&JournalEntry{}).Where("1 = 1").
		Update("created_at", time.Now().Add(-48*time.Hour)).Error)
	require.NoError(t, s.Record("docker.dev.started", "docker.*", nil))

	n, err := s.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := s.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "docker.dev.started", left[0].Event)
}

func TestBackupCatalog(t *testing.T) {
	s := openTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "qa_backup_20260301_120000.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("archive-bytes"), 0644))

	rec, err := s.RecordBackup("qa", path, false)
	require.NoError(t, err)
	assert.Equal(t, "qa", rec.Profile)
	assert.Equal(t, int64(len("archive-bytes")), rec.Size)
	assert.NotEmpty(t, rec.Hash)

	// recording again refreshes the same row
	_, err = s.RecordBackup("qa", path, true)
	require.NoError(t, err)
	recs, err := s.Backups("qa")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Encrypted)

	known, err := s.VerifyBackup(path)
	require.NoError(t, err)
	assert.True(t, known)

	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0644))
	known, err = s.VerifyBackup(path)
	assert.True(t, known)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))

	other := filepath.Join(dir, "other.tar.gz")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	known, err = s.VerifyBackup(other)
	require.NoError(t, err)
	assert.False(t, known)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Backups)
	assert.Equal(t, int64(len("archive-bytes")), st.BackupBytes)

	require.NoError(t, s.ForgetBackup(path))
	rec, err = s.BackupFor(path)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestHashFileIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("same"), 0644))

	a, err := HashFile(path)
	require.NoError(t, err)
	b, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}
