package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecent(t *testing.T) (*Recent, *time.Time) {
	t.Helper()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(filepath.Join(t.TempDir(), HistoryDir, HistoryFile))
	r.now = func() time.Time { return clock }
	return r, &clock
}

func TestEmptyHistory(t *testing.T) {
	r, _ := newRecent(t)
	paths, err := r.Paths()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestTouchOrdersByLastAccess(t *testing.T) {
	r, clock := newRecent(t)

	require.NoError(t, r.Touch("/work/groucho"))
	*clock = clock.Add(time.Minute)
	require.NoError(t, r.Touch("/work/arena"))
	*clock = clock.Add(time.Minute)
	require.NoError(t, r.Touch("/work/groucho"))

	paths, err := r.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/work/groucho", "/work/arena"}, paths)
}

func TestRemoveAndSearch(t *testing.T) {
	r, clock := newRecent(t)
	for _, p := range []string{"/work/Groucho", "/srv/arena", "/work/groucho-assets"} {
		*clock = clock.Add(time.Second)
		require.NoError(t, r.Touch(p))
	}

	found, err := r.Search("GROUCHO")
	require.NoError(t, err)
	assert.Equal(t, []string{"/work/Groucho", "/work/groucho-assets"}, found)

	require.NoError(t, r.Remove("/work/Groucho"))
	require.NoError(t, r.Remove("/not/recorded"))
	paths, err := r.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/work/groucho-assets", "/srv/arena"}, paths)
}

func TestCorruptFile(t *testing.T) {
	r, _ := newRecent(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(r.path), 0755))
	require.NoError(t, os.WriteFile(r.path, []byte("{not json"), 0644))

	_, err := r.Paths()
	assert.Error(t, err)
}
