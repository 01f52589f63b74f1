package securebackup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	out := filepath.Join(t.TempDir(), "qa_backup.tar.gz"+Extension)
	plaintext := []byte("profile archive bytes")

	require.NoError(t, Seal([]byte("hunter2"), plaintext, out))
	assert.True(t, IsSealed(out))

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "profile archive bytes")

	got, err := Open([]byte("hunter2"), out)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	_, err = Open([]byte("wrong"), out)
	assert.True(t, errors.Is(err, ErrBadPassword))
}

func TestOpenRejectsPlainFiles(t *testing.T) {
	plain := filepath.Join(t.TempDir(), "plain.tar.gz")
	require.NoError(t, os.WriteFile(plain, []byte("\x1f\x8b not sealed"), 0644))

	assert.False(t, IsSealed(plain))
	_, err := Open([]byte("x"), plain)
	assert.True(t, errors.Is(err, ErrNotSealed))
}

func TestSealRequiresPassword(t *testing.T) {
	err := Seal(nil, []byte("x"), filepath.Join(t.TempDir(), "x.enc"))
	assert.Error(t, err)
}
