//go:build !windows

package pty

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, s Session) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := io.Copy(&buf, s)
	require.NoError(t, err, "EIO is reported as EOF")
	return buf.String()
}

func TestStartReadsOutput(t *testing.T) {
	s, err := Start(exec.Command("sh", "-c", "printf ready"))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "ready", readAll(t, s))
	assert.NoError(t, s.Wait())
}

func TestResize(t *testing.T) {
	s, err := Start(exec.Command("sh", "-c", "sleep 0.3; stty size"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Resize(40, 100))
	assert.Equal(t, "40 100", strings.TrimSpace(readAll(t, s)))
	assert.NoError(t, s.Wait())
}

func TestWaitReportsExitStatus(t *testing.T) {
	s, err := Start(exec.Command("sh", "-c", "exit 3"))
	require.NoError(t, err)
	defer s.Close()

	readAll(t, s)
	var exitErr *exec.ExitError
	require.ErrorAs(t, s.Wait(), &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestAttachPumpsBothWays(t *testing.T) {
	s, err := Start(exec.Command("sh", "-c", "read line; echo got:$line"))
	require.NoError(t, err)
	defer s.Close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()

	var out safeBuffer
	outDone, detach, err := Attach(s, r, &out)
	require.NoError(t, err)
	defer detach()

	_, err = w.WriteString("hello\n")
	require.NoError(t, err)
	_ = w.Close()

	select {
	case <-outDone:
	case <-time.After(5 * time.Second):
		t.Fatal("output did not end")
	}
	assert.NoError(t, s.Wait())
	assert.Contains(t, out.String(), "got:hello")
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
