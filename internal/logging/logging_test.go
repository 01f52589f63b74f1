package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groucho/internal/eventbus"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, logrus.ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, logrus.FatalLevel, ParseLevel("CRITICAL"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("whatever"))
}

func TestSetupWritesLogFile(t *testing.T) {
	logger := logrus.StandardLogger()
	prevOut, prevLevel := logger.Out, logger.GetLevel()
	t.Cleanup(func() {
		logger.SetOutput(prevOut)
		logger.SetLevel(prevLevel)
	})

	file := filepath.Join(t.TempDir(), "logs", "groucho.log")
	closer, err := Setup(Options{Level: "INFO", Verbose: true, File: file, Quiet: true})
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	For("test").Debug("hello from the test")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the test")
	assert.Contains(t, string(data), "process=test")
}

func TestBusHookLogsListenerFaults(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetLevel(logrus.InfoLevel)

	bus := eventbus.New(eventbus.WithErrorHook(BusHook(logrus.NewEntry(logger))))
	bus.SubscribeNamed("docker.*", func(any, string) { panic("listener exploded") })
	bus.Emit("docker.dev.started", nil)
	bus.Emit("", nil)

	out := buf.String()
	assert.Contains(t, out, "listener exploded")
	assert.Contains(t, out, "event=docker.dev.started")
	assert.Contains(t, out, "wildcard=true")
	assert.Contains(t, out, "op=emit")
	assert.NotContains(t, out, "goroutine", "stack stays at debug level")
}
