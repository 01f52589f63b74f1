package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groucho/internal/config"
	"groucho/internal/eventbus"
	"groucho/internal/events"
)

type collector struct {
	mu   sync.Mutex
	seen []string
	ch   chan string
}

func newCollector(bus *eventbus.Bus) *collector {
	c := &collector{ch: make(chan string, 16)}
	bus.SubscribeNamed(eventbus.Wildcard(events.NamespaceCompose), func(_ any, event string) {
		c.mu.Lock()
		c.seen = append(c.seen, event)
		c.mu.Unlock()
		c.ch <- event
	})
	return c
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func startWatcher(t *testing.T, debounce time.Duration) (*config.Config, *collector) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"docker-compose.yml", "docker-compose.prod.yml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("services: {}\n"), 0644))
	}
	cfg, err := config.LoadFrom(dir)
	require.NoError(t, err)

	bus := eventbus.New()
	c := newCollector(bus)
	w := New(cfg, bus, debounce)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	select {
	case <-w.Started():
	case err := <-done:
		t.Fatalf("watcher failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not start")
	}
	return cfg, c
}

func TestEmitsChangeForComposeFile(t *testing.T) {
	cfg, c := startWatcher(t, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(cfg.ComposeProd, []byte("services: {web: {}}\n"), 0644))

	select {
	case event := <-c.ch:
		assert.Equal(t, "compose.prod.changed", event)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event")
	}
}

func TestDebouncesBursts(t *testing.T) {
	cfg, c := startWatcher(t, 300*time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(cfg.ComposeDev, []byte("services: {}\n"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case event := <-c.ch:
		assert.Equal(t, "compose.dev.changed", event)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event")
	}
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 1, c.count())
}

func TestIgnoresOtherFiles(t *testing.T) {
	cfg, c := startWatcher(t, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.ProjectRoot, "README.md"), []byte("# groucho\n"), 0644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, c.count())
}

func TestDebouncerDropsSupersededFire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer(time.Millisecond)
	defer d.stop()
	dev := target{dev: true, path: "docker-compose.yml"}

	d.schedule(ctx, dev)
	first := <-d.fire
	// an edit lands after the timer fired but before the loop handled it
	d.schedule(ctx, dev)
	assert.False(t, d.due(first))

	second := <-d.fire
	assert.True(t, d.due(second))
	assert.Equal(t, dev, second.target)
}

func TestDebouncerKeepsEnvironmentsApart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer(time.Millisecond)
	defer d.stop()
	d.schedule(ctx, target{dev: true})
	d.schedule(ctx, target{dev: false})

	due := 0
	for i := 0; i < 2; i++ {
		if d.due(<-d.fire) {
			due++
		}
	}
	assert.Equal(t, 2, due)
}
