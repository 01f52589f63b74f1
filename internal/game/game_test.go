package game

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groucho/internal/config"
	"groucho/internal/docker"
	"groucho/internal/eventbus"
	"groucho/internal/events"
)

type fakeContainers struct {
	dev, prod docker.Status
	err       error
	calls     atomic.Int32
}

func (f *fakeContainers) Status(_ context.Context, dev bool) (docker.Status, error) {
	f.calls.Add(1)
	if f.err != nil {
		return docker.Status{}, f.err
	}
	if dev {
		return f.dev, nil
	}
	return f.prod, nil
}

// listen opens a local port and points the dev environment at it.
func listen(t *testing.T, cfg *config.Config) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port
	cfg.DevPort = port
	cfg.DevURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	return ln
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func newTestManager(t *testing.T, containers ContainerStatus) (*Manager, *config.Config, *[]string) {
	t.Helper()
	cfg, err := config.LoadFrom(t.TempDir())
	require.NoError(t, err)
	prodPort := closedPort(t)
	cfg.ProdPort = prodPort
	cfg.ProdURL = fmt.Sprintf("http://127.0.0.1:%d", prodPort)

	seen := &[]string{}
	bus := eventbus.New()
	bus.SubscribeNamed(eventbus.Wildcard(events.NamespaceGame), func(_ any, event string) {
		*seen = append(*seen, event)
	})
	m := NewManager(cfg, containers, bus, WithPollInterval(10*time.Millisecond), WithDialTimeout(200*time.Millisecond))
	return m, cfg, seen
}

func TestEndpoint(t *testing.T) {
	m, cfg, _ := newTestManager(t, &fakeContainers{})
	cfg.DevURL = "http://game.local:4000/play"
	host, port := m.endpoint(true)
	assert.Equal(t, "game.local", host)
	assert.Equal(t, 4000, port)

	cfg.DevURL = "http://game.local"
	cfg.DevPort = 3100
	_, port = m.endpoint(true)
	assert.Equal(t, 3100, port, "falls back to the configured port")
}

func TestIsRunningNeedsContainerAndPort(t *testing.T) {
	containers := &fakeContainers{}
	m, cfg, _ := newTestManager(t, containers)
	listen(t, cfg)

	assert.False(t, m.IsRunning(context.Background(), true), "container not running")

	containers.dev = docker.Status{Exists: true, Running: true}
	assert.True(t, m.IsRunning(context.Background(), true))

	containers.prod = docker.Status{Exists: true, Running: true}
	assert.False(t, m.IsRunning(context.Background(), false), "nothing listens on the prod port")

	containers.err = errors.New("docker down")
	assert.False(t, m.IsRunning(context.Background(), true))
}

func TestAllInfo(t *testing.T) {
	containers := &fakeContainers{
		dev:  docker.Status{Exists: true, Running: true, Name: "groucho-the-hunter-dev", State: "running", Health: "healthy"},
		prod: docker.Status{Name: "groucho-the-hunter", State: "not_created", Health: "unknown"},
	}
	m, cfg, _ := newTestManager(t, containers)
	listen(t, cfg)

	infos, err := m.AllInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "development", infos[0].Env)
	assert.True(t, infos[0].Running)
	assert.True(t, infos[0].Healthy)
	assert.Equal(t, cfg.DevURL, infos[0].URL)

	assert.Equal(t, "production", infos[1].Env)
	assert.False(t, infos[1].Running)
	assert.False(t, infos[1].Healthy)
	assert.Equal(t, int32(2), containers.calls.Load())
}

func TestAllInfoPropagatesErrors(t *testing.T) {
	m, _, _ := newTestManager(t, &fakeContainers{err: errors.New("cannot connect to the docker daemon")})
	_, err := m.AllInfo(context.Background())
	assert.EqualError(t, err, "cannot connect to the docker daemon")
}

func TestWaitForGameHealthy(t *testing.T) {
	m, cfg, seen := newTestManager(t, &fakeContainers{})
	listen(t, cfg)

	ok, err := m.WaitForGame(context.Background(), true, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"game.dev.healthy"}, *seen)
}

func TestWaitForGameTimeout(t *testing.T) {
	m, _, seen := newTestManager(t, &fakeContainers{})

	ok, err := m.WaitForGame(context.Background(), false, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"game.prod.unhealthy"}, *seen)
}

func TestWaitForGameCancelled(t *testing.T) {
	m, _, seen := newTestManager(t, &fakeContainers{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := m.WaitForGame(ctx, false, time.Minute)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *seen)
}

func TestPortAvailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	assert.False(t, PortAvailable("127.0.0.1", port))
	assert.True(t, PortAvailable("127.0.0.1", closedPort(t)))
}

func TestRenderStatus(t *testing.T) {
	infos := []Info{
		{
			Env: "development",
			URL: "http://localhost:3000",
			Container: docker.Status{
				Exists: true, Running: true, Name: "groucho-the-hunter-dev", State: "running",
				Health: "healthy", Uptime: 3*time.Hour + 20*time.Minute, Image: "groucho-the-hunter-dev:latest",
				Ports: []string{"0.0.0.0:3000->3000/tcp"},
			},
			Running: true,
			Healthy: true,
		},
		{Env: "production", URL: "http://localhost:8080", Container: docker.Status{State: "not_created"}},
	}
	var buf bytes.Buffer
	RenderStatus(&buf, infos, &System{CPUPercent: 12.34, MemoryPercent: 50, DiskPercent: 71.26})
	out := buf.String()

	assert.Contains(t, out, "Development Environment")
	assert.Contains(t, out, "Production Environment")
	assert.Contains(t, out, "groucho-the-hunter-dev:latest")
	assert.Contains(t, out, "3h 20m")
	assert.Contains(t, out, "0.0.0.0:3000->3000/tcp")
	assert.Contains(t, out, "Not Created")
	assert.Contains(t, out, "Healthy")
	assert.Contains(t, out, "Unhealthy")
	assert.Contains(t, out, "12.3%")
	assert.Contains(t, out, "71.3%")
}

func TestSystemInfo(t *testing.T) {
	sys, err := SystemInfo(context.Background())
	if err != nil {
		t.Skipf("host metrics unavailable: %v", err)
	}
	assert.GreaterOrEqual(t, sys.MemoryPercent, 0.0)
	assert.LessOrEqual(t, sys.MemoryPercent, 100.0)
	assert.LessOrEqual(t, sys.DiskPercent, 100.0)
}
