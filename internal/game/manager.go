package game

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"groucho/internal/config"
	"groucho/internal/docker"
	"groucho/internal/eventbus"
	"groucho/internal/events"
	"groucho/internal/util"
)

// ContainerStatus reports the container behind an environment.
// *docker.Manager satisfies it.
type ContainerStatus interface {
	Status(ctx context.Context, dev bool) (docker.Status, error)
}

// Manager watches the game served by each environment.
type Manager struct {
	cfg        *config.Config
	containers ContainerStatus
	bus        *eventbus.Bus
	log        *logrus.Entry

	dialTimeout  time.Duration
	pollInterval time.Duration
}

type Option func(*Manager)

func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

func WithDialTimeout(d time.Duration) Option {
	return func(m *Manager) { m.dialTimeout = d }
}

func NewManager(cfg *config.Config, containers ContainerStatus, bus *eventbus.Bus, opts ...Option) *Manager {
	m := &Manager{
		cfg:          cfg,
		containers:   containers,
		bus:          bus,
		log:          logrus.WithField("process", "game"),
		dialTimeout:  5 * time.Second,
		pollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// endpoint is the host and port the game is served on, taken from the
// environment URL and falling back to the configured port.
func (m *Manager) endpoint(dev bool) (string, int) {
	host, port := "localhost", m.cfg.Port(dev)
	if u, err := url.Parse(m.cfg.URL(dev)); err == nil {
		if h := u.Hostname(); h != "" {
			host = h
		}
		if p, err := strconv.Atoi(u.Port()); err == nil {
			port = p
		}
	}
	return host, port
}

// IsRunning reports whether the container runs and the game port accepts
// connections.
func (m *Manager) IsRunning(ctx context.Context, dev bool) bool {
	st, err := m.containers.Status(ctx, dev)
	if err != nil || !st.Running {
		return false
	}
	host, port := m.endpoint(dev)
	return util.PortOpen(host, port, 2*time.Second)
}

// IsHealthy reports whether the game answers a TCP connection within timeout.
func (m *Manager) IsHealthy(dev bool, timeout time.Duration) bool {
	host, port := m.endpoint(dev)
	return util.PortOpen(host, port, timeout)
}

// Info is the combined view of one environment.
type Info struct {
	Dev       bool
	Env       string
	URL       string
	Port      int
	Container docker.Status
	Running   bool
	Healthy   bool
}

func (m *Manager) Info(ctx context.Context, dev bool) (Info, error) {
	info := Info{
		Dev:  dev,
		Env:  config.EnvLabel(dev),
		URL:  m.cfg.URL(dev),
		Port: m.cfg.Port(dev),
	}
	st, err := m.containers.Status(ctx, dev)
	if err != nil {
		return info, err
	}
	info.Container = st
	info.Running = st.Running
	info.Healthy = m.IsHealthy(dev, m.dialTimeout)
	return info, nil
}

// AllInfo gathers development and production concurrently, in that order.
func (m *Manager) AllInfo(ctx context.Context) ([]Info, error) {
	infos := make([]Info, 2)
	g, ctx := errgroup.WithContext(ctx)
	for i, dev := range []bool{true, false} {
		i, dev := i, dev
		g.Go(func() error {
			info, err := m.Info(ctx, dev)
			infos[i] = info
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// WaitForGame polls until the game accepts connections or timeout elapses,
// then emits game.<env>.healthy or game.<env>.unhealthy.
func (m *Manager) WaitForGame(ctx context.Context, dev bool, timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	host, port := m.endpoint(dev)
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	m.log.Debugf("waiting for %s game at %s", config.EnvLabel(dev), addr)

	for {
		if m.IsHealthy(dev, m.pollInterval) {
			m.emitHealth(dev, true, "game is healthy at "+m.cfg.URL(dev))
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			m.emitHealth(dev, false, "timeout waiting for game at "+m.cfg.URL(dev))
			return false, nil
		case <-ticker.C:
		}
	}
}

func (m *Manager) emitHealth(dev, healthy bool, message string) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(events.GameHealth(dev, healthy), events.Payload{
		Env:     events.EnvName(dev),
		Message: message,
		Fields:  map[string]string{"url": m.cfg.URL(dev)},
	})
}

// PortAvailable reports whether port can still be bound on host.
func PortAvailable(host string, port int) bool {
	if host == "" {
		host = "localhost"
	}
	return util.PortAvailable(host, port)
}
