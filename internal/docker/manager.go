package docker

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"groucho/internal/config"
	"groucho/internal/eventbus"
	"groucho/internal/events"
)

// AttachFunc runs an interactive command wired to the local terminal.
type AttachFunc func(ctx context.Context, dir, name string, args []string) error

// Manager drives the dev and prod environments through `docker compose`,
// with the daemon API for container inspection, exec and image removal.
type Manager struct {
	cfg    *config.Config
	runner Runner
	engine Engine
	bus    *eventbus.Bus
	attach AttachFunc
	log    *logrus.Entry

	pollInterval time.Duration
	settleDelay  time.Duration
	startTimeout time.Duration
	now          func() time.Time
}

type Option func(*Manager)

// WithAttach sets how interactive shells are attached to the terminal.
func WithAttach(f AttachFunc) Option {
	return func(m *Manager) { m.attach = f }
}

// WithTiming overrides the health polling interval, the pause after a
// container turns healthy, and the start timeout.
func WithTiming(poll, settle, timeout time.Duration) Option {
	return func(m *Manager) {
		m.pollInterval = poll
		m.settleDelay = settle
		m.startTimeout = timeout
	}
}

// WithClock replaces time.Now for uptime calculation.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(cfg *config.Config, runner Runner, engine Engine, bus *eventbus.Bus, opts ...Option) *Manager {
	m := &Manager{
		cfg:          cfg,
		runner:       runner,
		engine:       engine,
		bus:          bus,
		log:          logrus.WithField("process", "docker"),
		pollInterval: time.Second,
		settleDelay:  2 * time.Second,
		startTimeout: 60 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) composeArgs(dev bool, args ...string) []string {
	return append([]string{"compose", "-f", m.cfg.ComposeFile(dev)}, args...)
}

func (m *Manager) ensureComposeFile(dev bool) error {
	file := m.cfg.ComposeFile(dev)
	if _, err := os.Stat(file); err != nil {
		return errors.Wrap(ErrComposeFileMissing, file)
	}
	return nil
}

// compose runs a compose subcommand and turns a non-zero exit into an error.
func (m *Manager) compose(ctx context.Context, dev bool, args ...string) (Result, error) {
	full := m.composeArgs(dev, args...)
	m.log.Debugf("running %s", describe(full))
	res, err := m.runner.Run(ctx, m.cfg.ProjectRoot, full)
	if err != nil {
		return res, errors.Wrapf(err, "failed to run %s", describe(full))
	}
	if res.ExitCode != 0 {
		return res, &CommandError{Args: full, ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, nil
}

func (m *Manager) emit(dev bool, verb, message string) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(events.Docker(dev, verb), events.Payload{
		Env:     events.EnvName(dev),
		Message: message,
		Fields:  map[string]string{"container": m.cfg.ContainerName(dev)},
	})
}

// Ping checks that the docker daemon answers.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.engine.Ping(ctx); err != nil {
		return errors.Wrap(ErrDaemonUnavailable, err.Error())
	}
	return nil
}

// Close releases the daemon connection.
func (m *Manager) Close() error {
	return m.engine.Close()
}

// Status inspects the environment's container.
func (m *Manager) Status(ctx context.Context, dev bool) (Status, error) {
	st, err := m.engine.Inspect(ctx, m.cfg.ContainerName(dev))
	if err != nil {
		return Status{}, err
	}
	if st.Running && !st.StartedAt.IsZero() {
		st.Uptime = m.now().Sub(st.StartedAt)
	}
	return st, nil
}

// Start brings the environment up and waits for it to become healthy. It
// returns false when the container was already running.
func (m *Manager) Start(ctx context.Context, dev, build bool) (bool, error) {
	if err := m.ensureComposeFile(dev); err != nil {
		return false, err
	}
	st, err := m.Status(ctx, dev)
	if err != nil {
		return false, err
	}
	if st.Running {
		m.log.Infof("container %s is already running", st.Name)
		return false, nil
	}

	args := []string{"up", "-d"}
	if build {
		args = append(args, "--build")
	}
	if _, err := m.compose(ctx, dev, args...); err != nil {
		return false, errors.Wrapf(err, "failed to start %s environment", config.EnvLabel(dev))
	}

	healthy, err := m.WaitForContainer(ctx, dev, m.startTimeout)
	if err != nil {
		return false, err
	}
	if !healthy {
		return false, ErrNotHealthy
	}

	m.emit(dev, events.Started, config.EnvLabel(dev)+" environment started at "+m.cfg.URL(dev))
	return true, nil
}

// Stop takes the environment down, removing volumes when asked. A stopped
// container is only removed when volumes is set. It returns false when
// there was nothing to do.
func (m *Manager) Stop(ctx context.Context, dev, volumes bool) (bool, error) {
	if err := m.ensureComposeFile(dev); err != nil {
		return false, err
	}
	st, err := m.Status(ctx, dev)
	if err != nil {
		return false, err
	}
	if !st.Exists || (!st.Running && !volumes) {
		m.log.Infof("container %s is not running", st.Name)
		return false, nil
	}

	args := []string{"down"}
	if volumes {
		args = append(args, "-v")
	}
	if _, err := m.compose(ctx, dev, args...); err != nil {
		return false, errors.Wrapf(err, "failed to stop %s environment", config.EnvLabel(dev))
	}

	m.emit(dev, events.Stopped, config.EnvLabel(dev)+" environment stopped")
	return true, nil
}

// Restart restarts the services and waits for health again.
func (m *Manager) Restart(ctx context.Context, dev bool) error {
	if err := m.ensureComposeFile(dev); err != nil {
		return err
	}
	if _, err := m.compose(ctx, dev, "restart"); err != nil {
		return errors.Wrapf(err, "failed to restart %s environment", config.EnvLabel(dev))
	}

	healthy, err := m.WaitForContainer(ctx, dev, m.startTimeout)
	if err != nil {
		return err
	}
	if !healthy {
		return ErrNotHealthy
	}

	m.emit(dev, events.Restarted, config.EnvLabel(dev)+" environment restarted")
	return nil
}

// Logs writes the service logs to w, following them until ctx ends when
// follow is set.
func (m *Manager) Logs(ctx context.Context, dev, follow bool, tail int, w io.Writer) error {
	if err := m.ensureComposeFile(dev); err != nil {
		return err
	}
	args := []string{"logs"}
	if follow {
		args = append(args, "-f")
	}
	args = append(args, "--tail", strconv.Itoa(tail))

	full := m.composeArgs(dev, args...)
	if err := m.runner.Stream(ctx, m.cfg.ProjectRoot, full, w, w); err != nil {
		return errors.Wrap(err, "failed to read logs")
	}
	return nil
}

// Exec runs command inside the service container and returns its output.
// A non-zero exit code is not an error.
func (m *Manager) Exec(ctx context.Context, dev bool, command string) (Result, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return Result{}, errors.Wrapf(err, "cannot parse command %q", command)
	}
	if len(argv) == 0 {
		return Result{}, ErrEmptyCommand
	}
	if err := m.requireRunning(ctx, dev); err != nil {
		return Result{}, err
	}

	m.log.Debugf("executing in container: %s", command)
	res, err := m.engine.Exec(ctx, m.cfg.ContainerName(dev), argv)
	if err != nil {
		return res, errors.Wrap(err, "failed to execute command")
	}

	if m.bus != nil {
		m.bus.Emit(events.Docker(dev, events.Executed), events.Payload{
			Env:     events.EnvName(dev),
			Message: command,
			Fields:  map[string]string{"exit_code": strconv.Itoa(res.ExitCode)},
		})
	}
	return res, nil
}

func (m *Manager) requireRunning(ctx context.Context, dev bool) error {
	st, err := m.Status(ctx, dev)
	if err != nil {
		return err
	}
	if !st.Exists {
		return errors.Wrapf(ErrContainerNotFound, "container '%s'", st.Name)
	}
	if !st.Running {
		return errors.Wrapf(ErrContainerNotRunning, "status: %s", st.State)
	}
	return nil
}

// ShellFor picks bash when the container has it and sh otherwise.
func (m *Manager) ShellFor(ctx context.Context, dev bool) (string, error) {
	res, err := m.Exec(ctx, dev, "test -x /bin/bash")
	if err != nil {
		return "", err
	}
	if res.ExitCode == 0 {
		return "/bin/bash", nil
	}
	return "/bin/sh", nil
}

// Shell opens an interactive shell in the service container.
func (m *Manager) Shell(ctx context.Context, dev bool) error {
	if m.attach == nil {
		return errors.New("no terminal attach configured")
	}
	shell, err := m.ShellFor(ctx, dev)
	if err != nil {
		return err
	}
	args := m.composeArgs(dev, "exec", m.cfg.ServiceName(dev), shell)
	m.log.Infof("opening %s in %s", shell, m.cfg.ContainerName(dev))
	return m.attach(ctx, m.cfg.ProjectRoot, "docker", args)
}

// Build rebuilds the images, always pulling newer base images.
func (m *Manager) Build(ctx context.Context, dev, noCache bool) error {
	if err := m.ensureComposeFile(dev); err != nil {
		return err
	}
	args := []string{"build", "--pull"}
	if noCache {
		args = append(args, "--no-cache")
	}
	if _, err := m.compose(ctx, dev, args...); err != nil {
		return errors.Wrapf(err, "failed to build %s images", config.EnvLabel(dev))
	}
	m.emit(dev, events.Built, config.EnvLabel(dev)+" images built")
	return nil
}

// Clean removes containers, volumes and orphans of both environments, then
// the project images. Failures on individual steps are logged and skipped.
func (m *Manager) Clean(ctx context.Context) error {
	for _, dev := range []bool{true, false} {
		if err := m.ensureComposeFile(dev); err != nil {
			m.log.Warnf("skipping %s cleanup: %v", config.EnvLabel(dev), err)
			continue
		}
		if _, err := m.compose(ctx, dev, "down", "-v", "--remove-orphans"); err != nil {
			m.log.Warnf("failed to clean %s environment: %v", config.EnvLabel(dev), err)
			continue
		}
		m.emit(dev, events.Cleaned, config.EnvLabel(dev)+" environment cleaned")
	}

	for _, ref := range m.cfg.Images {
		if err := m.engine.RemoveImage(ctx, ref); err != nil {
			m.log.Debugf("image removal %s: %v", ref, err)
		}
	}
	return ctx.Err()
}

// WaitForContainer polls until the container runs and is healthy (or has no
// healthcheck). It returns false when the container turns unhealthy or the
// timeout elapses.
func (m *Manager) WaitForContainer(ctx context.Context, dev bool, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		st, err := m.Status(ctx, dev)
		if err != nil && ctx.Err() == nil {
			m.log.Debugf("status check failed: %v", err)
		}
		if err == nil && st.Running {
			switch {
			case !st.HasHealthcheck || st.Health == "healthy":
				if !sleepCtx(ctx, m.settleDelay) {
					return false, parentErr(ctx)
				}
				return true, nil
			case st.Health == "unhealthy":
				return false, nil
			}
		}

		select {
		case <-ctx.Done():
			return false, parentErr(ctx)
		case <-ticker.C:
		}
	}
}

// parentErr hides our own timeout: reaching it is a plain "not healthy".
func parentErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
