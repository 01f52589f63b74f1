package cmd

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"groucho/internal/chrome"
	"groucho/internal/config"
	"groucho/internal/docker"
	"groucho/internal/eventbus"
	"groucho/internal/events"
	"groucho/internal/game"
	"groucho/internal/history"
	"groucho/internal/logging"
	"groucho/internal/pty"
	"groucho/internal/store"
)

// app wires the managers of one invocation around a shared bus.
type app struct {
	cfg    *config.Config
	bus    *eventbus.Bus
	store  *store.Store
	docker *docker.Manager
	chrome *chrome.Manager
	game   *game.Manager
	log    *logrus.Entry

	logFile   io.Closer
	detach    eventbus.Unsubscribe
	onCleanup func(reason string)
	closeOnce sync.Once
	closeErr  error
}

type appOptions struct {
	// quiet keeps log output off the terminal, for the TUI
	quiet bool
}

// runner and engine are swapped in tests.
var (
	newRunner = func() docker.Runner { return docker.NewExecRunner() }
	newEngine = func() docker.Engine { return docker.NewSDKEngine() }
)

func newApp(opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logFile, err := logging.Setup(logging.Options{
		Level:   cfg.LogLevel,
		Verbose: verbose,
		File:    cfg.LogFile(),
		Quiet:   opts.quiet,
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logFile: logFile, log: logging.For("cli")}
	if err := cfg.Validate(); err != nil {
		a.log.Debug(err)
	}
	if isProject(cfg) {
		if err := history.Default().Touch(cfg.ProjectRoot); err != nil {
			a.log.Debugf("project history: %v", err)
		}
	}

	a.bus = eventbus.New(eventbus.WithErrorHook(logging.BusHook(logging.For("eventbus"))))
	eventbus.SetDefault(a.bus)

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		a.log.Warnf("event history disabled: %v", err)
	} else {
		a.store = st
		a.detach = st.Attach(a.bus, events.ToolingPatterns()...)
	}

	a.docker = docker.NewManager(cfg, newRunner(), newEngine(), a.bus, docker.WithAttach(pty.Run))
	a.chrome = chrome.NewManager(cfg, a.bus, chrome.WithStore(a.store))
	a.game = game.NewManager(cfg, a.docker, a.bus)

	a.onCleanup = func(reason string) {
		a.log.Debugf("cleanup requested: %s", reason)
		_ = a.Close()
	}
	if err := events.Process.SubscribeOnceAsync(events.CleanupRequested, a.onCleanup); err != nil {
		a.log.Debugf("cleanup hook: %v", err)
	}
	return a, nil
}

// Close releases the app once; later calls return the first result.
func (a *app) Close() error {
	a.closeOnce.Do(func() { a.closeErr = a.release() })
	return a.closeErr
}

func (a *app) release() error {
	if a.onCleanup != nil {
		_ = events.Process.Unsubscribe(events.CleanupRequested, a.onCleanup)
	}
	if a.detach != nil {
		a.detach()
	}
	if err := a.docker.Close(); err != nil {
		a.log.Debugf("closing docker client: %v", err)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Debugf("closing store: %v", err)
		}
	}
	a.bus.Dispose()
	return a.logFile.Close()
}

func commandContext(c *cobra.Command) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withApp runs fn with a freshly wired app and closes it afterwards.
func withApp(c *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	return runWithApp(commandContext(c), fn)
}

func runWithApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// withDocker is withApp for commands that need the docker daemon.
func withDocker(c *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	return runWithDocker(commandContext(c), fn)
}

func runWithDocker(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	return runWithApp(ctx, func(ctx context.Context, a *app) error {
		if err := a.docker.Ping(ctx); err != nil {
			return err
		}
		return fn(ctx, a)
	})
}
