// Package watch reports edits to the docker compose files on the bus.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rjeczalik/notify"
	"github.com/sirupsen/logrus"

	"groucho/internal/config"
	"groucho/internal/eventbus"
	"groucho/internal/events"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher emits compose.<env>.changed when a compose file is written,
// created, renamed or removed. Bursts within the debounce window collapse
// into one event.
type Watcher struct {
	cfg      *config.Config
	bus      *eventbus.Bus
	log      *logrus.Entry
	debounce time.Duration
	started  chan struct{}
}

func New(cfg *config.Config, bus *eventbus.Bus, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		cfg:      cfg,
		bus:      bus,
		log:      logrus.WithField("process", "watch"),
		debounce: debounce,
		started:  make(chan struct{}),
	}
}

// Started is closed once the watches are in place.
func (w *Watcher) Started() <-chan struct{} { return w.started }

type target struct {
	dev  bool
	path string
}

func canonical(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return filepath.Clean(p)
}

// Run watches the compose files of envs (true is development) until ctx
// ends.
func (w *Watcher) Run(ctx context.Context, envs ...bool) error {
	if len(envs) == 0 {
		envs = []bool{true, false}
	}

	// keyed by canonical directory, then file name
	targets := make(map[string]map[string]target)
	for _, dev := range envs {
		file := w.cfg.ComposeFile(dev)
		dir := canonical(filepath.Dir(file))
		if targets[dir] == nil {
			targets[dir] = make(map[string]target)
		}
		targets[dir][filepath.Base(file)] = target{dev: dev, path: file}
	}

	ch := make(chan notify.EventInfo, 32)
	for dir := range targets {
		if err := notify.Watch(dir, ch, notify.Write, notify.Create, notify.Rename, notify.Remove); err != nil {
			notify.Stop(ch)
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
		w.log.Debugf("watching %s", dir)
	}
	defer notify.Stop(ch)
	close(w.started)

	d := newDebouncer(w.debounce)
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ei := <-ch:
			files := targets[canonical(filepath.Dir(ei.Path()))]
			t, ok := files[filepath.Base(ei.Path())]
			if !ok {
				continue
			}
			w.log.Debugf("%s: %s", ei.Event(), ei.Path())
			d.schedule(ctx, t)
		case p := <-d.fire:
			if d.due(p) {
				w.emit(p.target)
			}
		}
	}
}

type pending struct {
	target
	gen uint64
}

// debouncer collapses bursts per environment. Every schedule starts a fresh
// timer under a new generation and only the latest generation is due, so a
// timer that fired while another edit arrived is dropped.
type debouncer struct {
	delay  time.Duration
	fire   chan pending
	gen    map[bool]uint64
	timers map[bool]*time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:  delay,
		fire:   make(chan pending),
		gen:    make(map[bool]uint64),
		timers: make(map[bool]*time.Timer),
	}
}

func (d *debouncer) schedule(ctx context.Context, t target) {
	d.gen[t.dev]++
	if old := d.timers[t.dev]; old != nil {
		old.Stop()
	}
	p := pending{target: t, gen: d.gen[t.dev]}
	d.timers[t.dev] = time.AfterFunc(d.delay, func() {
		select {
		case d.fire <- p:
		case <-ctx.Done():
		}
	})
}

// due reports whether p is the latest schedule for its environment.
func (d *debouncer) due(p pending) bool {
	if p.gen != d.gen[p.dev] {
		return false
	}
	delete(d.timers, p.dev)
	return true
}

func (d *debouncer) stop() {
	for _, t := range d.timers {
		t.Stop()
	}
}

func (w *Watcher) emit(t target) {
	w.log.Infof("%s compose file changed: %s", config.EnvLabel(t.dev), t.path)
	if w.bus == nil {
		return
	}
	w.bus.Emit(events.ComposeChanged(t.dev), events.Payload{
		Env:     events.EnvName(t.dev),
		Message: filepath.Base(t.path) + " changed",
		Fields:  map[string]string{"path": t.path},
	})
}
