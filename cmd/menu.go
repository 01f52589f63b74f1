package cmd

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"groucho/cmd/profile"
	"groucho/internal/tui"
	"groucho/internal/ui"
)

const (
	statusRefresh    = 5 * time.Second
	dashboardLogTail = 50
)

func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runDashboard(commandContext(c))
		},
	}
}

// runDashboard shows the TUI and runs handoff actions between sessions.
func runDashboard(ctx context.Context) error {
	a, err := newApp(appOptions{quiet: true})
	if err != nil {
		return err
	}
	defer a.Close()

	opts := tui.Options{
		Title:       "Groucho the Hunter",
		Actions:     dashboardActions(a),
		Bus:         a.bus,
		Status:      func(ctx context.Context) string { return statusLine(ctx, a) },
		StatusEvery: statusRefresh,
	}
	for {
		chosen, err := tui.Run(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if chosen == nil || chosen.Quit {
			return nil
		}
		if err := chosen.Run(ctx, func(s string) { ui.Default.Println(s) }); err != nil {
			ui.Default.Error(chosen.Title, err.Error())
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// logWriter feeds written output to a TUI log function.
type logWriter func(string)

func (f logWriter) Write(p []byte) (int, error) {
	f(string(p))
	return len(p), nil
}

func dashboardActions(a *app) []tui.Action {
	env := func(dev bool, fn func(ctx context.Context, a *app, dev bool) error) func(context.Context, func(string)) error {
		return func(ctx context.Context, _ func(string)) error { return fn(ctx, a, dev) }
	}
	start := func(ctx context.Context, a *app, dev bool) error { return startEnv(ctx, a, dev, false) }
	stop := func(ctx context.Context, a *app, dev bool) error { return stopEnv(ctx, a, dev, false) }
	restart := func(ctx context.Context, a *app, dev bool) error { return a.docker.Restart(ctx, dev) }

	return []tui.Action{
		{Key: "1", Title: "Start development", Run: env(true, start)},
		{Key: "2", Title: "Stop development", Run: env(true, stop)},
		{Key: "3", Title: "Start production", Run: env(false, start)},
		{Key: "4", Title: "Stop production", Run: env(false, stop)},
		{Key: "5", Title: "Restart development", Run: env(true, restart)},
		{Key: "6", Title: "Restart production", Run: env(false, restart)},
		{Key: "b", Title: "Build development", Run: func(ctx context.Context, _ func(string)) error {
			return a.docker.Build(ctx, true, false)
		}},
		{Key: "s", Title: "Status", Run: func(ctx context.Context, log func(string)) error {
			var buf bytes.Buffer
			if err := printStatus(ctx, a, &buf, []bool{true, false}); err != nil {
				return err
			}
			log(buf.String())
			return nil
		}},
		{Key: "l", Title: "Recent logs (development)", Run: func(ctx context.Context, log func(string)) error {
			return a.docker.Logs(ctx, true, false, dashboardLogTail, logWriter(log))
		}},
		{Key: "c", Title: "Start Chrome", Run: func(ctx context.Context, log func(string)) error {
			res, err := a.chrome.Start(ctx, "", "", nil)
			if err != nil {
				return err
			}
			if res.AlreadyRunning {
				log("chrome is already running")
			}
			return nil
		}},
		{Key: "x", Title: "Stop Chrome", Run: func(ctx context.Context, log func(string)) error {
			stopped, err := a.chrome.Stop(ctx, false)
			if err == nil && !stopped {
				log("chrome is not running")
			}
			return err
		}},
		{Key: "h", Title: "Chrome status", Run: func(ctx context.Context, log func(string)) error {
			var buf bytes.Buffer
			renderChromeStatus(&buf, a.chrome.Status(ctx))
			log(buf.String())
			return nil
		}},
		{Key: "p", Title: "Chrome profiles", Run: func(_ context.Context, log func(string)) error {
			profiles, err := a.chrome.ListProfiles()
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			profile.Render(&buf, profiles)
			log(buf.String())
			return nil
		}},
		{Key: "e", Title: "Shell (development)", Handoff: true, Run: func(ctx context.Context, _ func(string)) error {
			return a.docker.Shell(ctx, true)
		}},
		{Key: "C", Title: "Clean all docker resources", Handoff: true, Run: func(ctx context.Context, _ func(string)) error {
			ok, err := tui.ConfirmWithCaptcha("This removes every groucho container, volume and image.", 3)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New("confirmation failed, nothing removed")
			}
			return cleanAll(ctx, a)
		}},
		{Key: "q", Title: "Quit", Quit: true},
	}
}

func statusLine(ctx context.Context, a *app) string {
	part := func(name string, up bool, down string) string {
		if up {
			return name + ":RUN"
		}
		return name + ":" + down
	}
	running := func(dev bool) bool {
		st, err := a.docker.Status(ctx, dev)
		return err == nil && st.Running
	}
	return strings.Join([]string{
		part("Dev", running(true), "--"),
		part("Prod", running(false), "--"),
		part("Chr", a.chrome.IsRunning(ctx), "STOP"),
	}, " | ")
}
