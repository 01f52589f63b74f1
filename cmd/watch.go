package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"groucho/internal/eventbus"
	"groucho/internal/events"
	"groucho/internal/ui"
	"groucho/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var env envFlags
	var debounce time.Duration
	c := &cobra.Command{
		Use:   "watch",
		Short: "Report docker compose file changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withApp(c, func(ctx context.Context, a *app) error {
				defer a.bus.SubscribeNamed(eventbus.Wildcard(events.NamespaceCompose), printChange)()

				w := watch.New(a.cfg, a.bus, debounce)
				ui.Default.Println("Watching compose files, press Ctrl+C to stop")
				return w.Run(ctx, env.envs()...)
			})
		},
	}
	env.register(c)
	c.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before reporting")
	return c
}

func printChange(payload any, event string) {
	if p, ok := payload.(events.Payload); ok {
		ui.Default.Printf("%s  %s: %s\n", time.Now().Format("15:04:05"), event, p.Message)
		return
	}
	ui.Default.Printf("%s  %s\n", time.Now().Format("15:04:05"), event)
}
