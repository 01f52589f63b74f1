package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"groucho/cmd/profile"
	"groucho/internal/config"
	"groucho/internal/game"
	"groucho/internal/ui"
)

const gameReadyTimeout = 30 * time.Second

// envFlags are the mutually exclusive --dev/--prod switches. Development
// is the default.
type envFlags struct {
	dev  bool
	prod bool
}

func (f *envFlags) register(c *cobra.Command) {
	c.Flags().BoolVar(&f.dev, "dev", false, "use the development environment (default)")
	c.Flags().BoolVar(&f.prod, "prod", false, "use the production environment")
	c.MarkFlagsMutuallyExclusive("dev", "prod")
}

func (f *envFlags) isDev() bool { return !f.prod }

// envs lists the selected environments; both when neither flag is set.
func (f *envFlags) envs() []bool {
	switch {
	case f.dev:
		return []bool{true}
	case f.prod:
		return []bool{false}
	default:
		return []bool{true, false}
	}
}

// confirm asks a yes/no question; swapped in tests.
var confirm = profile.PromptConfirm

func newStartCmd() *cobra.Command {
	var env envFlags
	var build bool
	c := &cobra.Command{
		Use:   "start",
		Short: "Start the game environment",
		Example: `  groucho start --dev
  groucho start --prod --build`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withDocker(c, func(ctx context.Context, a *app) error {
				return startEnv(ctx, a, env.isDev(), build)
			})
		},
	}
	env.register(c)
	c.Flags().BoolVarP(&build, "build", "b", false, "build images before starting")
	return c
}

func startEnv(ctx context.Context, a *app, dev, build bool) error {
	label := config.EnvLabel(dev)
	ui.Default.Printf("Starting %s environment...\n", label)

	started, err := a.docker.Start(ctx, dev, build)
	if err != nil {
		return errors.Wrapf(err, "%s start failed", label)
	}
	if !started {
		ui.Default.Info("Already Running", fmt.Sprintf("%s environment is running at %s", label, a.cfg.URL(dev)))
		return nil
	}

	ready, err := a.game.WaitForGame(ctx, dev, gameReadyTimeout)
	if err != nil {
		return err
	}
	if !ready {
		ui.Default.Warning("Game Not Responding", fmt.Sprintf("container is up but %s does not answer yet", a.cfg.URL(dev)))
		return nil
	}
	ui.Default.Success("Environment Started", fmt.Sprintf("%s environment is ready at %s", label, a.cfg.URL(dev)))
	return nil
}

func newStopCmd() *cobra.Command {
	var env envFlags
	var volumes bool
	c := &cobra.Command{
		Use:   "stop",
		Short: "Stop the game environment",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withDocker(c, func(ctx context.Context, a *app) error {
				return stopEnv(ctx, a, env.isDev(), volumes)
			})
		},
	}
	env.register(c)
	c.Flags().BoolVar(&volumes, "volumes", false, "also remove volumes")
	return c
}

func stopEnv(ctx context.Context, a *app, dev, volumes bool) error {
	label := config.EnvLabel(dev)
	stopped, err := a.docker.Stop(ctx, dev, volumes)
	if err != nil {
		return errors.Wrapf(err, "%s stop failed", label)
	}
	if !stopped {
		ui.Default.Info("Not Running", label+" environment is not running")
		return nil
	}
	ui.Default.Success("Environment Stopped", label+" environment stopped")
	return nil
}

func newRestartCmd() *cobra.Command {
	var env envFlags
	c := &cobra.Command{
		Use:   "restart",
		Short: "Restart the game environment",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withDocker(c, func(ctx context.Context, a *app) error {
				dev := env.isDev()
				if err := a.docker.Restart(ctx, dev); err != nil {
					return errors.Wrapf(err, "%s restart failed", config.EnvLabel(dev))
				}
				ui.Default.Success("Environment Restarted", fmt.Sprintf("%s environment is back at %s", config.EnvLabel(dev), a.cfg.URL(dev)))
				return nil
			})
		},
	}
	env.register(c)
	return c
}

func newStatusCmd() *cobra.Command {
	var env envFlags
	c := &cobra.Command{
		Use:   "status",
		Short: "Show environment status",
		Long:  "Show container, health and host usage for one environment, or both when no flag is given.",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withDocker(c, func(ctx context.Context, a *app) error {
				return printStatus(ctx, a, c.OutOrStdout(), env.envs())
			})
		},
	}
	env.register(c)
	return c
}

func printStatus(ctx context.Context, a *app, w io.Writer, envs []bool) error {
	var infos []game.Info
	if len(envs) == 2 {
		all, err := a.game.AllInfo(ctx)
		if err != nil {
			return err
		}
		infos = all
	} else {
		info, err := a.game.Info(ctx, envs[0])
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}

	var sys *game.System
	if s, err := game.SystemInfo(ctx); err == nil {
		sys = &s
	} else {
		a.log.Debugf("host usage unavailable: %v", err)
	}
	game.RenderStatus(w, infos, sys)
	return nil
}

func newLogsCmd() *cobra.Command {
	var env envFlags
	var follow bool
	var tail int
	c := &cobra.Command{
		Use:   "logs",
		Short: "Show service logs",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withDocker(c, func(ctx context.Context, a *app) error {
				err := a.docker.Logs(ctx, env.isDev(), follow, tail, c.OutOrStdout())
				// following ends with Ctrl+C
				if follow && ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
	env.register(c)
	c.Flags().BoolVarP(&follow, "follow", "f", false, "follow log output")
	c.Flags().IntVar(&tail, "tail", 100, "number of lines to show from the end")
	return c
}

func newExecCmd() *cobra.Command {
	var env envFlags
	c := &cobra.Command{
		Use:     "exec COMMAND",
		Short:   "Run a command in the service container",
		Example: `  groucho exec "npm run lint"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withDocker(c, func(ctx context.Context, a *app) error {
				res, err := a.docker.Exec(ctx, env.isDev(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(c.OutOrStdout(), res.Stdout)
				fmt.Fprint(c.ErrOrStderr(), res.Stderr)
				if res.ExitCode != 0 {
					return errors.Errorf("command exited with status %d", res.ExitCode)
				}
				return nil
			})
		},
	}
	env.register(c)
	return c
}

func newShellCmd() *cobra.Command {
	var env envFlags
	c := &cobra.Command{
		Use:   "shell",
		Short: "Open an interactive shell in the service container",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withDocker(c, func(ctx context.Context, a *app) error {
				return a.docker.Shell(ctx, env.isDev())
			})
		},
	}
	env.register(c)
	return c
}

func newBuildCmd() *cobra.Command {
	var env envFlags
	var noCache bool
	c := &cobra.Command{
		Use:   "build",
		Short: "Build the environment images",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withDocker(c, func(ctx context.Context, a *app) error {
				dev := env.isDev()
				ui.Default.Printf("Building %s images...\n", config.EnvLabel(dev))
				if err := a.docker.Build(ctx, dev, noCache); err != nil {
					return err
				}
				ui.Default.Success("Build Complete", config.EnvLabel(dev)+" images built")
				return nil
			})
		},
	}
	env.register(c)
	c.Flags().BoolVar(&noCache, "no-cache", false, "build without the layer cache")
	return c
}

func newCleanCmd() *cobra.Command {
	var force bool
	c := &cobra.Command{
		Use:   "clean",
		Short: "Remove all groucho containers, volumes and images",
		Long:  "Stops and removes the containers, volumes and images of both environments. This cannot be undone.",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if !force && !confirm("Remove all groucho containers, volumes and images") {
				ui.Default.Println("Cancelled")
				return nil
			}
			return withDocker(c, cleanAll)
		},
	}
	c.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation")
	return c
}

func cleanAll(ctx context.Context, a *app) error {
	ui.Default.Println("Cleaning docker resources...")
	if err := a.docker.Clean(ctx); err != nil {
		return err
	}
	ui.Default.Success("Clean Complete", "containers, volumes and images removed")
	return nil
}
