package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"groucho/internal/config"
	"groucho/internal/history"
	"groucho/internal/ui"
)

var (
	// version is set at build time with -ldflags "-X groucho/cmd.version=..."
	version = "dev"
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "groucho",
	Short: "Development tooling for Groucho the Hunter",
	Long: `Groucho CLI manages the docker environments, the debugging Chrome instance
and the browser profiles of Groucho the Hunter.

Run without a command for the interactive menu, or "groucho menu" for the dashboard.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(c *cobra.Command, _ []string) error {
		return runMainMenu(commandContext(c))
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("Groucho CLI version {{.Version}}\n")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) logging")

	rootCmd.AddCommand(subcommands()...)
}

func subcommands() []*cobra.Command {
	return []*cobra.Command{
		newStartCmd(),
		newStopCmd(),
		newRestartCmd(),
		newStatusCmd(),
		newLogsCmd(),
		newExecCmd(),
		newShellCmd(),
		newBuildCmd(),
		newCleanCmd(),
		newMenuCmd(),
		newWatchCmd(),
		newHistoryCmd(),
		newChromeCmd(),
	}
}

// ExecuteContext runs the command tree; ctx is cancelled on shutdown.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// isProject reports whether cfg points at a directory groucho can manage.
func isProject(cfg *config.Config) bool {
	if cfg.Exists() {
		return true
	}
	_, err := os.Stat(cfg.ComposeDev)
	return err == nil
}

type menuEntry struct {
	label string
	run   func(ctx context.Context) error
}

func appEntry(label string, fn func(ctx context.Context, a *app) error) menuEntry {
	return menuEntry{label: label, run: func(ctx context.Context) error { return runWithApp(ctx, fn) }}
}

func envEntry(label string, fn func(ctx context.Context, a *app) error) menuEntry {
	return menuEntry{label: label, run: func(ctx context.Context) error { return runWithDocker(ctx, fn) }}
}

func mainMenu() []menuEntry {
	return []menuEntry{
		envEntry("Start development", func(ctx context.Context, a *app) error { return startEnv(ctx, a, true, false) }),
		envEntry("Stop development", func(ctx context.Context, a *app) error { return stopEnv(ctx, a, true, false) }),
		envEntry("Start production", func(ctx context.Context, a *app) error { return startEnv(ctx, a, false, false) }),
		envEntry("Stop production", func(ctx context.Context, a *app) error { return stopEnv(ctx, a, false, false) }),
		envEntry("Status", func(ctx context.Context, a *app) error {
			return printStatus(ctx, a, os.Stdout, []bool{true, false})
		}),
		envEntry("Shell (development)", func(ctx context.Context, a *app) error { return a.docker.Shell(ctx, true) }),
		appEntry("Start Chrome", func(ctx context.Context, a *app) error {
			res, err := a.chrome.Start(ctx, "", "", nil)
			if err == nil {
				ui.Default.Printf("Chrome on debugging port %d (profile '%s')\n", res.Port, res.Profile)
			}
			return err
		}),
		appEntry("Chrome status", func(ctx context.Context, a *app) error {
			renderChromeStatus(os.Stdout, a.chrome.Status(ctx))
			return nil
		}),
		{label: "Dashboard", run: runDashboard},
		{label: "Recent projects", run: func(context.Context) error { return switchProject() }},
		{label: "Exit"},
	}
}

func runMainMenu(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !isProject(cfg) {
		ui.Default.Warning("No Project", fmt.Sprintf("no docker-compose.yml or %s in %s or above", config.ConfigFileName, cfg.ProjectRoot))
		if err := switchProject(); err != nil {
			return err
		}
	}

	entries := mainMenu()
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.label
	}

	for {
		select {
		case <-ctx.Done():
			ui.Default.Println("Cancelled")
			return nil
		default:
		}

		prompt := promptui.Select{
			Label: "Select an option",
			Items: labels,
			Size:  len(labels),
		}
		idx, _, err := prompt.Run()
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}
			return err
		}

		entry := entries[idx]
		if entry.run == nil {
			return nil
		}
		if err := entry.run(ctx); err != nil {
			ui.Default.Error(entry.label, err.Error())
		}
	}
}

// switchProject lets the user pick a recently used project and points the
// rest of the session at it.
func switchProject() error {
	recent := history.Default()
	paths, err := recent.Paths()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		ui.Default.Println("No recent projects found.")
		return nil
	}

	prompt := promptui.SelectWithAdd{
		Label:    "Recent projects (type to search)",
		Items:    paths,
		AddLabel: "Search",
	}
	idx, result, err := prompt.Run()
	if err != nil {
		return err
	}
	if idx == -1 {
		results, err := recent.Search(result)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			ui.Default.Printf("No projects found matching '%s'\n", result)
			return nil
		}
		search := promptui.Select{Label: "Search results", Items: results}
		if _, result, err = search.Run(); err != nil {
			return err
		}
	}

	if _, err := os.Stat(result); err != nil {
		_ = recent.Remove(result)
		return errors.Errorf("project %s no longer exists", result)
	}
	if err := os.Setenv(config.EnvPrefix+"PROJECT_ROOT", result); err != nil {
		return err
	}
	ui.Default.Printf("Using project %s\n", result)
	return nil
}
