package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"groucho/cmd/profile"
	"groucho/internal/chrome"
	"groucho/internal/ui"
)

func newChromeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "chrome",
		Short: "Control the Chrome instance used for game debugging",
	}
	c.AddCommand(newChromeStartCmd(), newChromeStopCmd(), newChromeStatusCmd())
	c.AddCommand(profile.NewProfileCmd(profile.Deps{
		Open: openChrome,
		Confirm: func(label string) bool {
			return confirm(label)
		},
	}))
	return c
}

func openChrome(c *cobra.Command) (*chrome.Manager, func(), error) {
	a, err := newApp(appOptions{})
	if err != nil {
		return nil, nil, err
	}
	return a.chrome, func() { a.Close() }, nil
}

func newChromeStartCmd() *cobra.Command {
	var name, url string
	c := &cobra.Command{
		Use:   "start [-- CHROME_ARGS...]",
		Short: "Launch Chrome with remote debugging",
		Example: `  groucho chrome start
  groucho chrome start --profile qa --url http://localhost:8080
  groucho chrome start -- --auto-open-devtools-for-tabs`,
		Args: func(c *cobra.Command, args []string) error {
			if len(args) > 0 && c.ArgsLenAtDash() != 0 {
				return errors.New("extra Chrome arguments go after --")
			}
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(c, func(ctx context.Context, a *app) error {
				res, err := a.chrome.Start(ctx, name, url, args)
				if err != nil {
					return err
				}
				if res.AlreadyRunning {
					ui.Default.Info("Chrome Running", fmt.Sprintf("debugging is available on port %d", res.Port))
					return nil
				}
				msg := fmt.Sprintf("pid %d, profile '%s', debugging port %d", res.PID, res.Profile, res.Port)
				if !res.DebugReady {
					ui.Default.Warning("Chrome Started", msg+"\nremote debugging did not answer yet")
					return nil
				}
				ui.Default.Success("Chrome Started", msg)
				return nil
			})
		},
	}
	c.Flags().StringVarP(&name, "profile", "p", chrome.DefaultProfile, "profile to launch with")
	c.Flags().StringVar(&url, "url", "", "page to open (default: the development URL)")
	return c
}

func newChromeStopCmd() *cobra.Command {
	var force bool
	c := &cobra.Command{
		Use:   "stop",
		Short: "Stop the Chrome instance started by groucho",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withApp(c, func(ctx context.Context, a *app) error {
				stopped, err := a.chrome.Stop(ctx, force)
				if err != nil {
					return err
				}
				if !stopped {
					ui.Default.Info("Chrome Not Running", "nothing to stop")
					return nil
				}
				ui.Default.Success("Chrome Stopped", "browser closed")
				return nil
			})
		},
	}
	c.Flags().BoolVarP(&force, "force", "f", false, "kill instead of asking Chrome to quit")
	return c
}

func newChromeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Chrome status",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withApp(c, func(ctx context.Context, a *app) error {
				renderChromeStatus(c.OutOrStdout(), a.chrome.Status(ctx))
				return nil
			})
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func renderChromeStatus(w io.Writer, s chrome.Status) {
	pid := "N/A"
	if s.PID > 0 {
		pid = fmt.Sprint(s.PID)
	}
	chromePath := s.ChromePath
	if chromePath == "" {
		chromePath = "not found"
	}

	tbl := table.New("Property", "Value").WithWriter(w)
	tbl.AddRow("Running", yesNo(s.Running))
	tbl.AddRow("PID", pid)
	tbl.AddRow("Debugging Port", s.Port)
	tbl.AddRow("Debugging Available", yesNo(s.DebuggingAvailable))
	if s.Browser != "" {
		tbl.AddRow("Browser", s.Browser)
	}
	tbl.AddRow("Chrome Path", chromePath)
	tbl.AddRow("Profile", s.Profile)
	tbl.AddRow("Profile Path", s.ProfilePath)
	if !s.StartedAt.IsZero() {
		tbl.AddRow("Started", ui.FormatSince(s.StartedAt))
	}
	tbl.Print()

	if s.Running && s.DebuggingAvailable {
		fmt.Fprintf(w, "\nChrome DevTools: http://localhost:%d/json/list\n", s.Port)
	}
}
