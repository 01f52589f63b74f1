package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"groucho/internal/events"
	"groucho/internal/store"
	"groucho/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	var prefix string
	var prune time.Duration
	c := &cobra.Command{
		Use:   "history",
		Short: "Show recorded tooling events",
		Example: `  groucho history --limit 50
  groucho history --event chrome.profile
  groucho history --prune 720h`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withApp(c, func(_ context.Context, a *app) error {
				if a.store == nil {
					return errors.New("event history is not available")
				}
				if prune > 0 {
					n, err := a.store.Prune(prune)
					if err != nil {
						return err
					}
					ui.Default.Printf("Pruned %d entries older than %s\n", n, ui.FormatDuration(prune))
				}
				entries, err := a.store.Recent(limit, prefix)
				if err != nil {
					return err
				}
				renderHistory(c.OutOrStdout(), entries)
				if st, err := a.store.Stats(); err == nil && st.Events > 0 {
					renderStats(c.OutOrStdout(), st)
				} else if err != nil {
					a.log.Debugf("store stats: %v", err)
				}
				return nil
			})
		},
	}
	c.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	c.Flags().StringVarP(&prefix, "event", "e", "", "only events starting with this name")
	c.Flags().DurationVar(&prune, "prune", 0, "delete entries older than this first")
	return c
}

// summary prefers the payload message and falls back to the raw payload.
func summary(raw string) string {
	var p events.Payload
	if err := json.Unmarshal([]byte(raw), &p); err == nil && p.Message != "" {
		return p.Message
	}
	return raw
}

func renderHistory(w io.Writer, entries []store.JournalEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No events recorded.")
		return
	}
	tbl := table.New("When", "Event", "Message").WithWriter(w)
	for _, e := range entries {
		tbl.AddRow(e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Event, summary(e.Payload))
	}
	tbl.Print()
}

func renderStats(w io.Writer, st store.Stats) {
	fmt.Fprintf(w, "\n%d events recorded, %d profile backups catalogued (%s)\n",
		st.Events, st.Backups, ui.FormatBytes(st.BackupBytes))
}
