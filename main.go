package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"groucho/cmd"
	"groucho/internal/events"
	"groucho/internal/ui"
)

func main() {
	// Capture original terminal state (if stdin is a TTY) so we can restore on forced exit.
	var origState *term.State
	if term.IsTerminal(int(os.Stdin.Fd())) {
		if st, err := term.GetState(int(os.Stdin.Fd())); err == nil {
			origState = st
		}
	}
	restore := func() {
		if origState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), origState)
		}
	}
	forceExit := func(code int) {
		restore()
		os.Exit(code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan struct{})
	_ = events.Process.SubscribeOnce(events.ShutdownRequested, func(reason string) {
		logrus.WithField("process", "main").Debugf("shutdown requested: %s", reason)
		cancel()
		close(shutdown)
	})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-sigs
		if ok {
			events.RequestShutdown(sig.String())
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-shutdown:
		// commands get a grace period to release containers and terminals
		select {
		case err = <-done:
		case <-time.After(5 * time.Second):
			events.RequestCleanup("shutdown grace period expired")
			forceExit(130)
		}
	}
	signal.Stop(sigs)
	restore()

	if err != nil && ctx.Err() == nil {
		ui.Default.Error("Error", err.Error())
		os.Exit(1)
	}
}
