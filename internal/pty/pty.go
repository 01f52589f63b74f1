// Package pty runs interactive commands on a pseudo-terminal wired to the
// local terminal. Unix uses creack/pty, Windows uses ConPTY.
package pty

import (
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Session is a command running on a pseudo-terminal. Reads return io.EOF
// once the command's side of the terminal is gone.
type Session interface {
	io.ReadWriteCloser
	Resize(rows, cols int) error
	Wait() error
}

// drainGrace bounds how long output is drained after the command exits.
const drainGrace = 250 * time.Millisecond

// Run starts name in dir on a pseudo-terminal and attaches the local
// terminal to it until the command exits.
func Run(ctx context.Context, dir, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	s, err := Start(cmd)
	if err != nil {
		return errors.Wrapf(err, "failed to start %s", name)
	}
	defer s.Close()

	if rows, cols, ok := localSize(); ok {
		_ = s.Resize(rows, cols)
	}
	stopResize := watchResize(s)
	defer stopResize()

	waitCh := make(chan error, 1)
	go func() { waitCh <- s.Wait() }()

	outDone, detach, err := Attach(s, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer detach()

	select {
	case <-outDone:
		return <-waitCh
	case werr := <-waitCh:
		select {
		case <-outDone:
		case <-time.After(drainGrace):
		}
		return werr
	}
}

func localSize() (rows, cols int, ok bool) {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0, 0, false
	}
	cols, rows, err := term.GetSize(fd)
	if err != nil {
		return 0, 0, false
	}
	return rows, cols, true
}
