//go:build !windows

package pty

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	creackpty "github.com/creack/pty"
)

type unixSession struct {
	f   *os.File
	cmd *exec.Cmd
}

// Start runs cmd with a new pseudo-terminal as its controlling terminal.
func Start(cmd *exec.Cmd) (Session, error) {
	f, err := creackpty.Start(cmd)
	if err != nil {
		return nil, err
	}
	return &unixSession{f: f, cmd: cmd}, nil
}

func (s *unixSession) Read(b []byte) (int, error) {
	n, err := s.f.Read(b)
	// the master reports EIO once the slave side has closed
	if errors.Is(err, syscall.EIO) {
		err = io.EOF
	}
	return n, err
}

func (s *unixSession) Write(b []byte) (int, error) { return s.f.Write(b) }

func (s *unixSession) Close() error {
	return s.f.Close()
}

func (s *unixSession) Wait() error { return s.cmd.Wait() }

func (s *unixSession) Resize(rows, cols int) error {
	return creackpty.Setsize(s.f, &creackpty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// watchResize follows SIGWINCH until the returned stop func is called.
func watchResize(s Session) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigCh:
				if rows, cols, ok := localSize(); ok {
					_ = s.Resize(rows, cols)
				}
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
