//go:build windows

package pty

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/charmbracelet/x/conpty"
)

type conSession struct {
	cpty *conpty.ConPty
	proc *os.Process
}

// Start spawns cmd attached to a new ConPTY.
func Start(cmd *exec.Cmd) (Session, error) {
	if cmd.Err != nil {
		return nil, cmd.Err
	}
	c, err := conpty.New(80, 25, 0)
	if err != nil {
		return nil, err
	}
	pid, _, err := c.Spawn(cmd.Path, cmd.Args, &syscall.ProcAttr{
		Dir: cmd.Dir,
		Env: cmd.Environ(),
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return &conSession{cpty: c, proc: proc}, nil
}

func (s *conSession) Read(b []byte) (int, error)  { return s.cpty.Read(b) }
func (s *conSession) Write(b []byte) (int, error) { return s.cpty.Write(b) }
func (s *conSession) Close() error                { return s.cpty.Close() }

func (s *conSession) Resize(rows, cols int) error {
	return s.cpty.Resize(cols, rows)
}

// Wait waits for the process, then closes the console so pending reads end.
func (s *conSession) Wait() error {
	state, err := s.proc.Wait()
	_ = s.cpty.Close()
	if err != nil {
		return err
	}
	if !state.Success() {
		return fmt.Errorf("exit status %d", state.ExitCode())
	}
	return nil
}

// watchResize polls the console size; Windows has no SIGWINCH.
func watchResize(s Session) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		lastRows, lastCols, _ := localSize()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rows, cols, ok := localSize()
				if ok && (rows != lastRows || cols != lastCols) {
					lastRows, lastCols = rows, cols
					_ = s.Resize(rows, cols)
				}
			}
		}
	}()
	return func() { close(done) }
}
