package pty

import (
	"io"
	"os"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// Attach pumps in to s and s to out. When in is a terminal it is put in
// raw mode. The returned channel closes when the output side ends; detach
// stops the input pump and restores the terminal.
func Attach(s io.ReadWriter, in *os.File, out io.Writer) (<-chan struct{}, func(), error) {
	restore := func() {}
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		if oldState, err := term.MakeRaw(fd); err == nil {
			restore = func() { _ = term.Restore(fd, oldState) }
		}
	}

	var src io.Reader = in
	cancel := func() {}
	if cr, err := cancelreader.NewReader(in); err == nil {
		src = cr
		cancel = func() {
			cr.Cancel()
			_ = cr.Close()
		}
	}

	go func() { _, _ = io.Copy(s, src) }()

	outDone := make(chan struct{})
	go func() {
		defer close(outDone)
		_, _ = io.Copy(out, s)
	}()

	detach := func() {
		cancel()
		restore()
	}
	return outDone, detach, nil
}
