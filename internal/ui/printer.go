package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Printer serializes terminal output across goroutines. While suspended (a
// TUI owns the terminal) output is handed to the sink instead, if one is set.
type Printer struct {
	mu        sync.Mutex
	out       io.Writer
	suspended bool
	sink      func(line string)
}

// Default is the shared Printer used across the application to ensure all
// packages serialize their output to the terminal.
var Default = NewPrinter(os.Stdout)

func NewPrinter(w io.Writer) *Printer {
	return &Printer{out: w}
}

func (p *Printer) Printf(format string, a ...interface{}) {
	p.write(fmt.Sprintf(format, a...))
}

func (p *Printer) Println(a ...interface{}) {
	p.write(fmt.Sprintln(a...))
}

// PrintBlock prints a potentially multi-line block atomically, ending it with
// a newline.
func (p *Printer) PrintBlock(block string) {
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	p.write(block)
}

func (p *Printer) write(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suspended {
		if p.sink != nil {
			for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
				p.sink(line)
			}
		}
		return
	}
	fmt.Fprint(p.out, s)
}

// Suspend redirects subsequent prints to sink (or drops them when sink is
// nil) until Resume is called.
func (p *Printer) Suspend(sink func(line string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended = true
	p.sink = sink
}

// Resume re-enables printing after Suspend.
func (p *Printer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended = false
	p.sink = nil
}

func (p *Printer) IsSuspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}

var (
	successColor = lipgloss.Color("#04B575")
	errorColor   = lipgloss.Color("#FF5F87")
	warningColor = lipgloss.Color("#FFB86C")
	infoColor    = lipgloss.Color("#7D56F4")
)

func panel(color lipgloss.Color, title, message string) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(color)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1)
	return box.Render(titleStyle.Render(title) + "\n" + message)
}

// Success prints a green panel.
func (p *Printer) Success(title, message string) {
	p.PrintBlock(panel(successColor, "✅ "+title, message))
}

// Error prints a red panel.
func (p *Printer) Error(title, message string) {
	p.PrintBlock(panel(errorColor, "❌ "+title, message))
}

// Warning prints an amber panel.
func (p *Printer) Warning(title, message string) {
	p.PrintBlock(panel(warningColor, "⚠️  "+title, message))
}

// Info prints a purple panel.
func (p *Printer) Info(title, message string) {
	p.PrintBlock(panel(infoColor, "ℹ️  "+title, message))
}
