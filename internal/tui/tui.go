package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"groucho/internal/eventbus"
	"groucho/internal/events"
	"groucho/internal/ui"
)

const (
	maxLogLines     = 200
	visibleLogLines = 8
)

// Action is one menu entry.
type Action struct {
	Key   string
	Title string
	// Run does the work off the UI goroutine; log lines appear under the menu.
	Run func(ctx context.Context, log func(string)) error
	// Handoff actions need the terminal: the menu exits and returns them.
	Handoff bool
	Quit    bool
}

// Options configure Run.
type Options struct {
	Title   string
	Actions []Action
	// Bus feeds tooling events into the log area when set.
	Bus *eventbus.Bus
	// Status renders the line under the title; refreshed every StatusEvery.
	Status      func(ctx context.Context) string
	StatusEvery time.Duration
}

type (
	// printMsg transports printed strings into the update loop
	printMsg string
	doneMsg  struct {
		title string
		err   error
	}
	statusMsg string
	tickMsg   struct{}
)

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8be9fd"))
	logStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))
)

type model struct {
	ctx      context.Context
	opts     Options
	list     list.Model
	spin     spinner.Model
	send     func(tea.Msg)
	byKey    map[string]*Action
	busy     string
	status   string
	chosen   *Action
	quitting bool

	logMu    sync.Mutex
	logLines []string
}

func newModel(ctx context.Context, opts Options) *model {
	m := &model{
		ctx:   ctx,
		opts:  opts,
		list:  newMenuList(opts.Actions, opts.Title),
		spin:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		byKey: make(map[string]*Action),
		send:  func(tea.Msg) {},
	}
	for i := range opts.Actions {
		if k := opts.Actions[i].Key; k != "" {
			m.byKey[k] = &opts.Actions[i]
		}
	}
	return m
}

// Run shows the menu until the user quits or picks a handoff action, which
// is returned. A nil action means quit.
func Run(ctx context.Context, opts Options) (*Action, error) {
	m := newModel(ctx, opts)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	m.send = p.Send

	// printed output goes to the log area while the menu owns the terminal
	ui.Default.Suspend(func(line string) { p.Send(printMsg(line)) })
	defer ui.Default.Resume()

	if opts.Bus != nil {
		var unsubs []eventbus.Unsubscribe
		for _, pattern := range events.ToolingPatterns() {
			unsubs = append(unsubs, opts.Bus.SubscribeNamed(pattern, func(payload any, event string) {
				p.Send(printMsg(formatEvent(event, payload)))
			}))
		}
		defer func() {
			for _, u := range unsubs {
				u()
			}
		}()
	}

	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return m.chosen, nil
}

// formatEvent renders a bus event as one log line.
func formatEvent(event string, payload any) string {
	switch p := payload.(type) {
	case events.Payload:
		if p.Message != "" {
			return fmt.Sprintf("[%s] %s", event, p.Message)
		}
	case string:
		return fmt.Sprintf("[%s] %s", event, p)
	}
	return "[" + event + "]"
}

func (m *model) Init() tea.Cmd {
	return m.refreshStatus()
}

func (m *model) refreshStatus() tea.Cmd {
	if m.opts.Status == nil {
		return nil
	}
	return func() tea.Msg { return statusMsg(m.opts.Status(m.ctx)) }
}

func (m *model) scheduleStatus() tea.Cmd {
	if m.opts.Status == nil || m.opts.StatusEvery <= 0 {
		return nil
	}
	return tea.Tick(m.opts.StatusEvery, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *model) appendLog(s string) {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	for _, part := range strings.Split(s, "\n") {
		line := strings.TrimRight(part, "\r ")
		if strings.TrimSpace(line) == "" {
			continue
		}
		m.logLines = append(m.logLines, line)
	}
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
}

// start runs a non-handoff action in the background.
func (m *model) start(a *Action) (tea.Model, tea.Cmd) {
	switch {
	case a.Quit:
		m.quitting = true
		return m, tea.Quit
	case a.Handoff:
		m.chosen = a
		return m, tea.Quit
	case m.busy != "":
		m.appendLog("busy: " + m.busy)
		return m, nil
	case a.Run == nil:
		return m, nil
	}

	m.busy = a.Title
	m.appendLog(a.Title + "...")
	run := func() tea.Msg {
		err := a.Run(m.ctx, func(line string) { m.send(printMsg(line)) })
		return doneMsg{title: a.Title, err: err}
	}
	return m, tea.Batch(run, m.spin.Tick)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case printMsg:
		m.appendLog(string(msg))
		return m, nil
	case doneMsg:
		m.busy = ""
		if msg.err != nil {
			m.appendLog(fmt.Sprintf("%s failed: %v", msg.title, msg.err))
		} else {
			m.appendLog(msg.title + ": done")
		}
		return m, m.refreshStatus()
	case statusMsg:
		m.status = string(msg)
		return m, m.scheduleStatus()
	case tickMsg:
		return m, m.refreshStatus()
	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		return m, nil
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "enter":
			if itm, ok := m.list.SelectedItem().(menuItem); ok {
				return m.start(itm.action)
			}
			return m, nil
		case "esc", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			m.list.CursorUp()
			return m, nil
		case "down", "j":
			m.list.CursorDown()
			return m, nil
		default:
			if a, ok := m.byKey[key]; ok {
				m.selectAction(a)
				return m.start(a)
			}
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) selectAction(a *Action) {
	for i, it := range m.list.Items() {
		if it.(menuItem).action == a {
			m.list.Select(i)
			return
		}
	}
}

func (m *model) View() string {
	if m.quitting || m.chosen != nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.list.View())
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	if m.busy != "" {
		b.WriteString(m.spin.View() + " " + m.busy + "\n")
	}

	m.logMu.Lock()
	defer m.logMu.Unlock()
	if n := len(m.logLines); n > 0 {
		start := 0
		if n > visibleLogLines {
			start = n - visibleLogLines
		}
		b.WriteString("--- recent ---\n")
		for _, l := range m.logLines[start:] {
			b.WriteString(logStyle.Render(l))
			b.WriteString("\n")
		}
	}
	return b.String()
}
