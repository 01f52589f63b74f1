package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groucho/internal/events"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain executes cmd and any batch it expands to, returning the messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func testActions(ran *[]string) []Action {
	return []Action{
		{Key: "1", Title: "Start Development", Run: func(_ context.Context, log func(string)) error {
			*ran = append(*ran, "start")
			log("container up")
			return nil
		}},
		{Key: "2", Title: "Stop Development", Run: func(context.Context, func(string)) error {
			*ran = append(*ran, "stop")
			return errors.New("not running")
		}},
		{Key: "s", Title: "Open Shell", Handoff: true},
		{Key: "q", Title: "Quit", Quit: true},
	}
}

func TestEnterRunsSelectedAction(t *testing.T) {
	var ran []string
	m := newModel(context.Background(), Options{Title: "Groucho", Actions: testActions(&ran)})
	var sent []tea.Msg
	m.send = func(msg tea.Msg) { sent = append(sent, msg) }

	_, cmd := m.Update(key("enter"))
	assert.Equal(t, "Start Development", m.busy)

	var done *doneMsg
	for _, msg := range drain(cmd) {
		if d, ok := msg.(doneMsg); ok {
			done = &d
		}
	}
	require.NotNil(t, done)
	assert.Equal(t, []string{"start"}, ran)
	assert.Equal(t, []tea.Msg{printMsg("container up")}, sent)

	m.Update(sent[0])
	m.Update(*done)
	assert.Empty(t, m.busy)
	view := m.View()
	assert.Contains(t, view, "container up")
	assert.Contains(t, view, "Start Development: done")
}

func TestShortcutKeyAndFailure(t *testing.T) {
	var ran []string
	m := newModel(context.Background(), Options{Actions: testActions(&ran)})

	_, cmd := m.Update(key("2"))
	assert.Equal(t, 1, m.list.Index(), "shortcut moves the selection")
	for _, msg := range drain(cmd) {
		if d, ok := msg.(doneMsg); ok {
			m.Update(d)
		}
	}
	assert.Equal(t, []string{"stop"}, ran)
	assert.Contains(t, m.View(), "Stop Development failed: not running")
}

func TestBusyIgnoresSecondAction(t *testing.T) {
	var ran []string
	m := newModel(context.Background(), Options{Actions: testActions(&ran)})
	m.busy = "Start Development"

	_, cmd := m.Update(key("2"))
	assert.Nil(t, cmd)
	assert.Empty(t, ran)
	assert.Contains(t, m.View(), "busy: Start Development")
}

func TestHandoffAndQuit(t *testing.T) {
	var ran []string
	m := newModel(context.Background(), Options{Actions: testActions(&ran)})

	_, cmd := m.Update(key("s"))
	require.NotNil(t, m.chosen)
	assert.Equal(t, "Open Shell", m.chosen.Title)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	m = newModel(context.Background(), Options{Actions: testActions(&ran)})
	_, cmd = m.Update(key("q"))
	assert.Nil(t, m.chosen)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestStatusRefresh(t *testing.T) {
	calls := 0
	m := newModel(context.Background(), Options{
		Status: func(context.Context) string {
			calls++
			return fmt.Sprintf("Dev:RUN | Prod:-- | Chr:STOP (%d)", calls)
		},
	})
	msgs := drain(m.Init())
	require.Len(t, msgs, 1)
	m.Update(msgs[0])
	assert.Contains(t, m.View(), "Dev:RUN | Prod:-- | Chr:STOP (1)")
}

func TestLogIsCapped(t *testing.T) {
	m := newModel(context.Background(), Options{})
	for i := 0; i < maxLogLines+20; i++ {
		m.Update(printMsg(fmt.Sprintf("line %d\n\n", i)))
	}
	assert.Len(t, m.logLines, maxLogLines)
	assert.Equal(t, fmt.Sprintf("line %d", maxLogLines+19), m.logLines[len(m.logLines)-1])

	view := m.View()
	assert.Equal(t, visibleLogLines, strings.Count(view, "line "))
}

func TestFormatEvent(t *testing.T) {
	assert.Equal(t, "[docker.dev.started] up", formatEvent("docker.dev.started", events.Payload{Message: "up"}))
	assert.Equal(t, "[chrome.stopped] bye", formatEvent("chrome.stopped", "bye"))
	assert.Equal(t, "[game.dev.healthy]", formatEvent("game.dev.healthy", 42))
}

func TestConfirm(t *testing.T) {
	ok, err := confirm(strings.NewReader("wrong\nABC123\n"), "Delete everything?", "ABC123", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = confirm(strings.NewReader("a\nb\n"), "Delete everything?", "ABC123", 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = confirm(strings.NewReader(""), "Delete everything?", "ABC123", 2)
	assert.Error(t, err)
}

func TestGenToken(t *testing.T) {
	tok, err := genToken(6)
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, tok)
}
