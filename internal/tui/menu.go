package tui

import (
	"io"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

type menuItem struct {
	action *Action
}

func (i menuItem) Title() string {
	if i.action.Key == "" {
		return i.action.Title
	}
	return "[" + i.action.Key + "] " + i.action.Title
}
func (i menuItem) Description() string { return "" }
func (i menuItem) FilterValue() string { return i.action.Title }

// compactDelegate reduces per-item height to 1 line to make list dense
type compactDelegate struct{ list.DefaultDelegate }

func (d compactDelegate) Height() int { return 1 }

// remove extra spacing between rows
func (d compactDelegate) Spacing() int { return 0 }

// Render only the title with a selection marker
func (d compactDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	it := listItem.(menuItem)
	if index == m.Index() {
		_, _ = io.WriteString(w, d.Styles.SelectedTitle.Render("> "+it.Title()))
		return
	}
	_, _ = io.WriteString(w, d.Styles.NormalTitle.Render("  "+it.Title()))
}

func newMenuList(actions []Action, title string) list.Model {
	items := make([]list.Item, 0, len(actions))
	for i := range actions {
		items = append(items, menuItem{action: &actions[i]})
	}

	delegate := compactDelegate{list.NewDefaultDelegate()}
	delegate.Styles.SelectedTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff79c6")).Bold(true)
	delegate.Styles.SelectedDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("#8be9fd"))
	delegate.Styles.NormalTitle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f8f8f2"))
	delegate.Styles.NormalDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))

	l := list.New(items, delegate, 40, len(items)+2)
	l.Title = title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	return l
}
