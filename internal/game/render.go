package game

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rodaine/table"

	"groucho/internal/ui"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00BFFF"))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
)

// RenderStatus writes one property table per environment. Host usage rows
// are added to running environments when sys is given.
func RenderStatus(w io.Writer, infos []Info, sys *System) {
	for _, info := range infos {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render(title(info.Env)+" Environment"))

		tbl := table.New("Property", "Value").WithWriter(w)
		tbl.AddRow("URL", info.URL)

		c := info.Container
		if c.Exists {
			state := title(c.State)
			if c.Running {
				state = goodStyle.Render(state)
			} else {
				state = badStyle.Render(state)
			}
			tbl.AddRow("Container Status", state)
			tbl.AddRow("Container Name", c.Name)
			tbl.AddRow("Health", c.Health)
			if c.Uptime > 0 {
				tbl.AddRow("Uptime", ui.FormatDuration(c.Uptime))
			}
			if c.Image != "" {
				tbl.AddRow("Image", c.Image)
			}
			if len(c.Ports) > 0 {
				tbl.AddRow("Port Mappings", strings.Join(c.Ports, ", "))
			}
		} else {
			tbl.AddRow("Container Status", badStyle.Render("Not Created"))
		}

		if info.Healthy {
			tbl.AddRow("Health Check", goodStyle.Render("✓ Healthy"))
		} else {
			tbl.AddRow("Health Check", badStyle.Render("✗ Unhealthy"))
		}

		if sys != nil && c.Running {
			tbl.AddRow("Host CPU Usage", fmt.Sprintf("%.1f%%", sys.CPUPercent))
			tbl.AddRow("Host Memory Usage", fmt.Sprintf("%.1f%%", sys.MemoryPercent))
			tbl.AddRow("Host Disk Usage", fmt.Sprintf("%.1f%%", sys.DiskPercent))
		}
		tbl.Print()
	}
}

func title(s string) string {
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
