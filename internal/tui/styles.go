package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds every style the TUI renders with. It is built once from
// configuration and passed to each sub-model.
type Theme struct {
	Name string

	Primary lipgloss.Color
	Muted   lipgloss.Color
	Accent  lipgloss.Color
	Error   lipgloss.Color
	Success lipgloss.Color

	Sidebar   lipgloss.Style
	List      lipgloss.Style
	Reader    lipgloss.Style
	StatusBar lipgloss.Style
	Title     lipgloss.Style
	Selected  lipgloss.Style
	Unread    lipgloss.Style
	Marker    lipgloss.Style
	MutedText lipgloss.Style
}

func DefaultTheme() Theme {
	return newTheme("default",
		lipgloss.Color("#7C3AED"),
		lipgloss.Color("#6B7280"),
		lipgloss.Color("#F59E0B"),
		lipgloss.Color("#EF4444"),
		lipgloss.Color("#10B981"),
	)
}

// MonoTheme avoids colour for terminals that render it poorly.
func MonoTheme() Theme {
	t := newTheme("mono", "", "", "", "", "")
	t.Selected = lipgloss.NewStyle().Reverse(true)
	t.Title = lipgloss.NewStyle().Bold(true).Underline(true)
	t.StatusBar = lipgloss.NewStyle().Reverse(true).Padding(0, 1)
	return t
}

// ThemeByName returns the named theme, falling back to the default.
func ThemeByName(name string) Theme {
	if strings.EqualFold(name, "mono") {
		return MonoTheme()
	}
	return DefaultTheme()
}

func newTheme(name string, primary, muted, accent, errColor, success lipgloss.Color) Theme {
	border := func(p1, p2 int) lipgloss.Style {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(p1, p2)
	}
	return Theme{
		Name:    name,
		Primary: primary,
		Muted:   muted,
		Accent:  accent,
		Error:   errColor,
		Success: success,

		Sidebar: border(1, 1),
		List:    border(0, 1),
		Reader:  border(1, 2),
		StatusBar: lipgloss.NewStyle().
			Background(lipgloss.Color("#1F2937")).
			Foreground(lipgloss.Color("#D1D5DB")).
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Foreground(primary).
			Bold(true),
		Selected: lipgloss.NewStyle().
			Background(primary).
			Foreground(lipgloss.Color("#FFFFFF")),
		Unread:    lipgloss.NewStyle().Bold(true),
		Marker:    lipgloss.NewStyle().Foreground(accent),
		MutedText: lipgloss.NewStyle().Foreground(muted),
	}
}
