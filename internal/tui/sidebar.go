package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lu-zhengda/mailtriage/internal/cache"
	"github.com/lu-zhengda/mailtriage/internal/domain"
)

// categorySelectedMsg is sent when the user picks a category tab.
type categorySelectedMsg struct {
	category domain.Category
}

// sidebarModel lists the category tabs with their load state.
type sidebarModel struct {
	theme   Theme
	tabs    []cache.State
	active  domain.Category
	cursor  int
	account string
	width   int
	height  int
	focused bool
}

func newSidebar(theme Theme) sidebarModel {
	return sidebarModel{theme: theme, active: domain.CategoryAll}
}

// SetTabs replaces the tab states and keeps the cursor in range.
func (s *sidebarModel) SetTabs(tabs []cache.State, active domain.Category) {
	s.tabs = tabs
	s.active = active
	if s.cursor >= len(tabs) {
		s.cursor = max(len(tabs)-1, 0)
	}
}

func (s *sidebarModel) SetSize(w, h int) {
	s.width = w
	s.height = h
}

func (s sidebarModel) Update(msg tea.Msg) (sidebarModel, tea.Cmd) {
	if !s.focused || len(s.tabs) == 0 {
		return s, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Up):
			s.cursor--
			if s.cursor < 0 {
				s.cursor = len(s.tabs) - 1
			}
		case key.Matches(msg, keys.Down):
			s.cursor++
			if s.cursor >= len(s.tabs) {
				s.cursor = 0
			}
		case key.Matches(msg, keys.Enter):
			cat := s.tabs[s.cursor].Category
			return s, selectCategory(cat)
		}
	}
	return s, nil
}

// step returns the category delta tabs away from the active one, wrapping.
func (s sidebarModel) step(delta int) domain.Category {
	if len(s.tabs) == 0 {
		return s.active
	}
	idx := 0
	for i, t := range s.tabs {
		if t.Category == s.active {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(s.tabs)) % len(s.tabs)
	return s.tabs[idx].Category
}

func selectCategory(cat domain.Category) tea.Cmd {
	return func() tea.Msg { return categorySelectedMsg{category: cat} }
}

func (s sidebarModel) View() string {
	var b strings.Builder

	b.WriteString(s.theme.Title.Render("mailtriage"))
	b.WriteString("\n")
	if s.account != "" {
		b.WriteString(s.theme.MutedText.Render(truncate(s.account, max(s.width, 10))))
	}
	b.WriteString("\n")

	for i, t := range s.tabs {
		b.WriteString(s.renderLine(t, i))
		b.WriteString("\n")
	}
	return b.String()
}

func (s sidebarModel) renderLine(t cache.State, idx int) string {
	prefix := "  "
	if t.Category == s.active {
		prefix = "▶ "
	}

	name := string(t.Category)
	if t.Category == domain.CategorySearchResults {
		name = "Search"
	}
	line := prefix + name + " " + s.theme.MutedText.Render(tabBadge(t))

	padded := lipgloss.NewStyle().Width(max(s.width, 10)).Render(line)
	if s.focused && idx == s.cursor {
		return s.theme.Selected.Render(padded)
	}
	return padded
}

// tabBadge summarises a tab's state: item count, loading or failure.
func tabBadge(t cache.State) string {
	switch t.Status() {
	case cache.StatusLoading:
		if t.Loaded {
			return fmt.Sprintf("(%d) …", len(t.Items))
		}
		return "…"
	case cache.StatusLoaded:
		if t.Err != nil {
			return fmt.Sprintf("(%d) !", len(t.Items))
		}
		return fmt.Sprintf("(%d)", len(t.Items))
	case cache.StatusError:
		return "!"
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
