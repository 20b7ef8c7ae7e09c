package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type searchQueryMsg struct {
	query string
}

type closeSearchMsg struct{}

// searchModel is the query prompt. Results are shown in the inbox under
// the search tab.
type searchModel struct {
	theme  Theme
	input  textinput.Model
	active bool
	width  int
}

func newSearch(theme Theme) searchModel {
	ti := textinput.New()
	ti.Placeholder = "Search by meaning, e.g. \"interviews next week\""
	ti.Prompt = "/ "
	ti.CharLimit = 256
	return searchModel{theme: theme, input: ti}
}

func (s searchModel) Update(msg tea.Msg) (searchModel, tea.Cmd) {
	if !s.active {
		return s, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Back):
			return s, func() tea.Msg { return closeSearchMsg{} }
		case key.Matches(msg, keys.Enter):
			q := s.input.Value()
			return s, func() tea.Msg { return searchQueryMsg{query: q} }
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s searchModel) View() string {
	if !s.active {
		return ""
	}
	help := s.theme.MutedText.Render("enter:search  esc:cancel  (empty query clears results)")
	return s.input.View() + "\n" + help
}

// Open shows the prompt pre-filled with the current query.
func (s *searchModel) Open(query string) {
	s.active = true
	s.input.SetValue(query)
	s.input.CursorEnd()
	s.input.Focus()
}

func (s *searchModel) Close() {
	s.active = false
	s.input.Blur()
}

func (s *searchModel) SetSize(w int) {
	s.width = w
	s.input.Width = max(w-4, 10)
}

func (s searchModel) IsActive() bool {
	return s.active
}
