package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lu-zhengda/mailtriage/internal/domain"
)

type replyMsg struct {
	thread *domain.Thread
}

type closeReaderMsg struct{}

// readerModel shows the open thread in a scrollable pane.
type readerModel struct {
	theme        Theme
	thread       *domain.Thread
	loading      bool
	content      string
	scrollOffset int
	maxScroll    int
	width        int
	height       int
	focused      bool
	visible      bool
}

func newReader(theme Theme) readerModel {
	return readerModel{theme: theme}
}

func (r readerModel) Update(msg tea.Msg) (readerModel, tea.Cmd) {
	if !r.focused || !r.visible {
		return r, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Up):
			if r.scrollOffset > 0 {
				r.scrollOffset--
			}
		case key.Matches(msg, keys.Down):
			if r.scrollOffset < r.maxScroll {
				r.scrollOffset++
			}
		case key.Matches(msg, keys.Back):
			return r, func() tea.Msg { return closeReaderMsg{} }
		case key.Matches(msg, keys.Reply):
			if t := r.thread; t != nil {
				return r, func() tea.Msg { return replyMsg{thread: t} }
			}
		}
	}
	return r, nil
}

func (r readerModel) View() string {
	if !r.visible || r.width == 0 || r.height == 0 {
		return ""
	}
	if r.thread == nil {
		if r.loading {
			return r.theme.MutedText.Render("Loading thread...")
		}
		return r.theme.MutedText.Render("No thread selected")
	}

	lines := strings.Split(r.content, "\n")
	start := min(r.scrollOffset, len(lines))
	end := min(start+max(r.height, 1), len(lines))
	return strings.Join(lines[start:end], "\n")
}

// ShowThread displays t. Scroll position is kept when the same thread is
// shown again.
func (r *readerModel) ShowThread(t *domain.Thread) {
	if r.thread == nil || t == nil || r.thread.ID != t.ID {
		r.scrollOffset = 0
	}
	r.thread = t
	r.visible = true
	r.render()
}

// ShowLoading opens the pane while a thread is being fetched.
func (r *readerModel) ShowLoading() {
	r.visible = true
	r.loading = true
}

func (r *readerModel) Close() {
	r.visible = false
	r.loading = false
	r.thread = nil
	r.content = ""
	r.scrollOffset = 0
	r.maxScroll = 0
}

func (r *readerModel) SetSize(w, h int) {
	r.width = w
	r.height = h
	r.render()
}

func (r readerModel) IsVisible() bool {
	return r.visible
}

func (r *readerModel) render() {
	r.loading = false
	if r.thread == nil {
		r.content = ""
		r.maxScroll = 0
		return
	}
	r.content = renderThread(r.thread, r.width, r.theme)
	lines := strings.Count(r.content, "\n") + 1
	r.maxScroll = max(lines-max(r.height, 1), 0)
	r.scrollOffset = min(r.scrollOffset, r.maxScroll)
}

func renderMessage(m *domain.Message, width int, theme Theme) string {
	var b strings.Builder
	header := func(label, value string) {
		b.WriteString(theme.MutedText.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	header("From:    ", m.From.String())
	if len(m.To) > 0 {
		header("To:      ", formatAddresses(m.To))
	}
	if !m.Date.IsZero() {
		header("Date:    ", m.Date.Local().Format("Jan 2, 2006 3:04 PM"))
	}
	header("Subject: ", m.Subject)
	if labels := categoryLabels(m.Labels); labels != "" {
		header("Labels:  ", labels)
	}

	b.WriteString(theme.MutedText.Render(strings.Repeat("─", max(width, 20))))
	b.WriteByte('\n')

	body := m.Body
	if body == "" {
		body = m.Snippet
	}
	if body != "" {
		b.WriteByte('\n')
		b.WriteString(body)
	}
	return b.String()
}

// renderThread formats every message, oldest first.
func renderThread(t *domain.Thread, width int, theme Theme) string {
	if len(t.Messages) == 0 {
		return theme.MutedText.Render("Empty thread")
	}
	parts := make([]string, len(t.Messages))
	for i := range t.Messages {
		parts[i] = renderMessage(&t.Messages[i], width, theme)
	}
	sep := "\n" + theme.MutedText.Render(strings.Repeat("─", max(width, 20))) + "\n"
	return strings.Join(parts, sep)
}

func formatAddresses(addrs []domain.Address) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// categoryLabels keeps only labels that name a known category.
func categoryLabels(labels []string) string {
	var out []string
	for _, l := range labels {
		if _, ok := domain.ParseCategory(l); ok {
			out = append(out, l)
		}
	}
	return strings.Join(out, ", ")
}
