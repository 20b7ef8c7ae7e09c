package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lu-zhengda/mailtriage/internal/cache"
	"github.com/lu-zhengda/mailtriage/internal/domain"
)

// messageSelectedMsg is sent when the user opens a message.
type messageSelectedMsg struct {
	message domain.Message
}

// inboxModel lists the messages of the active category.
type inboxModel struct {
	theme   Theme
	state   cache.State
	cursor  int
	offset  int
	width   int
	height  int
	focused bool
	now     func() time.Time
}

func newInbox(theme Theme) inboxModel {
	return inboxModel{theme: theme, now: time.Now}
}

func (m inboxModel) Update(msg tea.Msg) (inboxModel, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.adjustScroll()
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.state.Items)-1 {
				m.cursor++
				m.adjustScroll()
			}
		case key.Matches(msg, keys.Enter):
			if sel, ok := m.Selected(); ok {
				return m, func() tea.Msg { return messageSelectedMsg{message: sel} }
			}
		}
	}
	return m, nil
}

func (m inboxModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	items := m.state.Items
	if len(items) == 0 {
		switch m.state.Status() {
		case cache.StatusLoading:
			return m.theme.MutedText.Render("Loading " + string(m.state.Category) + "...")
		case cache.StatusError:
			return lipgloss.NewStyle().Foreground(m.theme.Error).
				Render("Failed to load: " + m.state.Err.Error() + "\nPress R to retry.")
		}
		return m.theme.MutedText.Render("No messages")
	}

	var b strings.Builder
	end := min(m.offset+m.visibleRows(), len(items))
	for i := m.offset; i < end; i++ {
		if i > m.offset {
			b.WriteByte('\n')
		}
		line := m.renderRow(items[i])
		if i == m.cursor && m.focused {
			line = m.theme.Selected.Width(m.width).Render(line)
		}
		b.WriteString(line)
	}
	return b.String()
}

// SetState shows st. The cursor is reset when the category changes.
func (m *inboxModel) SetState(st cache.State) {
	if st.Category != m.state.Category {
		m.cursor = 0
		m.offset = 0
	}
	m.state = st
	m.clampCursor()
}

func (m *inboxModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.adjustScroll()
}

// Selected returns the highlighted message.
func (m inboxModel) Selected() (domain.Message, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Items) {
		return domain.Message{}, false
	}
	return m.state.Items[m.cursor], true
}

func (m inboxModel) visibleRows() int {
	return max(m.height, 1)
}

func (m *inboxModel) adjustScroll() {
	visible := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

func (m *inboxModel) clampCursor() {
	count := len(m.state.Items)
	if count == 0 {
		m.cursor = 0
		m.offset = 0
		return
	}
	if m.cursor >= count {
		m.cursor = count - 1
	}
	m.adjustScroll()
}

func (m inboxModel) renderRow(e domain.Message) string {
	mark := "  "
	if e.HasAttachment {
		mark = m.theme.Marker.Render("@ ")
	}

	date := relativeDate(e.Date, m.now())
	fromWidth := 18
	dateWidth := len(date)
	subjectWidth := max(m.width-fromWidth-dateWidth-6, 10)

	fromCol := lipgloss.NewStyle().Width(fromWidth).Render(truncate(e.From.DisplayName(), fromWidth))
	subjectCol := lipgloss.NewStyle().Width(subjectWidth).Render(truncate(e.Subject, subjectWidth))
	dateCol := m.theme.MutedText.Width(dateWidth).Render(date)

	line := mark + fromCol + "  " + subjectCol + "  " + dateCol
	if !e.IsRead {
		line = m.theme.Unread.Render(line)
	}
	return line
}

func relativeDate(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}
