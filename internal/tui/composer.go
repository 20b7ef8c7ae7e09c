package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lu-zhengda/mailtriage/internal/adapter"
	"github.com/lu-zhengda/mailtriage/internal/domain"
)

type sendReplyMsg struct {
	body string
	cc   []string
}

type cancelComposeMsg struct{}

const (
	fieldCC    = 0
	fieldBody  = 1
	fieldCount = 2
)

// composerModel edits a reply to the open thread. The recipient is fixed
// to the sender of the thread's latest message.
type composerModel struct {
	theme     Theme
	ccInput   textinput.Model
	bodyInput textarea.Model

	activeField int
	to          string
	subject     string

	width   int
	height  int
	visible bool
}

func newComposer(theme Theme) composerModel {
	cc := textinput.New()
	cc.Placeholder = "cc@example.com"
	cc.CharLimit = 500
	cc.Prompt = ""

	body := textarea.New()
	body.Placeholder = "Write your reply..."
	body.SetWidth(40)
	body.SetHeight(6)
	body.CharLimit = 0

	return composerModel{theme: theme, ccInput: cc, bodyInput: body}
}

func (c composerModel) Update(msg tea.Msg) (composerModel, tea.Cmd) {
	if !c.visible {
		return c, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "tab":
			c.activeField = (c.activeField + 1) % fieldCount
			c.updateFocus()
			return c, nil
		case "esc":
			return c, func() tea.Msg { return cancelComposeMsg{} }
		case "ctrl+s":
			body := c.bodyInput.Value()
			if strings.TrimSpace(body) == "" {
				return c, nil
			}
			cc := parseRecipients(c.ccInput.Value())
			return c, func() tea.Msg { return sendReplyMsg{body: body, cc: cc} }
		}
	}

	var cmd tea.Cmd
	switch c.activeField {
	case fieldCC:
		c.ccInput, cmd = c.ccInput.Update(msg)
	case fieldBody:
		c.bodyInput, cmd = c.bodyInput.Update(msg)
	}
	return c, cmd
}

func (c composerModel) View() string {
	if !c.visible {
		return ""
	}

	innerWidth := max(c.width-4, 20)
	inputWidth := max(innerWidth-10, 10)
	c.ccInput.Width = inputWidth
	c.bodyInput.SetWidth(innerWidth)
	c.bodyInput.SetHeight(max(c.height-10, 3))

	label := func(s string) string {
		return c.theme.MutedText.Render(fmt.Sprintf("%-9s", s))
	}

	rows := []string{
		label("To:") + c.to,
		label("CC:") + c.ccInput.View(),
		label("Subject:") + c.subject,
		c.theme.MutedText.Render(strings.Repeat("─", innerWidth)),
		c.bodyInput.View(),
		"",
		c.theme.MutedText.Render("Tab:fields  Ctrl+S:send  Esc:cancel"),
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c.theme.Primary).
		Padding(0, 1).
		Width(c.width - 2)

	return c.theme.Title.Render(" Reply ") + "\n" + box.Render(strings.Join(rows, "\n"))
}

// Reply opens the composer for t, quoting its latest message.
func (c *composerModel) Reply(t *domain.Thread) {
	c.clearFields()
	c.visible = true
	c.subject = t.Subject
	if !strings.HasPrefix(strings.ToLower(c.subject), "re:") {
		c.subject = "Re: " + c.subject
	}
	if latest := t.Latest(); latest != nil {
		c.to = latest.From.String()
		c.bodyInput.SetValue(formatReplyQuote(latest))
	}
	c.activeField = fieldBody
	c.updateFocus()
}

func (c *composerModel) Close() {
	c.visible = false
	c.clearFields()
}

func (c *composerModel) SetSize(w, h int) {
	c.width = w
	c.height = h
}

func (c composerModel) IsVisible() bool {
	return c.visible
}

func (c *composerModel) clearFields() {
	c.to = ""
	c.subject = ""
	c.ccInput.SetValue("")
	c.bodyInput.SetValue("")
}

func (c *composerModel) updateFocus() {
	c.ccInput.Blur()
	c.bodyInput.Blur()
	switch c.activeField {
	case fieldCC:
		c.ccInput.Focus()
	case fieldBody:
		c.bodyInput.Focus()
	}
}

// parseRecipients splits a comma-separated list into bare email addresses.
func parseRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if a := adapter.ParseSenderString(part); a.Email != adapter.UnknownEmail {
			out = append(out, a.Email)
		}
	}
	return out
}

func formatReplyQuote(m *domain.Message) string {
	body := m.Body
	if body == "" {
		body = m.Snippet
	}
	var quoted strings.Builder
	for _, line := range strings.Split(body, "\n") {
		quoted.WriteString("> ")
		quoted.WriteString(line)
		quoted.WriteString("\n")
	}
	return fmt.Sprintf("\n\nOn %s, %s wrote:\n%s", m.Date.Format("Jan 2, 2006"), m.From.String(), quoted.String())
}
