package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/lu-zhengda/mailtriage/internal/app"
)

type statusBar struct {
	theme         Theme
	message       string
	isError       bool
	toast         *app.Toast
	toastCount    int
	width         int
	readerVisible bool
	canReply      bool
}

func newStatusBar(theme Theme) statusBar {
	return statusBar{theme: theme, message: "Ready"}
}

func (s *statusBar) setMessage(msg string) {
	s.message = msg
	s.isError = false
}

func (s *statusBar) setError(msg string) {
	s.message = msg
	s.isError = true
}

// setToasts shows the newest toast, if any.
func (s *statusBar) setToasts(toasts []app.Toast) {
	s.toastCount = len(toasts)
	if len(toasts) == 0 {
		s.toast = nil
		return
	}
	t := toasts[len(toasts)-1]
	s.toast = &t
}

func (s statusBar) View() string {
	style := s.theme.StatusBar
	left := s.message
	isError := s.isError

	if s.toast != nil {
		left = s.toast.Title
		if s.toast.Body != "" {
			left += ": " + s.toast.Body
		}
		if s.toastCount > 1 {
			left = fmt.Sprintf("[%d] %s", s.toastCount, left)
		}
		isError = s.toast.IsError
	}
	if isError {
		style = style.Foreground(s.theme.Error)
	}

	shortcuts := s.shortcuts()
	left = truncate(left, max(s.width-lipgloss.Width(shortcuts)-4, 10))
	gap := max(s.width-lipgloss.Width(left)-lipgloss.Width(shortcuts)-2, 0)

	content := left + lipgloss.NewStyle().Width(gap).Render("") + s.theme.MutedText.Render(shortcuts)
	return style.Width(s.width).Render(content)
}

func (s statusBar) shortcuts() string {
	base := "j/k:nav  enter:open  [/]:category  /:search  R:refresh  S:sync"
	if s.readerVisible {
		base = "j/k:scroll  esc:back"
		if s.canReply {
			base += "  r:reply"
		}
	}
	if s.toast != nil {
		base += "  x:dismiss"
	}
	return base
}
