package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Back    key.Binding
	Reply   key.Binding
	Search  key.Binding
	Tab     key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Refresh key.Binding
	Sync    key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:    key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
	Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Reply:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reply")),
	Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
	NextTab: key.NewBinding(key.WithKeys("]", "right"), key.WithHelp("]", "next category")),
	PrevTab: key.NewBinding(key.WithKeys("[", "left"), key.WithHelp("[", "prev category")),
	Refresh: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh")),
	Sync:    key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "sync")),
	Dismiss: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
