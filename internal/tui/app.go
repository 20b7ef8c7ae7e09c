// Package tui is the Bubble Tea front-end over app.Dashboard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lu-zhengda/mailtriage/internal/app"
	"github.com/lu-zhengda/mailtriage/internal/auth"
	"github.com/lu-zhengda/mailtriage/internal/domain"
)

// ErrSessionExpired is returned by Run when the backend rejected the
// session and the TUI quit.
var ErrSessionExpired = auth.ErrSessionExpired

type pane int

const (
	paneSidebar pane = iota
	paneList
	paneReader
)

const (
	defaultToastTTL = 6 * time.Second
	syncTimeout     = 30 * time.Second
)

// viewChangedMsg is delivered whenever the dashboard's state changes.
type viewChangedMsg struct{}

// sessionExpiredMsg arrives when the session was cleared by a 401 outside
// the dashboard's own fetches.
type sessionExpiredMsg struct{}

type opDoneMsg struct {
	status string
	err    error
}

type replySentMsg struct{}

type toastExpiredMsg struct {
	id int
}

type Options struct {
	Theme    Theme
	Account  string
	ToastTTL time.Duration

	// Redirects, when set, ends the program each time the session is
	// cleared by an unauthorized response.
	Redirects <-chan struct{}
}

type model struct {
	ctx     context.Context
	dash    *app.Dashboard
	changes chan struct{}
	expiry  <-chan struct{}
	theme   Theme
	ttl     time.Duration

	view       app.View
	seenToasts map[int]bool
	expired    bool

	sidebar   sidebarModel
	inbox     inboxModel
	reader    readerModel
	composer  composerModel
	search    searchModel
	statusBar statusBar

	activePane pane
	width      int
	height     int
}

// NewModel creates the root model. It subscribes to dash, so one model
// should be created per dashboard.
func NewModel(ctx context.Context, dash *app.Dashboard, opts Options) model {
	theme := opts.Theme
	if theme.Name == "" {
		theme = DefaultTheme()
	}
	ttl := opts.ToastTTL
	if ttl <= 0 {
		ttl = defaultToastTTL
	}

	changes := make(chan struct{}, 1)
	dash.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	sidebar := newSidebar(theme)
	sidebar.account = opts.Account
	inbox := newInbox(theme)
	inbox.focused = true

	m := model{
		ctx:        ctx,
		dash:       dash,
		changes:    changes,
		expiry:     opts.Redirects,
		theme:      theme,
		ttl:        ttl,
		seenToasts: make(map[int]bool),
		sidebar:    sidebar,
		inbox:      inbox,
		reader:     newReader(theme),
		composer:   newComposer(theme),
		search:     newSearch(theme),
		statusBar:  newStatusBar(theme),
		activePane: paneList,
	}
	m.applyView()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.waitForRedirect(), m.preloadCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.width = msg.Width
		m.resizeSubModels()
		return m, nil

	case viewChangedMsg:
		cmds := m.applyView()
		if m.view.Redirect {
			m.expired = true
			return m, tea.Quit
		}
		return m, tea.Batch(append(cmds, m.waitForChange())...)

	case sessionExpiredMsg:
		m.expired = true
		return m, tea.Quit

	case opDoneMsg:
		switch {
		case msg.err == nil:
			if msg.status != "" {
				m.statusBar.setMessage(msg.status)
			}
		case errors.Is(msg.err, app.ErrUnsupported), errors.Is(msg.err, app.ErrNoThread):
			m.statusBar.setError(msg.err.Error())
		default:
			// The dashboard already raised a toast.
			m.statusBar.setMessage("Ready")
		}
		return m, nil

	case toastExpiredMsg:
		m.dash.Dismiss(msg.id)
		return m, nil

	case categorySelectedMsg:
		m.dash.CloseThread()
		m.setFocus(paneList)
		m.statusBar.setMessage(fmt.Sprintf("Loading %s...", msg.category))
		return m, m.selectCategoryCmd(msg.category)

	case messageSelectedMsg:
		m.statusBar.setMessage("Loading thread...")
		return m, m.selectMessageCmd(msg.message)

	case closeReaderMsg:
		m.dash.CloseThread()
		return m, nil

	case replyMsg:
		if !m.view.Capabilities.Reply {
			m.statusBar.setError("Replying is disabled")
			return m, nil
		}
		m.composer.Reply(msg.thread)
		m.resizeComposer()
		return m, nil

	case sendReplyMsg:
		m.statusBar.setMessage("Sending reply...")
		return m, m.replyCmd(msg.body, msg.cc)

	case replySentMsg:
		m.composer.Close()
		m.statusBar.setMessage("Reply sent")
		return m, nil

	case cancelComposeMsg:
		m.composer.Close()
		return m, nil

	case searchQueryMsg:
		m.search.Close()
		m.setFocus(paneList)
		if msg.query == "" {
			m.statusBar.setMessage("Search cleared")
		} else {
			m.statusBar.setMessage(fmt.Sprintf("Searching: %s", msg.query))
		}
		return m, m.searchCmd(msg.query)

	case closeSearchMsg:
		m.search.Close()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.composer.IsVisible() {
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd
	}
	if m.search.IsActive() {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Search):
		if !m.view.Capabilities.Search {
			m.statusBar.setError("Search is disabled")
			return m, nil
		}
		m.search.Open(m.view.Query)
		m.resizeSearch()
		return m, nil

	case key.Matches(msg, keys.Tab):
		switch {
		case m.reader.IsVisible() && m.activePane == paneList:
			m.setFocus(paneReader)
		case m.reader.IsVisible():
			m.setFocus(paneList)
		case m.activePane == paneSidebar:
			m.setFocus(paneList)
		default:
			m.setFocus(paneSidebar)
		}
		return m, nil

	case key.Matches(msg, keys.NextTab):
		return m, selectCategory(m.sidebar.step(1))

	case key.Matches(msg, keys.PrevTab):
		return m, selectCategory(m.sidebar.step(-1))

	case key.Matches(msg, keys.Refresh):
		m.statusBar.setMessage(fmt.Sprintf("Refreshing %s...", m.view.Active))
		return m, m.refreshCmd()

	case key.Matches(msg, keys.Sync):
		m.statusBar.setMessage("Syncing mailbox...")
		return m, m.syncCmd()

	case key.Matches(msg, keys.Dismiss):
		if n := len(m.view.Toasts); n > 0 {
			m.dash.Dismiss(m.view.Toasts[n-1].ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.activePane {
	case paneSidebar:
		m.sidebar, cmd = m.sidebar.Update(msg)
	case paneList:
		m.inbox, cmd = m.inbox.Update(msg)
	case paneReader:
		m.reader, cmd = m.reader.Update(msg)
	}
	return m, cmd
}

// applyView copies the dashboard snapshot into the sub-models and returns
// expiry timers for toasts not seen before.
func (m *model) applyView() []tea.Cmd {
	v := m.dash.View()
	m.view = v

	m.sidebar.SetTabs(v.Tabs, v.Active)
	m.inbox.SetState(v.ActiveState())
	m.statusBar.setToasts(v.Toasts)
	m.statusBar.canReply = v.Capabilities.Reply

	wasVisible := m.reader.IsVisible()
	switch {
	case v.Thread != nil:
		m.reader.ShowThread(v.Thread)
	case v.ThreadLoading:
		m.reader.ShowLoading()
	default:
		m.reader.Close()
	}
	if isVisible := m.reader.IsVisible(); isVisible != wasVisible {
		m.statusBar.readerVisible = isVisible
		if isVisible {
			m.setFocus(paneReader)
		} else {
			m.setFocus(paneList)
		}
		m.resizeSubModels()
	}

	var cmds []tea.Cmd
	for _, t := range v.Toasts {
		if m.seenToasts[t.ID] {
			continue
		}
		m.seenToasts[t.ID] = true
		id := t.ID
		cmds = append(cmds, tea.Tick(m.ttl, func(time.Time) tea.Msg { return toastExpiredMsg{id: id} }))
	}
	return cmds
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sidebarWidth, contentWidth := m.layoutWidths()
	contentHeight := m.height - 3

	sidebarView := m.theme.Sidebar.
		Width(sidebarWidth).
		Height(contentHeight).
		Render(m.sidebar.View())

	var contentView string
	switch {
	case m.composer.IsVisible():
		contentView = lipgloss.NewStyle().
			Width(contentWidth).
			Height(contentHeight).
			Render(m.composer.View())

	case m.reader.IsVisible():
		listHeight := contentHeight / 2
		readerHeight := contentHeight - listHeight
		listView := m.theme.List.Width(contentWidth).Height(listHeight).Render(m.listView())
		readerView := m.theme.Reader.Width(contentWidth).Height(readerHeight).Render(m.reader.View())
		contentView = lipgloss.JoinVertical(lipgloss.Left, listView, readerView)

	default:
		contentView = m.theme.List.
			Width(contentWidth).
			Height(contentHeight).
			Render(m.listView())
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebarView, contentView)
	return lipgloss.JoinVertical(lipgloss.Left, main, m.statusBar.View())
}

// listView puts the search prompt above the inbox while it is open.
func (m model) listView() string {
	if m.search.IsActive() {
		return m.search.View() + "\n\n" + m.inbox.View()
	}
	return m.inbox.View()
}

func (m *model) setFocus(p pane) {
	m.activePane = p
	m.sidebar.focused = p == paneSidebar
	m.inbox.focused = p == paneList
	m.reader.focused = p == paneReader
}

func (m model) layoutWidths() (sidebarWidth, contentWidth int) {
	sidebarWidth = max(m.width/5, 24)
	contentWidth = m.width - sidebarWidth - 2
	return
}

func (m *model) resizeSubModels() {
	sidebarWidth, contentWidth := m.layoutWidths()
	contentHeight := m.height - 3

	// Sidebar and reader styles take 4 columns and 4 rows of border and
	// padding; the list style takes 4 columns and 2 rows.
	m.sidebar.SetSize(sidebarWidth-4, contentHeight-4)
	if m.reader.IsVisible() {
		listHeight := contentHeight / 2
		m.inbox.SetSize(contentWidth-4, listHeight-2)
		m.reader.SetSize(contentWidth-6, contentHeight-listHeight-4)
	} else {
		m.inbox.SetSize(contentWidth-4, contentHeight-2)
	}
	m.resizeComposer()
	m.resizeSearch()
}

func (m *model) resizeComposer() {
	_, contentWidth := m.layoutWidths()
	m.composer.SetSize(contentWidth, m.height-3)
}

func (m *model) resizeSearch() {
	_, contentWidth := m.layoutWidths()
	m.search.SetSize(contentWidth - 4)
}

// --- async commands ---

func (m model) waitForChange() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		<-changes
		return viewChangedMsg{}
	}
}

func (m model) waitForRedirect() tea.Cmd {
	expiry := m.expiry
	if expiry == nil {
		return nil
	}
	return func() tea.Msg {
		<-expiry
		return sessionExpiredMsg{}
	}
}

func (m model) preloadCmd() tea.Cmd {
	cats := append([]domain.Category{m.view.Active}, domain.Categories()...)
	return func() tea.Msg {
		err := m.dash.Preload(m.ctx, cats...)
		return opDoneMsg{status: "Ready", err: err}
	}
}

func (m model) selectCategoryCmd(cat domain.Category) tea.Cmd {
	return func() tea.Msg {
		err := m.dash.SelectCategory(m.ctx, cat)
		return opDoneMsg{status: string(cat), err: err}
	}
}

func (m model) selectMessageCmd(msg domain.Message) tea.Cmd {
	return func() tea.Msg {
		_, err := m.dash.SelectMessage(m.ctx, msg)
		return opDoneMsg{err: err}
	}
}

func (m model) refreshCmd() tea.Cmd {
	cat := m.view.Active
	return func() tea.Msg {
		err := m.dash.Refresh(m.ctx, cat)
		return opDoneMsg{status: fmt.Sprintf("Refreshed %s", cat), err: err}
	}
}

func (m model) syncCmd() tea.Cmd {
	return func() tea.Msg {
		changed, err := m.dash.WaitForSync(m.ctx, syncTimeout)
		status := "Sync finished, nothing new"
		if changed {
			status = "Sync finished"
		}
		return opDoneMsg{status: status, err: err}
	}
}

func (m model) searchCmd(query string) tea.Cmd {
	return func() tea.Msg {
		err := m.dash.Search(m.ctx, query)
		return opDoneMsg{err: err}
	}
}

func (m model) replyCmd(body string, cc []string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.dash.Reply(m.ctx, body, cc); err != nil {
			return opDoneMsg{err: err}
		}
		return replySentMsg{}
	}
}

// Run starts the TUI over dash and blocks until the user quits or the
// session expires.
func Run(ctx context.Context, dash *app.Dashboard, opts Options) error {
	prog := tea.NewProgram(
		NewModel(ctx, dash, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	final, err := prog.Run()
	if fm, ok := final.(model); ok && fm.expired {
		return ErrSessionExpired
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
