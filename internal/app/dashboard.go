// Package app wires the category cache, the notifier and the backend into
// the dashboard the TUI and CLI drive.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/lu-zhengda/mailtriage/internal/api"
	"github.com/lu-zhengda/mailtriage/internal/cache"
	"github.com/lu-zhengda/mailtriage/internal/domain"
	"github.com/lu-zhengda/mailtriage/internal/notifier"
	"github.com/lu-zhengda/mailtriage/internal/provider"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize = 20
	maxToasts       = 5
)

// ErrUnsupported is returned by intents the dashboard was built without.
var ErrUnsupported = errors.New("not supported by this dashboard")

// ErrNoThread is returned by Reply when no thread is open.
var ErrNoThread = errors.New("no thread selected")

// Capabilities switches optional dashboard behaviour on or off.
type Capabilities struct {
	Notifier    bool
	AutoRefresh bool
	Search      bool
	Reply       bool
}

// AllCapabilities enables every optional behaviour.
func AllCapabilities() Capabilities {
	return Capabilities{Notifier: true, AutoRefresh: true, Search: true, Reply: true}
}

// Toast is a dismissible notification shown to the user.
type Toast struct {
	ID int
	domain.Notification
}

type Dashboard struct {
	backend         provider.MailProvider
	cache           *cache.Cache
	notifier        *notifier.Notifier
	caps            Capabilities
	pageSize        int
	refreshInterval time.Duration
	syncPoll        time.Duration
	log             logrus.FieldLogger
	now             func() time.Time

	mu            sync.Mutex
	active        domain.Category
	query         string
	thread        *domain.Thread
	threadSeq     uint64
	threadLoading bool
	toasts        []Toast
	nextToast     int
	redirect      bool
	listeners     []func()

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Dashboard)

func WithCapabilities(c Capabilities) Option {
	return func(d *Dashboard) { d.caps = c }
}

func WithPageSize(n int) Option {
	return func(d *Dashboard) {
		if n > 0 {
			d.pageSize = n
		}
	}
}

// WithRefreshInterval sets how often the active category is refreshed when
// AutoRefresh is enabled. Zero disables the timer.
func WithRefreshInterval(iv time.Duration) Option {
	return func(d *Dashboard) { d.refreshInterval = iv }
}

// WithSyncPollInterval sets how often WaitForSync re-reads the first page.
func WithSyncPollInterval(iv time.Duration) Option {
	return func(d *Dashboard) {
		if iv > 0 {
			d.syncPoll = iv
		}
	}
}

// WithNotifier builds a notifier over the backend that feeds arrivals into
// the dashboard. It only runs when the Notifier capability is set.
func WithNotifier(checkpoint notifier.Checkpoint, opts ...notifier.Option) Option {
	return func(d *Dashboard) {
		opts = append(opts,
			notifier.OnArrivals(d.onArrivals),
			notifier.OnNotification(d.pushNotification),
			notifier.OnError(func(err error) { d.report(err, "check for new mail") }),
		)
		d.notifier = notifier.New(d.backend, checkpoint, opts...)
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Dashboard) { d.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

// WithInitialCategory sets the tab that is active before any selection.
func WithInitialCategory(cat domain.Category) Option {
	return func(d *Dashboard) {
		if cat != "" {
			d.active = cat
		}
	}
}

func New(backend provider.MailProvider, opts ...Option) *Dashboard {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	d := &Dashboard{
		backend:  backend,
		caps:     AllCapabilities(),
		pageSize: DefaultPageSize,
		syncPoll: 2 * time.Second,
		log:      quiet,
		now:      time.Now,
		active:   domain.CategoryAll,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.WithField("component", "dashboard")
	d.cache = cache.New(d.fetch, cache.WithLogger(d.log), cache.WithClock(d.now))
	d.cache.Subscribe(func(domain.Category) { d.changed() })
	return d
}

// Subscribe registers fn to be called after any change visible in View.
func (d *Dashboard) Subscribe(fn func()) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// Notifier returns the dashboard's notifier, or nil if it has none.
func (d *Dashboard) Notifier() *notifier.Notifier {
	return d.notifier
}

func (d *Dashboard) fetch(ctx context.Context, cat domain.Category) ([]domain.Message, error) {
	if cat == domain.CategorySearchResults {
		d.mu.Lock()
		q := d.query
		d.mu.Unlock()
		return d.backend.Search(ctx, q)
	}
	return d.backend.ListByCategory(ctx, cat, 1, d.pageSize)
}

// SelectCategory makes cat the active tab and loads it if needed.
func (d *Dashboard) SelectCategory(ctx context.Context, cat domain.Category) error {
	d.mu.Lock()
	d.active = cat
	d.mu.Unlock()
	d.changed()

	return d.report(d.cache.EnsureLoaded(ctx, cat), "load "+string(cat))
}

// Refresh re-fetches cat. A refresh issued while cat is loading is queued
// behind the running fetch and returns nil.
func (d *Dashboard) Refresh(ctx context.Context, cat domain.Category) error {
	return d.report(d.cache.Refresh(ctx, cat), "refresh "+string(cat))
}

// RefreshActive refreshes the active tab.
func (d *Dashboard) RefreshActive(ctx context.Context) error {
	return d.Refresh(ctx, d.Active())
}

// Preload loads the given categories concurrently, one fetch per distinct
// category. A failing category does not cancel its siblings; the returned
// error joins every per-category failure.
func (d *Dashboard) Preload(ctx context.Context, cats ...domain.Category) error {
	seen := make(map[domain.Category]bool, len(cats))
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, cat := range cats {
		if seen[cat] {
			continue
		}
		seen[cat] = true
		g.Go(func() error {
			if err := d.report(d.cache.EnsureLoaded(ctx, cat), "load "+string(cat)); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// SelectMessage opens the thread of msg. The thread is always fetched from
// the backend; only the most recent selection is applied.
func (d *Dashboard) SelectMessage(ctx context.Context, msg domain.Message) (*domain.Thread, error) {
	id := msg.ThreadID
	if id == "" {
		id = msg.ID
	}

	d.mu.Lock()
	d.threadSeq++
	seq := d.threadSeq
	d.threadLoading = true
	d.mu.Unlock()
	d.changed()

	t, err := d.backend.GetThread(ctx, id)

	d.mu.Lock()
	if seq != d.threadSeq {
		d.mu.Unlock()
		return nil, cache.ErrSuperseded
	}
	d.threadLoading = false
	if err == nil {
		d.thread = t
	}
	d.mu.Unlock()
	d.changed()

	if err != nil {
		return nil, d.report(err, "open thread")
	}
	return t, nil
}

// CloseThread closes the open thread and discards any pending load.
func (d *Dashboard) CloseThread() {
	d.mu.Lock()
	d.threadSeq++
	d.thread = nil
	d.threadLoading = false
	d.mu.Unlock()
	d.changed()
}

// Search runs query and shows the results under the SearchResults tab. A
// blank query clears the results. A new query discards any search still in
// flight.
func (d *Dashboard) Search(ctx context.Context, query string) error {
	if !d.caps.Search {
		return ErrUnsupported
	}
	query = strings.TrimSpace(query)

	d.mu.Lock()
	d.query = query
	if query != "" {
		d.active = domain.CategorySearchResults
	} else if d.active == domain.CategorySearchResults {
		d.active = domain.CategoryAll
	}
	d.mu.Unlock()

	d.cache.Reset(domain.CategorySearchResults)
	if query == "" {
		return nil
	}
	return d.report(d.cache.EnsureLoaded(ctx, domain.CategorySearchResults), "search")
}

// Reply answers the open thread. The reply goes to the sender of the
// latest message.
func (d *Dashboard) Reply(ctx context.Context, body string, cc []string) (api.SentMessage, error) {
	if !d.caps.Reply {
		return api.SentMessage{}, ErrUnsupported
	}
	d.mu.Lock()
	t := d.thread
	d.mu.Unlock()
	if t == nil {
		return api.SentMessage{}, ErrNoThread
	}

	sent, err := d.backend.SendReply(ctx, BuildReply(t, body, cc))
	if err != nil {
		return api.SentMessage{}, d.report(err, "send reply")
	}
	d.pushNotification(domain.Notification{Title: "Reply sent", Body: t.Subject, At: d.now()})
	return sent, nil
}

// BuildReply prepares a reply to the latest message of t.
func BuildReply(t *domain.Thread, body string, cc []string) api.Reply {
	r := api.Reply{
		Subject:  replySubject(t.Subject),
		Body:     body,
		CC:       cc,
		ThreadID: t.ID,
	}
	latest := t.Latest()
	if latest == nil {
		return r
	}
	if latest.From.Email != "" {
		r.To = []string{latest.From.Email}
	}
	if r.Subject == "" {
		r.Subject = replySubject(latest.Subject)
	}
	r.InReplyTo = latest.ID
	for _, m := range t.Messages {
		r.References = append(r.References, m.ID)
	}
	return r
}

func replySubject(s string) string {
	if s == "" || strings.HasPrefix(strings.ToLower(s), "re:") {
		return s
	}
	return "Re: " + s
}

// Start runs the notifier and the auto-refresh timer, as enabled by the
// dashboard's capabilities, until Close.
func (d *Dashboard) Start(ctx context.Context) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.caps.Notifier && d.notifier != nil {
		d.notifier.Start(ctx)
	}
	if d.caps.AutoRefresh && d.refreshInterval > 0 {
		d.wg.Add(1)
		go d.autoRefresh(ctx)
	}
}

// Close stops all timers and waits for them to exit.
func (d *Dashboard) Close() {
	d.runMu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if d.notifier != nil {
		d.notifier.Stop()
	}
	d.wg.Wait()
}

func (d *Dashboard) autoRefresh(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.log.WithField("category", d.Active()).Debug("auto refresh")
			// report has already raised a toast for any failure.
			if err := d.RefreshActive(ctx); err != nil {
				d.log.WithError(err).Debug("auto refresh failed")
			}
		}
	}
}

// onArrivals merges new messages into every loaded tab they belong to.
func (d *Dashboard) onArrivals(na domain.NewArrivals) {
	states := d.cache.Snapshots()
	for cat, st := range states {
		if !st.Loaded || cat == domain.CategorySearchResults {
			continue
		}
		var msgs []domain.Message
		for _, m := range na.Messages {
			if cat == domain.CategoryAll || m.HasLabel(string(cat)) {
				msgs = append(msgs, m)
			}
		}
		if n := d.cache.MergeNewArrivals(cat, msgs); n > 0 {
			d.log.WithFields(logrus.Fields{"category": cat, "added": n}).Debug("merged arrivals")
		}
	}
}

// report turns an operation error into a toast and returns it. Queued and
// superseded fetches are not errors. A 401 raises the redirect flag.
func (d *Dashboard) report(err error, what string) error {
	switch {
	case err == nil, errors.Is(err, cache.ErrQueued), errors.Is(err, cache.ErrSuperseded):
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, api.ErrUnauthorized):
		d.mu.Lock()
		d.redirect = true
		d.mu.Unlock()
		d.log.Warn("session expired")
		d.changed()
		return err
	}
	d.log.WithError(err).WithField("op", what).Warn("operation failed")
	d.pushNotification(domain.Notification{
		Title:   fmt.Sprintf("Failed to %s", what),
		Body:    err.Error(),
		IsError: true,
		At:      d.now(),
	})
	return err
}

func (d *Dashboard) pushNotification(n domain.Notification) {
	d.mu.Lock()
	d.nextToast++
	d.toasts = append(d.toasts, Toast{ID: d.nextToast, Notification: n})
	if len(d.toasts) > maxToasts {
		d.toasts = append([]Toast(nil), d.toasts[len(d.toasts)-maxToasts:]...)
	}
	d.mu.Unlock()
	d.changed()
}

// Dismiss removes the toast with the given id.
func (d *Dashboard) Dismiss(id int) {
	d.mu.Lock()
	for i, t := range d.toasts {
		if t.ID == id {
			d.toasts = append(d.toasts[:i:i], d.toasts[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
	d.changed()
}

func (d *Dashboard) Active() domain.Category {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *Dashboard) changed() {
	d.mu.Lock()
	listeners := make([]func(), len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
