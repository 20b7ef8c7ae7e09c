// Package notifier polls the backend for messages that arrived since the
// last check.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lu-zhengda/mailtriage/internal/domain"
	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval   = 45 * time.Second
	DefaultMaxResults = 20
)

// ErrBusy is returned by Check when the previous check has not finished.
var ErrBusy = errors.New("previous check still running")

// ArrivalSource lists messages newer than a server timestamp.
type ArrivalSource interface {
	ListNewSince(ctx context.Context, since string, maxResults int) (domain.NewArrivals, error)
}

// Checkpoint persists the server timestamp of the last check.
type Checkpoint interface {
	LastChecked(ctx context.Context) (string, error)
	SetLastChecked(ctx context.Context, ts string) error
}

// Recorder keeps a history of surfaced arrivals.
type Recorder interface {
	RecordArrivals(ctx context.Context, msgs []domain.Message, at time.Time) (int, error)
}

type Notifier struct {
	source     ArrivalSource
	checkpoint Checkpoint
	recorder   Recorder
	interval   time.Duration
	maxResults int
	onArrivals func(domain.NewArrivals)
	onNotify   func(domain.Notification)
	onError    func(error)
	log        logrus.FieldLogger
	now        func() time.Time

	busy atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type Option func(*Notifier)

// WithInterval sets the poll interval. Non-positive values keep the default.
func WithInterval(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.interval = d
		}
	}
}

func WithMaxResults(limit int) Option {
	return func(n *Notifier) {
		if limit > 0 {
			n.maxResults = limit
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(n *Notifier) { n.recorder = r }
}

// OnArrivals registers the callback that receives new messages.
func OnArrivals(fn func(domain.NewArrivals)) Option {
	return func(n *Notifier) { n.onArrivals = fn }
}

// OnNotification registers the callback for user-facing notifications.
func OnNotification(fn func(domain.Notification)) Option {
	return func(n *Notifier) { n.onNotify = fn }
}

// OnError registers the callback for failed background checks.
func OnError(fn func(error)) Option {
	return func(n *Notifier) { n.onError = fn }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(n *Notifier) { n.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

func New(source ArrivalSource, checkpoint Checkpoint, opts ...Option) *Notifier {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	n := &Notifier{
		source:     source,
		checkpoint: checkpoint,
		interval:   DefaultInterval,
		maxResults: DefaultMaxResults,
		log:        quiet,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.WithField("component", "notifier")
	return n
}

func (n *Notifier) Interval() time.Duration {
	return n.interval
}

// Check runs one poll. It returns ErrBusy without calling the backend if a
// previous check is still running. The checkpoint is advanced to the
// server-reported timestamp, never the local clock.
func (n *Notifier) Check(ctx context.Context) (domain.NewArrivals, error) {
	if !n.busy.CompareAndSwap(false, true) {
		return domain.NewArrivals{}, ErrBusy
	}
	defer n.busy.Store(false)

	since, err := n.checkpoint.LastChecked(ctx)
	if err != nil {
		return domain.NewArrivals{}, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	na, err := n.source.ListNewSince(ctx, since, n.maxResults)
	if err != nil {
		return domain.NewArrivals{}, err
	}

	log := n.log.WithFields(logrus.Fields{"since": since, "next": na.Since, "count": na.Count})
	if na.Since != "" {
		if err := n.checkpoint.SetLastChecked(ctx, na.Since); err != nil {
			return na, fmt.Errorf("failed to save checkpoint: %w", err)
		}
	}

	if na.Count <= 0 {
		log.Debug("no new messages")
		return na, nil
	}
	log.Info("new messages")

	at := n.now()
	if n.recorder != nil && len(na.Messages) > 0 {
		if _, err := n.recorder.RecordArrivals(ctx, na.Messages, at); err != nil {
			log.WithError(err).Warn("failed to record arrivals")
		}
	}
	if n.onArrivals != nil {
		n.onArrivals(na)
	}
	if n.onNotify != nil {
		n.onNotify(notificationFor(na, at))
	}
	return na, nil
}

// Start runs an immediate check and then one per interval until ctx is
// done or Stop is called. Calling Start on a running notifier is a no-op.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.loop(ctx, n.done)
}

// Stop cancels the loop and waits for it to exit.
func (n *Notifier) Stop() {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (n *Notifier) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	n.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.tick(ctx)
		}
	}
}

func (n *Notifier) tick(ctx context.Context) {
	_, err := n.Check(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrBusy):
		n.log.Debug("skipping tick, previous check still running")
	case ctx.Err() != nil:
	default:
		n.log.WithError(err).Warn("check failed")
		if n.onError != nil {
			n.onError(err)
		}
	}
}

func notificationFor(na domain.NewArrivals, at time.Time) domain.Notification {
	title := "1 new message"
	if na.Count != 1 {
		title = fmt.Sprintf("%d new messages", na.Count)
	}

	var body string
	if len(na.Messages) > 0 {
		m := na.Messages[0]
		body = fmt.Sprintf("%s: %s", m.From.DisplayName(), m.Subject)
		if extra := len(na.Messages) - 1; extra > 0 {
			body += fmt.Sprintf(" (+%d more)", extra)
		}
	}
	return domain.Notification{Title: title, Body: body, At: at}
}
