// Package cache holds per-category message lists for the dashboard.
//
// Each category moves through Empty -> Loading -> Loaded. At most one fetch
// per category is in flight; a Refresh issued while one is running is queued
// and coalesced into a single rerun. Every fetch carries a sequence stamp and
// its result is applied only if the stamp is still the latest for that
// category, so Reset and Clear discard late responses.
package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/lu-zhengda/mailtriage/internal/adapter"
	"github.com/lu-zhengda/mailtriage/internal/domain"
	"github.com/sirupsen/logrus"
)

var (
	// ErrQueued is returned by Refresh when a fetch is already in flight.
	// The in-flight owner re-fetches once it finishes.
	ErrQueued = errors.New("refresh queued behind in-flight fetch")
	// ErrSuperseded is returned when a fetch finished after Reset or Clear
	// and its result was discarded.
	ErrSuperseded = errors.New("fetch superseded")
)

// Fetcher loads the full message list for one category.
type Fetcher func(ctx context.Context, cat domain.Category) ([]domain.Message, error)

type entry struct {
	items     []domain.Message
	loaded    bool
	loading   bool
	pending   bool
	err       error
	seq       uint64
	cancel    context.CancelFunc
	updatedAt time.Time
}

type Cache struct {
	fetch Fetcher
	log   logrus.FieldLogger
	now   func() time.Time

	mu        sync.Mutex
	entries   map[domain.Category]*entry
	listeners []func(domain.Category)
}

type Option func(*Cache)

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Cache) { c.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(fetch Fetcher, opts ...Option) *Cache {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	c := &Cache{
		fetch:   fetch,
		log:     quiet,
		now:     time.Now,
		entries: make(map[domain.Category]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("component", "cache")
	return c
}

// Subscribe registers fn to be called after any change to a category.
// fn runs on the goroutine that made the change, outside the cache lock.
func (c *Cache) Subscribe(fn func(domain.Category)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// EnsureLoaded fetches cat unless it is already loading or loaded. On
// failure the category stays unloaded and the error is returned.
func (c *Cache) EnsureLoaded(ctx context.Context, cat domain.Category) error {
	c.mu.Lock()
	e := c.entry(cat)
	if e.loading || e.loaded {
		c.mu.Unlock()
		return nil
	}
	fctx, seq := c.begin(ctx, e)
	c.mu.Unlock()

	c.notify(cat)
	return c.run(ctx, fctx, cat, seq)
}

// Refresh re-fetches cat regardless of state. If a fetch is in flight the
// refresh is queued and ErrQueued is returned. On failure prior items and
// flags are kept.
func (c *Cache) Refresh(ctx context.Context, cat domain.Category) error {
	c.mu.Lock()
	e := c.entry(cat)
	if e.loading {
		e.pending = true
		c.mu.Unlock()
		c.log.WithField("category", cat).Debug("refresh queued")
		return ErrQueued
	}
	fctx, seq := c.begin(ctx, e)
	c.mu.Unlock()

	c.notify(cat)
	return c.run(ctx, fctx, cat, seq)
}

// begin marks e as loading and issues a new sequence stamp. Caller holds mu.
func (c *Cache) begin(ctx context.Context, e *entry) (context.Context, uint64) {
	e.seq++
	e.loading = true
	e.pending = false
	fctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	return fctx, e.seq
}

// run performs the fetch for seq and any queued reruns.
func (c *Cache) run(parent, fctx context.Context, cat domain.Category, seq uint64) error {
	for {
		items, err := c.fetch(fctx, cat)
		log := c.log.WithFields(logrus.Fields{"category": cat, "seq": seq})

		c.mu.Lock()
		e := c.entry(cat)
		if e.seq != seq {
			c.mu.Unlock()
			log.Debug("discarding superseded fetch")
			return ErrSuperseded
		}
		e.cancel()
		e.cancel = nil

		if err != nil {
			e.err = err
			log.WithError(err).Warn("fetch failed")
		} else {
			e.items = dedupe(items)
			e.loaded = true
			e.err = nil
			e.updatedAt = c.now()
			log.WithField("count", len(items)).Debug("fetch applied")
		}

		if !e.pending {
			e.loading = false
			c.mu.Unlock()
			c.notify(cat)
			return err
		}

		fctx, seq = c.begin(parent, e)
		c.mu.Unlock()
		c.notify(cat)
		log.Debug("running queued refresh")
	}
}

// MergeNewArrivals adds msgs to cat, replacing any message with the same id,
// and keeps the list newest-first. Loading flags are not touched. Returns
// the number of messages that were not already present.
func (c *Cache) MergeNewArrivals(cat domain.Category, msgs []domain.Message) int {
	if len(msgs) == 0 {
		return 0
	}

	c.mu.Lock()
	e := c.entry(cat)
	merged := make([]domain.Message, len(e.items), len(e.items)+len(msgs))
	copy(merged, e.items)

	index := make(map[string]int, len(merged))
	for i, m := range merged {
		index[m.ID] = i
	}
	added := 0
	for _, m := range msgs {
		if i, ok := index[m.ID]; ok {
			merged[i] = m
			continue
		}
		index[m.ID] = len(merged)
		merged = append(merged, m)
		added++
	}
	adapter.SortNewestFirst(merged)
	e.items = merged
	c.mu.Unlock()

	c.notify(cat)
	return added
}

// Reset returns cat to Empty and discards any in-flight fetch.
func (c *Cache) Reset(cat domain.Category) {
	c.mu.Lock()
	e, ok := c.entries[cat]
	if ok {
		reset(e)
	}
	c.mu.Unlock()

	if ok {
		c.notify(cat)
	}
}

// Clear resets every category.
func (c *Cache) Clear() {
	c.mu.Lock()
	cats := make([]domain.Category, 0, len(c.entries))
	for cat, e := range c.entries {
		reset(e)
		cats = append(cats, cat)
	}
	c.mu.Unlock()

	for _, cat := range cats {
		c.notify(cat)
	}
}

func reset(e *entry) {
	e.seq++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.items = nil
	e.loaded = false
	e.loading = false
	e.pending = false
	e.err = nil
	e.updatedAt = time.Time{}
}

// Snapshot returns an immutable copy of cat's state.
func (c *Cache) Snapshot(cat domain.Category) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cat]
	if !ok {
		return State{Category: cat}
	}
	return e.state(cat)
}

// Snapshots returns copies of every category that has been touched.
func (c *Cache) Snapshots() map[domain.Category]State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[domain.Category]State, len(c.entries))
	for cat, e := range c.entries {
		out[cat] = e.state(cat)
	}
	return out
}

func (c *Cache) entry(cat domain.Category) *entry {
	e, ok := c.entries[cat]
	if !ok {
		e = &entry{}
		c.entries[cat] = e
	}
	return e
}

func (c *Cache) notify(cat domain.Category) {
	c.mu.Lock()
	listeners := make([]func(domain.Category), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(cat)
	}
}

func (e *entry) state(cat domain.Category) State {
	items := make([]domain.Message, len(e.items))
	copy(items, e.items)
	return State{
		Category:  cat,
		Items:     items,
		Loaded:    e.loaded,
		Loading:   e.loading,
		Queued:    e.pending,
		Err:       e.err,
		Seq:       e.seq,
		UpdatedAt: e.updatedAt,
	}
}

// dedupe drops later duplicates of an id, keeping the first occurrence.
func dedupe(items []domain.Message) []domain.Message {
	seen := make(map[string]bool, len(items))
	out := make([]domain.Message, 0, len(items))
	for _, m := range items {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out
}
