package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lu-zhengda/mailtriage/internal/domain"
)

type result struct {
	items []domain.Message
	err   error
}

type call struct {
	ctx     context.Context
	cat     domain.Category
	release chan result
}

// gatedFetcher blocks every fetch until the test releases it.
type gatedFetcher struct {
	started     chan *call
	calls       atomic.Int32
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{started: make(chan *call)}
}

func (f *gatedFetcher) fetch(ctx context.Context, cat domain.Category) ([]domain.Message, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	for {
		m := f.maxInflight.Load()
		if n <= m || f.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}
	c := &call{ctx: ctx, cat: cat, release: make(chan result, 1)}
	f.started <- c
	r := <-c.release
	f.inflight.Add(-1)
	return r.items, r.err
}

func msg(id string, minute int) domain.Message {
	return domain.Message{ID: id, Date: time.Date(2024, 1, 1, 0, minute, 0, 0, time.UTC)}
}

func ids(msgs []domain.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEnsureLoadedSingleRequestWhilePending(t *testing.T) {
	f := newGatedFetcher()
	c := New(f.fetch)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.EnsureLoaded(ctx, domain.CategoryEvent) }()
	first := <-f.started

	if got := c.Snapshot(domain.CategoryEvent).Status(); got != StatusLoading {
		t.Errorf("status while pending = %v, want loading", got)
	}
	if err := c.EnsureLoaded(ctx, domain.CategoryEvent); err != nil {
		t.Errorf("second EnsureLoaded() error: %v", err)
	}

	first.release <- result{items: []domain.Message{msg("e1", 1)}}
	if err := <-done; err != nil {
		t.Fatalf("EnsureLoaded() error: %v", err)
	}
	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1", n)
	}

	s := c.Snapshot(domain.CategoryEvent)
	if !s.Loaded || s.Loading || len(s.Items) != 1 {
		t.Errorf("state = %+v, want loaded with 1 item", s)
	}

	// Loaded categories are not fetched again.
	if err := c.EnsureLoaded(ctx, domain.CategoryEvent); err != nil {
		t.Errorf("EnsureLoaded() on loaded error: %v", err)
	}
	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetch calls after loaded = %d, want 1", n)
	}
}

func TestRefreshNeverParallel(t *testing.T) {
	f := newGatedFetcher()
	c := New(f.fetch)
	ctx := context.Background()
	cat := domain.CategoryJobPosting

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx, cat) }()
	first := <-f.started

	for i := 0; i < 2; i++ {
		if err := c.Refresh(ctx, cat); !errors.Is(err, ErrQueued) {
			t.Fatalf("Refresh() during fetch error = %v, want ErrQueued", err)
		}
	}
	if !c.Snapshot(cat).Queued {
		t.Error("Queued = false, want true")
	}

	first.release <- result{items: []domain.Message{msg("old", 1)}}
	second := <-f.started
	second.release <- result{items: []domain.Message{msg("new", 2)}}

	if err := <-done; err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if n := f.calls.Load(); n != 2 {
		t.Errorf("fetch calls = %d, want 2 (queued refreshes coalesce)", n)
	}
	if m := f.maxInflight.Load(); m != 1 {
		t.Errorf("max in-flight = %d, want 1", m)
	}
	if got := ids(c.Snapshot(cat).Items); !equalIDs(got, []string{"new"}) {
		t.Errorf("items = %v, want [new]", got)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	f := newGatedFetcher()
	c := New(f.fetch)
	ctx := context.Background()
	cat := domain.CategoryCandidate

	doneA := make(chan error, 1)
	go func() { doneA <- c.EnsureLoaded(ctx, cat) }()
	a := <-f.started

	c.Reset(cat)
	if a.ctx.Err() == nil {
		t.Error("Reset should cancel the in-flight fetch context")
	}

	doneB := make(chan error, 1)
	go func() { doneB <- c.EnsureLoaded(ctx, cat) }()
	b := <-f.started

	b.release <- result{items: []domain.Message{msg("b", 2)}}
	if err := <-doneB; err != nil {
		t.Fatalf("fetch B error: %v", err)
	}

	a.release <- result{items: []domain.Message{msg("a", 1)}}
	if err := <-doneA; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("fetch A error = %v, want ErrSuperseded", err)
	}

	s := c.Snapshot(cat)
	if got := ids(s.Items); !equalIDs(got, []string{"b"}) {
		t.Errorf("items = %v, want [b]", got)
	}
	if s.Loading {
		t.Error("Loading = true after both fetches finished")
	}
}

func TestFailureKeepsPriorState(t *testing.T) {
	var fail atomic.Bool
	fetch := func(ctx context.Context, cat domain.Category) ([]domain.Message, error) {
		if fail.Load() {
			return nil, errors.New("backend down")
		}
		return []domain.Message{msg("x", 1)}, nil
	}
	c := New(fetch)
	ctx := context.Background()

	t.Run("ensureLoaded from empty", func(t *testing.T) {
		fail.Store(true)
		if err := c.EnsureLoaded(ctx, domain.CategoryOther); err == nil {
			t.Fatal("EnsureLoaded() error = nil, want failure")
		}
		s := c.Snapshot(domain.CategoryOther)
		if s.Loaded || s.Loading || len(s.Items) != 0 {
			t.Errorf("state = %+v, want empty", s)
		}
		if s.Status() != StatusError {
			t.Errorf("status = %v, want error", s.Status())
		}
	})

	t.Run("refresh after loaded", func(t *testing.T) {
		fail.Store(false)
		if err := c.EnsureLoaded(ctx, domain.CategoryOther); err != nil {
			t.Fatalf("EnsureLoaded() error: %v", err)
		}
		fail.Store(true)
		if err := c.Refresh(ctx, domain.CategoryOther); err == nil {
			t.Fatal("Refresh() error = nil, want failure")
		}
		s := c.Snapshot(domain.CategoryOther)
		if !s.Loaded || len(s.Items) != 1 || s.Err == nil {
			t.Errorf("state = %+v, want loaded with prior item and error", s)
		}

		fail.Store(false)
		if err := c.Refresh(ctx, domain.CategoryOther); err != nil {
			t.Fatalf("Refresh() error: %v", err)
		}
		if s := c.Snapshot(domain.CategoryOther); s.Err != nil {
			t.Errorf("Err = %v, want cleared after success", s.Err)
		}
	})
}

func TestMergeNewArrivals(t *testing.T) {
	c := New(func(ctx context.Context, cat domain.Category) ([]domain.Message, error) { return nil, nil })
	cat := domain.CategoryAll

	if n := c.MergeNewArrivals(cat, []domain.Message{msg("m1", 1), msg("m2", 2)}); n != 2 {
		t.Errorf("first merge added = %d, want 2", n)
	}

	updated := msg("m2", 2)
	updated.Subject = "updated"
	if n := c.MergeNewArrivals(cat, []domain.Message{updated, msg("m3", 3)}); n != 1 {
		t.Errorf("second merge added = %d, want 1", n)
	}

	s := c.Snapshot(cat)
	if got := ids(s.Items); !equalIDs(got, []string{"m3", "m2", "m1"}) {
		t.Errorf("items = %v, want [m3 m2 m1]", got)
	}
	if s.Items[1].Subject != "updated" {
		t.Errorf("duplicate id kept stale copy: %+v", s.Items[1])
	}
	if s.Loaded || s.Loading {
		t.Errorf("merge changed flags: loaded=%v loading=%v", s.Loaded, s.Loading)
	}
	if n := c.MergeNewArrivals(cat, nil); n != 0 {
		t.Errorf("empty merge added = %d", n)
	}
}

func TestFetchResultDeduped(t *testing.T) {
	c := New(func(ctx context.Context, cat domain.Category) ([]domain.Message, error) {
		return []domain.Message{msg("a", 2), msg("a", 1), msg("b", 1)}, nil
	})
	if err := c.EnsureLoaded(context.Background(), domain.CategoryAll); err != nil {
		t.Fatalf("EnsureLoaded() error: %v", err)
	}
	if got := ids(c.Snapshot(domain.CategoryAll).Items); !equalIDs(got, []string{"a", "b"}) {
		t.Errorf("items = %v, want [a b]", got)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	c := New(func(ctx context.Context, cat domain.Category) ([]domain.Message, error) {
		return []domain.Message{msg("a", 1)}, nil
	})
	if err := c.EnsureLoaded(context.Background(), domain.CategoryAll); err != nil {
		t.Fatalf("EnsureLoaded() error: %v", err)
	}
	s := c.Snapshot(domain.CategoryAll)
	s.Items[0].ID = "mutated"
	if got := c.Snapshot(domain.CategoryAll).Items[0].ID; got != "a" {
		t.Errorf("snapshot aliased cache storage: %q", got)
	}
}

func TestSubscribeAndClear(t *testing.T) {
	c := New(func(ctx context.Context, cat domain.Category) ([]domain.Message, error) {
		return []domain.Message{msg(string(cat), 1)}, nil
	})
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[domain.Category]int{}
	c.Subscribe(func(cat domain.Category) {
		mu.Lock()
		seen[cat]++
		mu.Unlock()
	})

	for _, cat := range []domain.Category{domain.CategoryEvent, domain.CategoryQuestions} {
		if err := c.EnsureLoaded(ctx, cat); err != nil {
			t.Fatalf("EnsureLoaded(%s) error: %v", cat, err)
		}
	}
	if len(c.Snapshots()) != 2 {
		t.Errorf("Snapshots() len = %d, want 2", len(c.Snapshots()))
	}

	c.Clear()
	for cat, s := range c.Snapshots() {
		if s.Loaded || len(s.Items) != 0 {
			t.Errorf("%s not cleared: %+v", cat, s)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	// loading, loaded, cleared
	if seen[domain.CategoryEvent] != 3 {
		t.Errorf("Event notifications = %d, want 3", seen[domain.CategoryEvent])
	}
}
