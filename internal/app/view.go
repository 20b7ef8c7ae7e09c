package app

import (
	"github.com/lu-zhengda/mailtriage/internal/cache"
	"github.com/lu-zhengda/mailtriage/internal/domain"
)

// View is an immutable snapshot of the dashboard for rendering.
type View struct {
	Active        domain.Category
	Tabs          []cache.State
	Query         string
	Thread        *domain.Thread
	ThreadLoading bool
	Toasts        []Toast
	Redirect      bool
	Capabilities  Capabilities
}

// ActiveState returns the cache state of the active tab.
func (v View) ActiveState() cache.State {
	for _, s := range v.Tabs {
		if s.Category == v.Active {
			return s
		}
	}
	return cache.State{Category: v.Active}
}

func (d *Dashboard) View() View {
	snaps := d.cache.Snapshots()

	d.mu.Lock()
	defer d.mu.Unlock()

	v := View{
		Active:        d.active,
		Query:         d.query,
		ThreadLoading: d.threadLoading,
		Redirect:      d.redirect,
		Capabilities:  d.caps,
		Toasts:        append([]Toast(nil), d.toasts...),
	}

	cats := domain.Categories()
	if d.query != "" || d.active == domain.CategorySearchResults {
		cats = append(cats, domain.CategorySearchResults)
	}
	for _, cat := range cats {
		s, ok := snaps[cat]
		if !ok {
			s = cache.State{Category: cat}
		}
		v.Tabs = append(v.Tabs, s)
	}

	if d.thread != nil {
		t := *d.thread
		t.Messages = append([]domain.Message(nil), d.thread.Messages...)
		t.Participants = append([]string(nil), d.thread.Participants...)
		v.Thread = &t
	}
	return v
}
