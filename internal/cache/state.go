package cache

import (
	"time"

	"github.com/lu-zhengda/mailtriage/internal/domain"
)

type Status int

const (
	StatusEmpty Status = iota
	StatusLoading
	StatusLoaded
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusError:
		return "error"
	}
	return "empty"
}

// State is a copy of one category's cache entry.
type State struct {
	Category  domain.Category
	Items     []domain.Message
	Loaded    bool
	Loading   bool
	Queued    bool
	Err       error // last fetch error, cleared by the next success
	Seq       uint64
	UpdatedAt time.Time
}

func (s State) Status() Status {
	switch {
	case s.Loading:
		return StatusLoading
	case s.Loaded:
		return StatusLoaded
	case s.Err != nil:
		return StatusError
	}
	return StatusEmpty
}
