package domain

import "time"

type Thread struct {
	ID           string
	Subject      string
	Messages     []Message // chronological, oldest first
	Participants []string
	LastUpdated  time.Time

	// TotalCount is set when the server reports a count without sending
	// every message.
	TotalCount int
}

func (t *Thread) MessageCount() int {
	if len(t.Messages) > 0 {
		return len(t.Messages)
	}
	return t.TotalCount
}

func (t *Thread) IsUnread() bool {
	for i := range t.Messages {
		if !t.Messages[i].IsRead {
			return true
		}
	}
	return false
}

// Latest returns the most recent message, or nil for an empty thread.
func (t *Thread) Latest() *Message {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}
