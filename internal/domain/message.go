package domain

import "time"

type Address struct {
	Name  string
	Email string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

// DisplayName returns the name if present, otherwise the email.
func (a Address) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// Message is a single email as served by the triage backend. Only IsRead and
// Labels change after fetch, and only by re-fetching.
type Message struct {
	ID            string
	ThreadID      string
	From          Address
	To            []Address
	Subject       string
	Snippet       string
	Body          string
	BodyHTML      string
	Date          time.Time
	Labels        []string
	HasAttachment bool
	IsRead        bool
}

func (m *Message) HasLabel(label string) bool {
	for _, l := range m.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Preview returns the snippet, falling back to the start of the body.
func (m *Message) Preview() string {
	if m.Snippet != "" {
		return m.Snippet
	}
	if len(m.Body) > 100 {
		return m.Body[:100]
	}
	return m.Body
}
