package adapter

import (
	"time"

	"github.com/lu-zhengda/mailtriage/internal/domain"
)

// ServerMessage is the backend's message representation.
type ServerMessage struct {
	GmailID       string   `json:"gmail_id"`
	ThreadID      string   `json:"thread_id"`
	Sender        string   `json:"sender"`
	Recipients    []string `json:"recipients"`
	Subject       string   `json:"subject"`
	Snippet       string   `json:"snippet"`
	Body          string   `json:"body"`
	Date          string   `json:"date,omitempty"`
	Labels        []string `json:"labels"`
	HasAttachment bool     `json:"has_attachment"`
	IsRead        bool     `json:"is_read"`
}

// ToServer converts m back to the backend's representation.
func ToServer(m domain.Message) ServerMessage {
	body := m.Body
	if m.BodyHTML != "" {
		body = m.BodyHTML
	}

	sm := ServerMessage{
		GmailID:       m.ID,
		ThreadID:      m.ThreadID,
		Sender:        FormatSender(m.From),
		Recipients:    make([]string, 0, len(m.To)),
		Subject:       m.Subject,
		Snippet:       m.Snippet,
		Body:          body,
		Labels:        m.Labels,
		HasAttachment: m.HasAttachment,
		IsRead:        m.IsRead,
	}
	if sm.Labels == nil {
		sm.Labels = []string{}
	}
	for _, a := range m.To {
		sm.Recipients = append(sm.Recipients, FormatSender(a))
	}
	if !m.Date.IsZero() {
		sm.Date = m.Date.UTC().Format(time.RFC3339Nano)
	}
	return sm
}
