package cli

import (
	"time"

	"github.com/lu-zhengda/mailtriage/internal/api"
	"github.com/lu-zhengda/mailtriage/internal/domain"
	"github.com/lu-zhengda/mailtriage/internal/store"
)

// ---------------------------------------------------------------------------
// Message JSON types (list, search)
// ---------------------------------------------------------------------------

type jsonMessage struct {
	ID            string        `json:"id"`
	ThreadID      string        `json:"thread_id"`
	From          jsonAddress   `json:"from"`
	To            []jsonAddress `json:"to,omitempty"`
	Subject       string        `json:"subject"`
	Snippet       string        `json:"snippet,omitempty"`
	Body          string        `json:"body,omitempty"`
	Date          string        `json:"date"`
	IsRead        bool          `json:"is_read"`
	HasAttachment bool          `json:"has_attachment,omitempty"`
	Labels        []string      `json:"labels,omitempty"`
}

func toJSONMessages(msgs []domain.Message) []jsonMessage {
	out := make([]jsonMessage, 0, len(msgs))
	for i := range msgs {
		m := toJSONMessage(&msgs[i])
		m.Body = ""
		out = append(out, m)
	}
	return out
}

func toJSONMessage(m *domain.Message) jsonMessage {
	return jsonMessage{
		ID:            m.ID,
		ThreadID:      m.ThreadID,
		From:          toJSONAddress(m.From),
		To:            toJSONAddresses(m.To),
		Subject:       m.Subject,
		Snippet:       m.Snippet,
		Body:          m.Body,
		Date:          formatRFC3339(m.Date),
		IsRead:        m.IsRead,
		HasAttachment: m.HasAttachment,
		Labels:        m.Labels,
	}
}

// ---------------------------------------------------------------------------
// Thread detail JSON type (read)
// ---------------------------------------------------------------------------

type jsonThreadDetail struct {
	ID           string        `json:"id"`
	Subject      string        `json:"subject"`
	Participants []string      `json:"participants,omitempty"`
	LastUpdated  string        `json:"last_updated,omitempty"`
	MessageCount int           `json:"message_count"`
	Messages     []jsonMessage `json:"messages"`
}

func toJSONThreadDetail(t *domain.Thread) jsonThreadDetail {
	msgs := make([]jsonMessage, 0, len(t.Messages))
	for i := range t.Messages {
		msgs = append(msgs, toJSONMessage(&t.Messages[i]))
	}
	return jsonThreadDetail{
		ID:           t.ID,
		Subject:      t.Subject,
		Participants: t.Participants,
		LastUpdated:  formatRFC3339(t.LastUpdated),
		MessageCount: t.MessageCount(),
		Messages:     msgs,
	}
}

// ---------------------------------------------------------------------------
// Address JSON type (shared)
// ---------------------------------------------------------------------------

type jsonAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

func toJSONAddress(a domain.Address) jsonAddress {
	return jsonAddress{Name: a.Name, Email: a.Email}
}

func toJSONAddresses(addrs []domain.Address) []jsonAddress {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]jsonAddress, len(addrs))
	for i, a := range addrs {
		out[i] = toJSONAddress(a)
	}
	return out
}

// ---------------------------------------------------------------------------
// Account JSON types (whoami, stats)
// ---------------------------------------------------------------------------

type jsonUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func toJSONUser(u api.User) jsonUser {
	return jsonUser{ID: u.ID.String(), Email: u.Email, Name: u.Name}
}

type jsonSenderCount struct {
	Email string `json:"email"`
	Count int    `json:"count"`
}

type jsonSummary struct {
	TotalEmails  int               `json:"total_emails"`
	UnreadEmails int               `json:"unread_emails"`
	WeeklyChange float64           `json:"weekly_change"`
	TopSenders   []jsonSenderCount `json:"top_senders"`
	Categories   map[string]int    `json:"categories"`
}

func toJSONSummary(s api.Summary) jsonSummary {
	senders := make([]jsonSenderCount, 0, len(s.TopSenders))
	for _, sc := range s.TopSenders {
		senders = append(senders, jsonSenderCount{Email: sc.Email, Count: sc.Count})
	}
	cats := s.EmailCategories
	if cats == nil {
		cats = map[string]int{}
	}
	return jsonSummary{
		TotalEmails:  s.TotalEmails,
		UnreadEmails: s.UnreadEmails,
		WeeklyChange: s.WeeklyChange,
		TopSenders:   senders,
		Categories:   cats,
	}
}

// ---------------------------------------------------------------------------
// Notification JSON type (notifications)
// ---------------------------------------------------------------------------

type jsonNotification struct {
	MessageID  string `json:"message_id"`
	ThreadID   string `json:"thread_id,omitempty"`
	Subject    string `json:"subject"`
	Sender     string `json:"sender"`
	ReceivedAt string `json:"received_at,omitempty"`
	NotifiedAt string `json:"notified_at"`
}

func toJSONNotifications(recs []store.NotificationRecord) []jsonNotification {
	out := make([]jsonNotification, 0, len(recs))
	for _, r := range recs {
		out = append(out, jsonNotification{
			MessageID:  r.MessageID,
			ThreadID:   r.ThreadID,
			Subject:    r.Subject,
			Sender:     r.Sender,
			ReceivedAt: formatRFC3339(r.ReceivedAt),
			NotifiedAt: formatRFC3339(r.NotifiedAt),
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Label and auto-reply JSON types (labels, autoreply)
// ---------------------------------------------------------------------------

type jsonThreadLabel struct {
	LabelID    int    `json:"label_id"`
	Name       string `json:"name"`
	Category   string `json:"category,omitempty"`
	Confidence int    `json:"confidence"`
	Confirmed  bool   `json:"confirmed"`
}

func toJSONThreadLabels(labels []api.ThreadLabel) []jsonThreadLabel {
	out := make([]jsonThreadLabel, 0, len(labels))
	for _, l := range labels {
		out = append(out, jsonThreadLabel{
			LabelID:    l.LabelID,
			Name:       l.Name(),
			Category:   l.Label.Category.Name,
			Confidence: l.Confidence,
			Confirmed:  l.Confirmed,
		})
	}
	return out
}

type jsonAutoReplyConfig struct {
	Enabled            bool   `json:"enabled"`
	MaxThreadsPerCheck int    `json:"max_threads_per_check"`
	Signature          string `json:"signature,omitempty"`
	GmailResponder     bool   `json:"gmail_responder"`
}

func toJSONAutoReplyConfig(cfg api.AutoReplyConfig) jsonAutoReplyConfig {
	return jsonAutoReplyConfig{
		Enabled:            cfg.Enabled,
		MaxThreadsPerCheck: cfg.MaxThreadsPerCheck,
		Signature:          cfg.Signature,
		GmailResponder:     cfg.UseGmailResponder,
	}
}

type jsonAutoReplyStatus struct {
	Enabled          bool   `json:"enabled"`
	LastCheck        string `json:"last_check,omitempty"`
	TotalRepliesSent int    `json:"total_replies_sent"`
	RateLimited      bool   `json:"rate_limited"`
	RetryAfter       string `json:"retry_after,omitempty"`
}

func toJSONAutoReplyStatus(s api.AutoReplyStatus) jsonAutoReplyStatus {
	out := jsonAutoReplyStatus{
		Enabled:          s.Enabled,
		LastCheck:        formatRFC3339(s.LastCheckTime()),
		TotalRepliesSent: s.TotalRepliesSent,
	}
	if s.RateLimit != nil {
		out.RateLimited = true
		out.RetryAfter = s.RateLimit.RetryAfter
	}
	return out
}

// ---------------------------------------------------------------------------
// Action JSON type (login, logout, sync, reply)
// ---------------------------------------------------------------------------

type jsonAction struct {
	OK        bool   `json:"ok"`
	Action    string `json:"action"`
	MessageID string `json:"message_id,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Changed   *bool  `json:"changed,omitempty"`
}

// formatRFC3339 leaves zero times empty so omitempty drops them.
func formatRFC3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
