package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/lu-zhengda/mailtriage/internal/domain"
)

// Keys under which the backend wraps message sequences, in lookup order.
var listKeys = []string{"messages", "emails", "results", "threads"}

// wireMessage covers every message-like shape the backend returns: plain
// messages, thread dicts from /new, and thread summaries from /labeled.
type wireMessage struct {
	ID            json.RawMessage `json:"id"`
	GmailID       string          `json:"gmail_id"`
	ThreadID      string          `json:"thread_id"`
	ThreadIDCamel string          `json:"threadId"`
	Sender        json.RawMessage `json:"sender"`
	From          json.RawMessage `json:"from"`
	Recipients    json.RawMessage `json:"recipients"`
	Subject       string          `json:"subject"`
	Snippet       string          `json:"snippet"`
	Body          string          `json:"body"`
	Date          string          `json:"date"`
	Timestamp     json.RawMessage `json:"timestamp"`
	Labels        []string        `json:"labels"`
	HasAttachment bool            `json:"has_attachment"`
	IsRead        *bool           `json:"is_read"`

	LatestMessage *wireMessage    `json:"latest_message"`
	Messages      []wireMessage   `json:"messages"`
	Participants  []string        `json:"participants"`
	LastUpdated   string          `json:"last_updated"`
	MessageCount  int             `json:"message_count"`
	InternalDate  json.RawMessage `json:"internal_date"`
}

// DecodeMessages normalizes a message sequence payload. The payload may be a
// bare array or an object wrapping the array under one of the list keys.
// Thread summaries are flattened to their latest message. The result is
// sorted newest-first.
func DecodeMessages(raw []byte) ([]domain.Message, error) {
	items, err := unwrapList(raw)
	if err != nil {
		return nil, err
	}

	msgs := make([]domain.Message, 0, len(items))
	for _, item := range items {
		var w wireMessage
		if err := json.Unmarshal(item, &w); err != nil {
			continue
		}
		if m, ok := w.flatten(); ok {
			msgs = append(msgs, m)
		}
	}
	SortNewestFirst(msgs)
	return msgs, nil
}

// DecodeThread normalizes a thread payload. Messages come back oldest first.
func DecodeThread(raw []byte) (*domain.Thread, error) {
	raw = trimJSON(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, &ParseError{What: "thread", Err: errors.New("expected object")}
	}

	var env struct {
		Thread json.RawMessage `json:"thread"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(trimJSON(env.Thread)) > 0 && env.Thread[0] == '{' {
		raw = env.Thread
	}

	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, &ParseError{What: "thread", Err: err}
	}

	t := &domain.Thread{
		ID:           w.threadID(),
		Subject:      w.Subject,
		Participants: w.Participants,
		LastUpdated:  parseDate(w.LastUpdated),
		TotalCount:   w.MessageCount,
	}
	if t.ID == "" {
		t.ID = rawID(w.ID)
	}

	for _, wm := range w.Messages {
		m := wm.toMessage()
		if m.ThreadID == "" {
			m.ThreadID = t.ID
		}
		t.Messages = append(t.Messages, m)
	}
	if len(t.Messages) == 0 && w.LatestMessage != nil {
		m := w.LatestMessage.toMessage()
		m.ThreadID = t.ID
		t.Messages = append(t.Messages, m)
	}
	sortOldestFirst(t.Messages)

	if t.Subject == "" && len(t.Messages) > 0 {
		t.Subject = t.Messages[0].Subject
	}
	if len(t.Participants) == 0 {
		t.Participants = participants(t.Messages)
	}
	if latest := t.Latest(); latest != nil && latest.Date.After(t.LastUpdated) {
		t.LastUpdated = latest.Date
	}
	return t, nil
}

// DecodeNewArrivals normalizes the /new payload {count, emails|messages, timestamp}.
func DecodeNewArrivals(raw []byte) (domain.NewArrivals, error) {
	raw = trimJSON(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return domain.NewArrivals{}, &ParseError{What: "new arrivals", Err: errors.New("expected object")}
	}

	var env struct {
		Count     *int            `json:"count"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.NewArrivals{}, &ParseError{What: "new arrivals", Err: err}
	}

	msgs, err := DecodeMessages(raw)
	if err != nil {
		// A response with a count but no list is still a valid "nothing new".
		msgs = nil
	}

	out := domain.NewArrivals{Messages: msgs, Since: rawString(env.Timestamp)}
	if env.Count != nil {
		out.Count = *env.Count
	} else {
		out.Count = len(msgs)
	}
	return out, nil
}

// SortNewestFirst orders msgs by date descending. Zero dates sort last and
// equal dates are ordered by id.
func SortNewestFirst(msgs []domain.Message) {
	slices.SortStableFunc(msgs, func(a, b domain.Message) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func sortOldestFirst(msgs []domain.Message) {
	slices.SortStableFunc(msgs, func(a, b domain.Message) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func unwrapList(raw []byte) ([]json.RawMessage, error) {
	raw = trimJSON(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &ParseError{What: "message list", Err: err}
		}
		return items, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, &ParseError{What: "message list", Err: err}
		}
		for _, key := range listKeys {
			v, ok := obj[key]
			if !ok {
				continue
			}
			v = trimJSON(v)
			if string(v) == "null" {
				return nil, nil
			}
			if len(v) == 0 || v[0] != '[' {
				continue
			}
			var items []json.RawMessage
			if err := json.Unmarshal(v, &items); err != nil {
				return nil, &ParseError{What: "message list", Err: err}
			}
			return items, nil
		}
		return nil, &ParseError{What: "message list", Err: errors.New("no message array in object")}
	}
	return nil, &ParseError{What: "message list", Err: errors.New("unexpected payload")}
}

// flatten reduces a message or thread summary to a single message.
func (w *wireMessage) flatten() (domain.Message, bool) {
	var m domain.Message
	switch {
	case w.LatestMessage != nil:
		m = w.LatestMessage.toMessage()
	case len(w.Messages) > 0 && w.Sender == nil && w.From == nil:
		inner := make([]domain.Message, 0, len(w.Messages))
		for _, wm := range w.Messages {
			inner = append(inner, wm.toMessage())
		}
		SortNewestFirst(inner)
		m = inner[0]
	default:
		m = w.toMessage()
		if m.ID == "" && m.ThreadID == "" {
			return m, false
		}
		return m, true
	}

	if tid := w.threadID(); tid != "" {
		m.ThreadID = tid
	}
	if w.Subject != "" {
		m.Subject = w.Subject
	}
	if m.Date.IsZero() {
		m.Date = parseDate(w.LastUpdated)
	}
	if len(m.Labels) == 0 {
		m.Labels = w.Labels
	}
	if m.ID == "" {
		m.ID = m.ThreadID
	}
	return m, m.ID != ""
}

func (w *wireMessage) toMessage() domain.Message {
	sender := w.Sender
	if len(trimJSON(sender)) == 0 {
		sender = w.From
	}

	m := domain.Message{
		ID:            w.GmailID,
		ThreadID:      w.threadID(),
		From:          ParseSender(sender),
		To:            parseAddressList(w.Recipients),
		Subject:       w.Subject,
		Snippet:       w.Snippet,
		Body:          w.Body,
		Date:          bestTime(w.Timestamp, w.Date),
		Labels:        w.Labels,
		HasAttachment: w.HasAttachment,
		IsRead:        w.IsRead == nil || *w.IsRead,
	}
	if m.ID == "" {
		m.ID = rawID(w.ID)
	}
	if m.Date.IsZero() {
		m.Date = parseTimestamp(w.InternalDate)
	}
	if looksLikeHTML(w.Body) {
		m.BodyHTML = w.Body
		m.Body = htmlToText(w.Body)
	}
	return m
}

func (w *wireMessage) threadID() string {
	if w.ThreadID != "" {
		return w.ThreadID
	}
	return w.ThreadIDCamel
}

func participants(msgs []domain.Message) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range msgs {
		p := m.From.String()
		if m.From.Email == UnknownEmail || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// rawID renders a JSON string or number id as a string.
func rawID(raw json.RawMessage) string {
	raw = trimJSON(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	if n, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// rawString returns a JSON string verbatim, or a number formatted as RFC 3339.
func rawString(raw json.RawMessage) string {
	raw = trimJSON(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	}
	if t := parseTimestamp(raw); !t.IsZero() {
		return t.Format(time.RFC3339)
	}
	return ""
}

func trimJSON(raw []byte) []byte {
	return bytes.TrimSpace(raw)
}
