package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lu-zhengda/mailtriage/internal/adapter"
	"github.com/lu-zhengda/mailtriage/internal/domain"
)

// Page is one page of the unfiltered message listing.
type Page struct {
	Messages []domain.Message
	HasMore  bool
}

// ListMessages fetches a page of messages. A non-empty cacheBust is sent as
// the t parameter to defeat intermediate caches.
func (c *Client) ListMessages(ctx context.Context, page, pageSize int, cacheBust string) (Page, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(page, 1)))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("max_results", strconv.Itoa(pageSize))
	if cacheBust != "" {
		q.Set("t", cacheBust)
	}

	data, err := c.get(ctx, "/api/emails/", q)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list messages: %w", err)
	}

	msgs, err := c.decodeList(data, "messages")
	if err != nil {
		return Page{}, err
	}

	p := Page{Messages: msgs, HasMore: pageSize > 0 && len(msgs) >= pageSize}
	var env struct {
		HasMore *bool `json:"has_more"`
	}
	if json.Unmarshal(data, &env) == nil && env.HasMore != nil {
		p.HasMore = *env.HasMore
	}
	return p, nil
}

// GetThread fetches a full thread. A missing thread yields an error matching ErrNotFound.
func (c *Client) GetThread(ctx context.Context, id string) (*domain.Thread, error) {
	data, err := c.get(ctx, "/api/emails/thread/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread %s: %w", id, err)
	}
	t, err := adapter.DecodeThread(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode thread %s: %w", id, err)
	}
	return t, nil
}

// ListByCategory fetches a page of one category. All maps to the unfiltered
// listing; any other name is sent to the server as-is.
func (c *Client) ListByCategory(ctx context.Context, cat domain.Category, page, pageSize int) ([]domain.Message, error) {
	if cat == domain.CategoryAll || cat == "" {
		p, err := c.ListMessages(ctx, page, pageSize, "")
		if err != nil {
			return nil, err
		}
		return p.Messages, nil
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(max(page, 1)))
	q.Set("max_results", strconv.Itoa(pageSize))

	data, err := c.get(ctx, "/api/emails/labeled/"+url.PathEscape(string(cat)), q)
	if err != nil {
		return nil, fmt.Errorf("failed to list category %q: %w", cat, err)
	}
	return c.decodeList(data, string(cat))
}

// Search runs a semantic search. A blank query returns no results without
// calling the server.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	data, err := c.post(ctx, "/api/emails/semantic-search", nil, map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	return c.decodeList(data, "search")
}

// Sync asks the backend to re-fetch mail. It returns once the request is
// accepted; completion is not signaled.
func (c *Client) Sync(ctx context.Context) error {
	if _, err := c.post(ctx, "/api/emails/sync", nil, nil); err != nil {
		return fmt.Errorf("failed to trigger sync: %w", err)
	}
	return nil
}

// ListNewSince fetches messages that arrived after since. An empty since
// omits the parameter and the server applies its default lookback window.
func (c *Client) ListNewSince(ctx context.Context, since string, maxResults int) (domain.NewArrivals, error) {
	q := url.Values{}
	if since != "" {
		q.Set("last_checked_timestamp", since)
	}
	if maxResults > 0 {
		q.Set("max_results", strconv.Itoa(maxResults))
	}

	data, err := c.get(ctx, "/api/emails/new", q)
	if err != nil {
		return domain.NewArrivals{}, fmt.Errorf("failed to check new messages: %w", err)
	}
	na, err := adapter.DecodeNewArrivals(data)
	if err != nil {
		return domain.NewArrivals{}, fmt.Errorf("failed to decode new messages: %w", err)
	}
	return na, nil
}

// Reply is an outgoing message. ThreadID and InReplyTo make it a reply.
type Reply struct {
	To         []string `json:"to"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	CC         []string `json:"cc,omitempty"`
	BCC        []string `json:"bcc,omitempty"`
	ThreadID   string   `json:"thread_id,omitempty"`
	HTML       bool     `json:"html"`
	InReplyTo  string   `json:"in_reply_to,omitempty"`
	References []string `json:"references,omitempty"`
}

type SentMessage struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
	Success   bool   `json:"success"`
}

// SendReply sends r through the backend.
func (c *Client) SendReply(ctx context.Context, r Reply) (SentMessage, error) {
	if len(r.To) == 0 {
		return SentMessage{}, errors.New("reply has no recipients")
	}
	data, err := c.post(ctx, "/api/emails/send", nil, r)
	if err != nil {
		return SentMessage{}, fmt.Errorf("failed to send reply: %w", err)
	}
	var sent SentMessage
	if err := json.Unmarshal(data, &sent); err != nil {
		return SentMessage{}, fmt.Errorf("failed to decode send response: %w", &ParseError{What: "send response", Err: err})
	}
	return sent, nil
}

// Similar returns threads similar to threadID carrying targetLabel.
func (c *Client) Similar(ctx context.Context, threadID, targetLabel string, topK int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("thread_id", threadID)
	if targetLabel != "" {
		q.Set("target_label", targetLabel)
	}
	if topK > 0 {
		q.Set("top_k", strconv.Itoa(topK))
	}
	return c.opaque(ctx, "/api/emails/similar", q, "similar threads")
}

// SimilarMulti returns similar threads across all match categories.
func (c *Client) SimilarMulti(ctx context.Context, threadID string, topK int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("thread_id", threadID)
	if topK > 0 {
		q.Set("top_k", strconv.Itoa(topK))
	}
	return c.opaque(ctx, "/api/emails/similar-multi", q, "similar threads")
}

// JobCandidates returns candidates matched to a job posting thread.
func (c *Client) JobCandidates(ctx context.Context, jobThreadID string) (json.RawMessage, error) {
	return c.opaque(ctx, "/api/emails/matches/job/"+url.PathEscape(jobThreadID)+"/candidates", nil, "job candidates")
}

// CandidateJobs returns job postings matched to a candidate thread.
func (c *Client) CandidateJobs(ctx context.Context, threadID string) (json.RawMessage, error) {
	return c.opaque(ctx, "/api/emails/matches/jobs/"+url.PathEscape(threadID), nil, "candidate jobs")
}

// MatchKind selects the direction of a match history lookup.
type MatchKind string

const (
	MatchJobToCandidate MatchKind = "job_to_candidate"
	MatchCandidateToJob MatchKind = "candidate_to_job"
)

// MatchHistory returns previously generated matches for threadID, most
// recent first.
func (c *Client) MatchHistory(ctx context.Context, threadID string, kind MatchKind, limit int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("match_type", string(kind))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.opaque(ctx, "/api/emails/matches/history/"+url.PathEscape(threadID), q, "match history")
}

func (c *Client) opaque(ctx context.Context, path string, q url.Values, what string) (json.RawMessage, error) {
	data, err := c.get(ctx, path, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("failed to decode %s: %w", what, &ParseError{What: what})
	}
	return json.RawMessage(data), nil
}

// decodeList adapts a list payload. A shape mismatch degrades to an empty
// list so one malformed category does not blank the dashboard.
func (c *Client) decodeList(data []byte, what string) ([]domain.Message, error) {
	msgs, err := adapter.DecodeMessages(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			c.log.WithError(err).WithField("list", what).Warn("unexpected list payload, using empty list")
			return []domain.Message{}, nil
		}
		return nil, err
	}
	return msgs, nil
}
