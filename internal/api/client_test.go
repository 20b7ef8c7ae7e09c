package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lu-zhengda/mailtriage/internal/domain"
	"golang.org/x/oauth2"
)

type mutableTokens struct {
	mu  sync.Mutex
	tok string
}

func (m *mutableTokens) set(tok string) {
	m.mu.Lock()
	m.tok = tok
	m.mu.Unlock()
}

func (m *mutableTokens) Token() (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == "" {
		return nil, errors.New("no token")
	}
	return &oauth2.Token{AccessToken: m.tok}, nil
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, &mutableTokens{tok: "tok-1"}, append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
}

func TestTokenReadPerCall(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("Authorization"))
		mu.Unlock()
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	tokens := &mutableTokens{tok: "first"}
	c := New(srv.URL, tokens, WithHTTPClient(srv.Client()))
	ctx := context.Background()

	if _, err := c.ListMessages(ctx, 1, 20, ""); err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	tokens.set("second")
	if _, err := c.ListMessages(ctx, 1, 20, ""); err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	tokens.set("")
	if _, err := c.ListMessages(ctx, 1, 20, ""); err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}

	want := []string{"Bearer first", "Bearer second", ""}
	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d Authorization = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRequestID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if _, err := uuid.Parse(r.Header.Get("X-Request-ID")); err != nil {
			t.Errorf("X-Request-ID = %q, want uuid", r.Header.Get("X-Request-ID"))
		}
		io.WriteString(w, `[]`)
	})
	if err := c.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
}

func TestUnauthorized(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"messages": [{"gmail_id": "leak"}]}`)
	})
	c.SetUnauthorizedHandler(func() { calls.Add(1) })

	msgs, err := c.ListByCategory(context.Background(), domain.CategoryEvent, 1, 20)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	if msgs != nil {
		t.Errorf("msgs = %v, want nil on 401", msgs)
	}
	if calls.Load() != 1 {
		t.Errorf("handler calls = %d, want 1", calls.Load())
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("StatusCode() = %d, want 401", StatusCode(err))
	}
}

func TestGetThreadNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/emails/thread/t-404" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail": "Thread not found"}`)
	})

	_, err := c.GetThread(context.Background(), "t-404")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	var he *HTTPError
	if !errors.As(err, &he) || he.Body != "Thread not found" {
		t.Errorf("HTTPError = %+v, want detail body", he)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("404 should not match ErrUnauthorized")
	}
}

func TestGetThread(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"thread_id": "t1", "subject": "Hi", "messages": [{"gmail_id": "m1", "sender": "A <a@example.com>"}]}`)
	})
	th, err := c.GetThread(context.Background(), "t1")
	if err != nil {
		t.Fatalf("GetThread() error: %v", err)
	}
	if th.ID != "t1" || th.MessageCount() != 1 {
		t.Errorf("thread = %+v", th)
	}
}

func TestServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := c.ListMessages(context.Background(), 1, 20, "")
	if StatusCode(err) != http.StatusInternalServerError {
		t.Fatalf("error = %v, want 500 HTTPError", err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized) {
		t.Error("500 matched a sentinel")
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, nil)
	_, err := c.ListMessages(context.Background(), 1, 20, "")
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
}

func TestSearch(t *testing.T) {
	t.Run("blank query makes no call", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		})
		for _, q := range []string{"", "   ", "\t\n"} {
			res, err := c.Search(context.Background(), q)
			if err != nil || res != nil {
				t.Errorf("Search(%q) = %v, %v, want nil, nil", q, res, err)
			}
		}
	})

	t.Run("posts query", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/emails/semantic-search" {
				t.Errorf("request = %s %s", r.Method, r.URL.Path)
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode body: %v", err)
			}
			if body["query"] != "go jobs" {
				t.Errorf("query = %q, want trimmed %q", body["query"], "go jobs")
			}
			io.WriteString(w, `{"results": [{"thread_id": "t1", "subject": "Go role"}]}`)
		})
		res, err := c.Search(context.Background(), "  go jobs ")
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(res) != 1 || res[0].ThreadID != "t1" {
			t.Errorf("results = %+v", res)
		}
	})
}

func TestListByCategory(t *testing.T) {
	tests := []struct {
		name     string
		cat      domain.Category
		wantPath string
	}{
		{name: "server category", cat: domain.CategoryJobPosting, wantPath: "/api/emails/labeled/Job%20Posting"},
		{name: "unknown passed through", cat: domain.Category("Follow-ups"), wantPath: "/api/emails/labeled/Follow-ups"},
		{name: "all", cat: domain.CategoryAll, wantPath: "/api/emails/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.EscapedPath() != tt.wantPath {
					t.Errorf("path = %q, want %q", r.URL.EscapedPath(), tt.wantPath)
				}
				if r.URL.Query().Get("max_results") != "25" || r.URL.Query().Get("page") != "2" {
					t.Errorf("query = %q", r.URL.RawQuery)
				}
				io.WriteString(w, `[{"gmail_id": "m1"}]`)
			})
			msgs, err := c.ListByCategory(context.Background(), tt.cat, 2, 25)
			if err != nil {
				t.Fatalf("ListByCategory() error: %v", err)
			}
			if len(msgs) != 1 {
				t.Errorf("len = %d, want 1", len(msgs))
			}
		})
	}
}

func TestListDegradesOnShapeMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"unexpected": true}`)
	})
	msgs, err := c.ListByCategory(context.Background(), domain.CategoryEvent, 1, 20)
	if err != nil {
		t.Fatalf("ListByCategory() error: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Errorf("msgs = %v, want empty non-nil list", msgs)
	}
}

func TestListMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") != "bust-1" {
			t.Errorf("t = %q, want bust-1", r.URL.Query().Get("t"))
		}
		io.WriteString(w, `[{"gmail_id": "m1"}, {"gmail_id": "m2"}]`)
	})

	p, err := c.ListMessages(context.Background(), 1, 2, "bust-1")
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if !p.HasMore || len(p.Messages) != 2 {
		t.Errorf("page = %+v, want 2 messages and HasMore", p)
	}

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("t") {
			t.Error("t should be omitted without a cache-bust token")
		}
		io.WriteString(w, `{"messages": [{"gmail_id": "m1"}, {"gmail_id": "m2"}], "has_more": false}`)
	})
	p, err = c.ListMessages(context.Background(), 1, 2, "")
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if p.HasMore {
		t.Error("server has_more=false should win")
	}
}

func TestListNewSince(t *testing.T) {
	tests := []struct {
		name  string
		since string
	}{
		{name: "omitted", since: ""},
		{name: "given", since: "2024-01-01T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if tt.since == "" && q.Has("last_checked_timestamp") {
					t.Error("last_checked_timestamp should be omitted")
				}
				if tt.since != "" && q.Get("last_checked_timestamp") != tt.since {
					t.Errorf("last_checked_timestamp = %q, want %q", q.Get("last_checked_timestamp"), tt.since)
				}
				io.WriteString(w, `{"count": 1, "emails": [{"gmail_id": "m1"}], "timestamp": "2024-01-01T00:05:00Z"}`)
			})
			na, err := c.ListNewSince(context.Background(), tt.since, 20)
			if err != nil {
				t.Fatalf("ListNewSince() error: %v", err)
			}
			if na.Count != 1 || na.Since != "2024-01-01T00:05:00Z" {
				t.Errorf("arrivals = %+v", na)
			}
		})
	}
}

func TestSendReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var got Reply
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if got.ThreadID != "t1" || got.To[0] != "a@example.com" || !strings.HasPrefix(got.Subject, "Re:") {
			t.Errorf("reply = %+v", got)
		}
		io.WriteString(w, `{"message_id": "m2", "thread_id": "t1", "success": true}`)
	})

	sent, err := c.SendReply(context.Background(), Reply{
		To: []string{"a@example.com"}, Subject: "Re: Hi", Body: "thanks", ThreadID: "t1",
	})
	if err != nil {
		t.Fatalf("SendReply() error: %v", err)
	}
	if !sent.Success || sent.MessageID != "m2" {
		t.Errorf("sent = %+v", sent)
	}

	if _, err := c.SendReply(context.Background(), Reply{Body: "x"}); err == nil {
		t.Error("SendReply() without recipients should fail")
	}
}

func TestLoginURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"auth_url": "https://accounts.example.com/o/oauth2/auth?x=1"}`)
	})
	u, err := c.LoginURL(context.Background())
	if err != nil {
		t.Fatalf("LoginURL() error: %v", err)
	}
	if !strings.HasPrefix(u, "https://accounts.example.com/") {
		t.Errorf("LoginURL() = %q", u)
	}
}

func TestAnalyticsSummary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"total_emails": 120, "unread_emails": 7, "weekly_change": -12.5,
			"top_senders": [{"email": "a@example.com", "count": 9}],
			"email_categories": {"Job Posting": 4, "Candidate": 3}}`)
	})
	s, err := c.AnalyticsSummary(context.Background())
	if err != nil {
		t.Fatalf("AnalyticsSummary() error: %v", err)
	}
	if s.TotalEmails != 120 || s.UnreadEmails != 7 || s.WeeklyChange != -12.5 {
		t.Errorf("summary = %+v", s)
	}
	if len(s.TopSenders) != 1 || s.EmailCategories["Job Posting"] != 4 {
		t.Errorf("summary = %+v", s)
	}
}

func TestOpaqueEndpoints(t *testing.T) {
	var mu sync.Mutex
	paths := map[string]bool{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.URL.EscapedPath()] = true
		mu.Unlock()
		io.WriteString(w, `{"matches": []}`)
	})
	ctx := context.Background()

	calls := []func() (json.RawMessage, error){
		func() (json.RawMessage, error) { return c.Similar(ctx, "t1", "Candidate", 5) },
		func() (json.RawMessage, error) { return c.SimilarMulti(ctx, "t1", 5) },
		func() (json.RawMessage, error) { return c.JobCandidates(ctx, "t1") },
		func() (json.RawMessage, error) { return c.CandidateJobs(ctx, "t1") },
		func() (json.RawMessage, error) { return c.MatchHistory(ctx, "t1", MatchJobToCandidate, 10) },
	}
	for i, call := range calls {
		raw, err := call()
		if err != nil {
			t.Fatalf("call %d error: %v", i, err)
		}
		if string(raw) != `{"matches": []}` {
			t.Errorf("call %d = %s", i, raw)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, p := range []string{
		"/api/emails/similar",
		"/api/emails/similar-multi",
		"/api/emails/matches/job/t1/candidates",
		"/api/emails/matches/jobs/t1",
		"/api/emails/matches/history/t1",
	} {
		if !paths[p] {
			t.Errorf("path %s not requested", p)
		}
	}
}

func TestMatchHistoryQuery(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RawQuery
		io.WriteString(w, `[]`)
	})
	if _, err := c.MatchHistory(context.Background(), "t1", MatchCandidateToJob, 5); err != nil {
		t.Fatal(err)
	}
	if got != "limit=5&match_type=candidate_to_job" {
		t.Errorf("query = %q", got)
	}
}

func TestThreadLabels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/labels/thread/t%2F1" {
			t.Errorf("path = %s", r.URL.EscapedPath())
		}
		io.WriteString(w, `[
			{"id": 3, "thread_id": "t/1", "label_id": 7, "confidence": 82, "is_confirmed": false,
			 "label": {"id": 7, "name": "Job Posting", "color": "#00ff00", "category": {"id": 1, "name": "Recruiting"}}},
			{"id": 4, "thread_id": "t/1", "label_id": 9, "confidence": 40, "is_confirmed": true, "label": {}}
		]`)
	})

	labels, err := c.ThreadLabels(context.Background(), "t/1")
	if err != nil {
		t.Fatalf("ThreadLabels() error: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("got %d labels, want 2", len(labels))
	}
	if labels[0].Name() != "Job Posting" || labels[0].Confidence != 82 || labels[0].Label.Category.Name != "Recruiting" {
		t.Errorf("labels[0] = %+v", labels[0])
	}
	if labels[1].Name() != "#9" || !labels[1].Confirmed {
		t.Errorf("labels[1] = %+v", labels[1])
	}
}

func TestConfirmLabel(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		notFound bool
	}{
		{"confirmed", http.StatusOK, false},
		{"unknown label", http.StatusNotFound, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var method, path string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				method, path = r.Method, r.URL.Path
				w.WriteHeader(tc.status)
				io.WriteString(w, `{"status": "success"}`)
			})
			err := c.ConfirmLabel(context.Background(), "t1", 7)
			if method != http.MethodPost || path != "/api/labels/thread/t1/confirm/7" {
				t.Errorf("request = %s %s", method, path)
			}
			if got := errors.Is(err, ErrNotFound); got != tc.notFound {
				t.Errorf("errors.Is(err, ErrNotFound) = %v, want %v (err %v)", got, tc.notFound, err)
			}
		})
	}
}

func TestAutoReplyConfig(t *testing.T) {
	var (
		mu     sync.Mutex
		stored = `{"enabled": true, "max_threads_per_check": 20, "auto_reply_signature": null}`
		puts   []AutoReplyConfig
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.URL.Path != "/api/auto-reply/config" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Method == http.MethodPut {
			var cfg AutoReplyConfig
			if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
				t.Errorf("decode body: %v", err)
			}
			puts = append(puts, cfg)
			data, _ := json.Marshal(cfg)
			stored = string(data)
		}
		io.WriteString(w, stored)
	})
	ctx := context.Background()

	cfg, err := c.AutoReplyConfig(ctx)
	if err != nil {
		t.Fatalf("AutoReplyConfig() error: %v", err)
	}
	if !cfg.Enabled || cfg.MaxThreadsPerCheck != 20 || cfg.Signature != "" {
		t.Errorf("config = %+v", cfg)
	}

	cfg.Enabled = false
	cfg.Signature = "Best,\nAda"
	got, err := c.SetAutoReplyConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("SetAutoReplyConfig() error: %v", err)
	}
	if got != cfg {
		t.Errorf("stored = %+v, want %+v", got, cfg)
	}
	if len(puts) != 1 || puts[0] != cfg {
		t.Errorf("puts = %+v", puts)
	}
}

func TestAutoReplyStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"enabled": true, "last_check_time": "2024-05-01T10:00:00Z", "total_replies_sent": 4,
			"rate_limit": {"status": "rate_limited", "retry_after": "2024-05-01T11:00:00Z"}}`)
	})
	s, err := c.AutoReplyStatus(context.Background())
	if err != nil {
		t.Fatalf("AutoReplyStatus() error: %v", err)
	}
	if s.TotalRepliesSent != 4 || s.RateLimit == nil || s.RateLimit.Status != "rate_limited" {
		t.Errorf("status = %+v", s)
	}
	if want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC); !s.LastCheckTime().Equal(want) {
		t.Errorf("LastCheckTime() = %v, want %v", s.LastCheckTime(), want)
	}
}
