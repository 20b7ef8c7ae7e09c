// Package provider describes the remote triage backend the dashboard and
// commands depend on. *api.Client is the production implementation.
package provider

import (
	"context"
	"encoding/json"

	"github.com/lu-zhengda/mailtriage/internal/api"
	"github.com/lu-zhengda/mailtriage/internal/domain"
)

// MailProvider lists, searches and sends mail through the backend.
type MailProvider interface {
	ListMessages(ctx context.Context, page, pageSize int, cacheBust string) (api.Page, error)
	ListByCategory(ctx context.Context, cat domain.Category, page, pageSize int) ([]domain.Message, error)
	GetThread(ctx context.Context, id string) (*domain.Thread, error)
	Search(ctx context.Context, query string) ([]domain.Message, error)
	Sync(ctx context.Context) error
	ListNewSince(ctx context.Context, since string, maxResults int) (domain.NewArrivals, error)
	SendReply(ctx context.Context, r api.Reply) (api.SentMessage, error)
}

// MatchProvider exposes the backend's similarity and matching endpoints.
// Payloads are passed through undecoded.
type MatchProvider interface {
	Similar(ctx context.Context, threadID, targetLabel string, topK int) (json.RawMessage, error)
	SimilarMulti(ctx context.Context, threadID string, topK int) (json.RawMessage, error)
	JobCandidates(ctx context.Context, jobThreadID string) (json.RawMessage, error)
	CandidateJobs(ctx context.Context, threadID string) (json.RawMessage, error)
	MatchHistory(ctx context.Context, threadID string, kind api.MatchKind, limit int) (json.RawMessage, error)
}

// LabelProvider reads and confirms the classifier's labels on a thread.
type LabelProvider interface {
	ThreadLabels(ctx context.Context, threadID string) ([]api.ThreadLabel, error)
	ConfirmLabel(ctx context.Context, threadID string, labelID int) error
}

// AutoReplyProvider manages the backend's automatic replies.
type AutoReplyProvider interface {
	AutoReplyConfig(ctx context.Context) (api.AutoReplyConfig, error)
	SetAutoReplyConfig(ctx context.Context, cfg api.AutoReplyConfig) (api.AutoReplyConfig, error)
	AutoReplyStatus(ctx context.Context) (api.AutoReplyStatus, error)
}

// AccountProvider covers login, logout and account-level reporting.
type AccountProvider interface {
	LoginURL(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (api.User, error)
	AnalyticsSummary(ctx context.Context) (api.Summary, error)
}

// Backend is everything the client needs from the remote service.
type Backend interface {
	MailProvider
	MatchProvider
	LabelProvider
	AutoReplyProvider
	AccountProvider
}

var _ Backend = (*api.Client)(nil)
