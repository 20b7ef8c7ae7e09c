package store

import (
	"context"
	"time"

	"github.com/lu-zhengda/mailtriage/internal/domain"
	"golang.org/x/oauth2"
)

// Session is the durable client-side state: bearer token, user id and the
// new-mail checkpoint. Token satisfies oauth2.TokenSource and reads storage
// on every call.
type Session interface {
	Token() (*oauth2.Token, error)
	SetToken(accessToken string) error
	UserID(ctx context.Context) (string, error)
	SetUserID(ctx context.Context, id string) error
	LastChecked(ctx context.Context) (string, error)
	SetLastChecked(ctx context.Context, ts string) error
	Clear(ctx context.Context) error
}

// KV is a string key/value table.
type KV interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}

// NotificationLog records arrivals surfaced by the notifier.
type NotificationLog interface {
	RecordArrivals(ctx context.Context, msgs []domain.Message, at time.Time) (int, error)
	ListNotifications(ctx context.Context, opts ListNotificationOptions) ([]NotificationRecord, error)
}

// Store is the local database.
type Store interface {
	KV
	NotificationLog
	Close() error
}

type ListNotificationOptions struct {
	Query  string
	Limit  int
	Offset int
}

// NotificationRecord is one arrival surfaced to the user.
type NotificationRecord struct {
	MessageID  string
	ThreadID   string
	Subject    string
	Sender     string
	ReceivedAt time.Time
	NotifiedAt time.Time
}
