package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lu-zhengda/mailtriage/internal/adapter"
	"github.com/lu-zhengda/mailtriage/internal/domain"
	"github.com/lu-zhengda/mailtriage/internal/store"
)

const defaultNotificationLimit = 50

var _ store.Store = (*DB)(nil)

// RecordArrivals stores msgs as notified at the given time. Messages already
// recorded are skipped. Returns the number of new rows.
func (s *DB) RecordArrivals(ctx context.Context, msgs []domain.Message, at time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	added := 0
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		var received string
		if !m.Date.IsZero() {
			received = m.Date.UTC().Format(time.RFC3339)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (message_id, thread_id, subject, sender, received_at, notified_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(message_id) DO NOTHING`,
			m.ID, m.ThreadID, m.Subject, adapter.FormatSender(m.From),
			received, at.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to record notification %s: %w", m.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit notifications: %w", err)
	}
	return added, nil
}

// ListNotifications returns recorded arrivals, most recent first. A
// non-empty Query filters on subject and sender.
func (s *DB) ListNotifications(ctx context.Context, opts store.ListNotificationOptions) ([]store.NotificationRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	query := `
		SELECT message_id, thread_id, subject, sender, received_at, notified_at
		FROM notifications`
	var args []any
	if q := strings.TrimSpace(opts.Query); q != "" {
		query += ` WHERE subject LIKE ? OR sender LIKE ?`
		like := "%" + q + "%"
		args = append(args, like, like)
	}
	query += ` ORDER BY notified_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var records []store.NotificationRecord
	for rows.Next() {
		var r store.NotificationRecord
		var received, notified string
		if err := rows.Scan(&r.MessageID, &r.ThreadID, &r.Subject, &r.Sender, &received, &notified); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if received != "" {
			r.ReceivedAt, _ = time.Parse(time.RFC3339, received)
		}
		r.NotifiedAt, err = time.Parse(time.RFC3339, notified)
		if err != nil {
			return nil, fmt.Errorf("failed to parse notification time: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return records, nil
}
