package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/lu-zhengda/mailtriage/internal/domain"
	"github.com/sirupsen/logrus"
)

var errSyncPending = errors.New("sync not visible yet")

// Sync asks the backend to resync the mailbox. The resync runs
// asynchronously on the server.
func (d *Dashboard) Sync(ctx context.Context) error {
	if err := d.backend.Sync(ctx); err != nil {
		return d.report(fmt.Errorf("failed to start sync: %w", err), "sync")
	}
	d.log.Info("sync started")
	d.pushNotification(domain.Notification{Title: "Sync started", At: d.now()})
	return nil
}

// WaitForSync triggers a sync and polls the first page, bypassing caches,
// until its newest message changes or timeout elapses. It reports whether a
// change was seen. Polling stops on the first failed request; failures are
// not retried. The All tab and the active tab are refreshed afterwards.
func (d *Dashboard) WaitForSync(ctx context.Context, timeout time.Duration) (bool, error) {
	before, err := d.newestID(ctx)
	if err != nil {
		return false, d.report(err, "sync")
	}
	if err := d.Sync(ctx); err != nil {
		return false, err
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempts := uint(timeout/d.syncPoll) + 1
	var fetchErr error
	err = retry.Do(
		func() error {
			newest, err := d.newestID(wctx)
			if err != nil {
				fetchErr = err
				return retry.Unrecoverable(err)
			}
			if newest == before {
				return errSyncPending
			}
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(d.syncPoll),
		retry.MaxDelay(d.syncPoll),
		retry.MaxJitter(d.syncPoll/4),
		retry.Context(wctx),
		retry.OnRetry(func(n uint, err error) {
			d.log.WithFields(logrus.Fields{"attempt": n, "newest": before}).Debug("waiting for sync")
		}),
	)

	changed := err == nil
	switch {
	case fetchErr != nil && ctx.Err() == nil && wctx.Err() == nil:
		return false, d.report(fmt.Errorf("failed to poll sync: %w", fetchErr), "sync")
	case ctx.Err() != nil:
		return false, ctx.Err()
	}

	d.log.WithField("changed", changed).Info("sync wait finished")
	_ = d.Refresh(ctx, domain.CategoryAll)
	if active := d.Active(); active != domain.CategoryAll && active != domain.CategorySearchResults {
		_ = d.Refresh(ctx, active)
	}
	return changed, nil
}

func (d *Dashboard) newestID(ctx context.Context) (string, error) {
	page, err := d.backend.ListMessages(ctx, 1, d.pageSize, strconv.FormatInt(d.now().UnixNano(), 10))
	if err != nil {
		return "", err
	}
	if len(page.Messages) == 0 {
		return "", nil
	}
	return page.Messages[0].ID, nil
}
