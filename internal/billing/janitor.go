package billing

import (
	"context"
	"log/slog"
	"time"

	"nourish/internal/types"
)

// Janitor demotes stale duplicate ACTIVE subscriptions. The provider's
// authoritative ownership transfer can race with stale store state across
// two user accounts sharing one purchase (e.g. a shared Apple ID); running
// this pass on every new activation makes the store converge to at most one
// ACTIVE holder per product without waiting for the provider to emit a
// compensating cancellation for the old owner.
type Janitor struct {
	store    UserStore
	notifier CleanupNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewJanitor creates a Janitor. The notifier may be nil, in which case no
// cleanup notices are published.
func NewJanitor(store UserStore, notifier CleanupNotifier, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Cleanup demotes every ACTIVE subscription for productID held by a user
// other than currentUserID to CANCELLED with lastEvent=TRANSFER_CLEANUP,
// as one atomic batch.
//
// Cleanup never fails the caller: every error is logged and discarded.
// A legitimate activation must not be reported as failed to the provider
// because best-effort housekeeping hit a store error. The invariant it
// enforces is eventual: the next activation for the product re-runs it.
func (j *Janitor) Cleanup(ctx context.Context, currentUserID, productID string) {
	ids, err := j.store.ListActiveSubscribers(ctx, productID)
	if err != nil {
		j.logger.ErrorContext(ctx, "duplicate cleanup query failed (ignored)",
			"product_id", productID,
			"current_user_id", currentUserID,
			"error", err,
		)
		return
	}

	duplicates := ids[:0:0]
	for _, id := range ids {
		if id != currentUserID {
			duplicates = append(duplicates, id)
		}
	}

	if len(duplicates) == 0 {
		j.logger.DebugContext(ctx, "no duplicate active subscriptions",
			"product_id", productID,
			"current_user_id", currentUserID,
		)
		return
	}

	if err := j.store.DemoteSubscriptions(ctx, duplicates, types.TransferCleanupEvent, j.now()); err != nil {
		j.logger.ErrorContext(ctx, "duplicate cleanup write failed (ignored)",
			"product_id", productID,
			"current_user_id", currentUserID,
			"duplicate_count", len(duplicates),
			"error", err,
		)
		return
	}

	j.logger.WarnContext(ctx, "demoted duplicate active subscriptions",
		"product_id", productID,
		"kept_user_id", currentUserID,
		"demoted_user_ids", duplicates,
	)

	if j.notifier != nil {
		j.notifier.NotifyCleanup(ctx, currentUserID, productID, duplicates)
	}
}
