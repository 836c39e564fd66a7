package billing

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"nourish/internal/types"
)

// Reconciler applies normalized webhook events to the user store. It is
// idempotent under at-least-once redelivery: re-applying the same event
// produces the same subscription record (only updatedAt moves).
type Reconciler struct {
	store   UserStore
	janitor *Janitor
	logger  *slog.Logger
	now     func() time.Time // injectable clock for tests
}

// NewReconciler creates a Reconciler backed by the given store. The janitor
// may be nil, in which case duplicate cleanup after activations is skipped.
func NewReconciler(store UserStore, janitor *Janitor, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:   store,
		janitor: janitor,
		logger:  logger,
		now:     time.Now,
	}
}

// Reconcile applies one normalized event.
//
// TRANSFER events only refresh the denormalized referral code on the target
// user; subscription state for transfer recipients is left to the follow-up
// INITIAL_PURCHASE/RENEWAL the provider emits for the new owner.
//
// Events whose type has no status mapping are logged and acknowledged
// without a write: the provider retries on non-success, and an
// unrecognized-but-harmless type must not retry forever.
//
// Store failures surface as errors so the entry point answers 5xx and the
// provider redelivers; every write here is safe to re-run.
func (r *Reconciler) Reconcile(ctx context.Context, ev *types.NormalizedEvent) error {
	if ev.Type == types.EventTransfer {
		return r.updateReferralCode(ctx, ev)
	}

	status, ok := Classify(ev.Type)
	if !ok {
		r.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", ev.Type,
			"user_id", ev.UserID,
		)
		return nil
	}

	rec := types.SubscriptionRecord{
		Status:    status,
		ProductID: ev.ProductID,
		ExpiresAt: expiryFromMs(ev.ExpiresAtMs),
		Platform:  platformForProduct(ev.ProductID),
		LastEvent: ev.Type,
		UpdatedAt: r.now(),
	}

	if err := r.store.UpsertSubscription(ctx, ev.UserID, rec); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB,
			"failed to upsert subscription state", err)
	}

	r.logger.InfoContext(ctx, "subscription reconciled",
		"user_id", ev.UserID,
		"product_id", ev.ProductID,
		"status", string(status),
		"event_type", ev.Type,
	)

	// Referral bookkeeping is subordinate to subscription correctness:
	// failures here are logged and discarded, never propagated.
	if err := r.updateReferralCode(ctx, ev); err != nil {
		r.logger.WarnContext(ctx, "referral code update failed (ignored)",
			"user_id", ev.UserID,
			"error", err,
		)
	}

	if status == types.SubStatusActive && r.janitor != nil {
		// Best-effort by contract: Cleanup never returns an error.
		r.janitor.Cleanup(ctx, ev.UserID, ev.ProductID)
	}

	return nil
}

// updateReferralCode merge-writes the event's referral_code attribute onto
// the user document, but only when it differs from the stored value under
// trim/uppercase normalization, so identical codes do not churn updatedAt.
func (r *Reconciler) updateReferralCode(ctx context.Context, ev *types.NormalizedEvent) error {
	code, ok := ev.ReferralCode()
	if !ok {
		return nil
	}

	user, err := r.store.GetUser(ctx, ev.UserID)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB,
			"failed to read user for referral comparison", err)
	}

	var current string
	if user != nil {
		current = types.NormalizeReferralCode(user.ReferralCode)
	}
	if current == code {
		return nil
	}

	if err := r.store.UpdateReferralCode(ctx, ev.UserID, code, r.now()); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB,
			"failed to update referral code", err)
	}

	r.logger.InfoContext(ctx, "referral code updated",
		"user_id", ev.UserID,
	)
	return nil
}

// expiryFromMs converts a millisecond-epoch pointer to a UTC timestamp
// pointer. Nil stays nil (lifetime/no-expiry subscriptions).
func expiryFromMs(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}

// platformForProduct derives the purchase platform from the product id.
// Android product ids carry an "android" marker by store convention;
// everything else is assumed to be App Store.
func platformForProduct(productID string) types.Platform {
	if strings.Contains(strings.ToLower(productID), "android") {
		return types.PlatformAndroid
	}
	return types.PlatformIOS
}
