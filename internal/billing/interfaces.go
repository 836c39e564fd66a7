// Package billing implements the subscription-webhook processing pipeline:
// token verification, payload normalization, event classification,
// reconciliation against the user store, and duplicate-subscription cleanup.
//
// The pipeline is fully synchronous within one request. Correctness under
// concurrent deliveries relies on the store's per-user atomic merge-writes
// and the janitor's single batched demotion, not on locks; ordering between
// deliveries is last-write-wins.
package billing

import (
	"context"
	"time"

	"nourish/internal/types"
)

// UserStore is the document-store surface the webhook pipeline needs.
// Implementations must provide merge-write semantics: writes touch only the
// named field, leaving the rest of the user document intact.
type UserStore interface {
	// GetUser returns the user document, or (nil, nil) if no document
	// exists for the id.
	GetUser(ctx context.Context, userID string) (*types.UserDocument, error)

	// UpsertSubscription merge-writes the subscription record into the
	// user document, creating the document if absent.
	UpsertSubscription(ctx context.Context, userID string, rec types.SubscriptionRecord) error

	// UpdateReferralCode merge-writes the denormalized referral code.
	UpdateReferralCode(ctx context.Context, userID string, code string, now time.Time) error

	// ListActiveSubscribers returns the ids of all users whose subscription
	// has the given product id and ACTIVE status.
	ListActiveSubscribers(ctx context.Context, productID string) ([]string, error)

	// DemoteSubscriptions sets status=CANCELLED and lastEvent on every
	// listed user's subscription in one atomic batch.
	DemoteSubscriptions(ctx context.Context, userIDs []string, lastEvent string, now time.Time) error
}

// CleanupNotifier receives a notice whenever the janitor demotes duplicate
// ACTIVE subscriptions. Implementations must be best-effort; the janitor
// does not inspect their outcome.
type CleanupNotifier interface {
	NotifyCleanup(ctx context.Context, keptUserID, productID string, demoted []string)
}
