package billing

import "nourish/internal/types"

// statusByEventType is the static mapping from provider event types to the
// internal subscription status. TRANSFER is deliberately absent: it is
// handled structurally by the normalizer and reconciler, never classified.
var statusByEventType = map[string]types.SubscriptionStatus{
	types.EventInitialPurchase: types.SubStatusActive,
	types.EventRenewal:         types.SubStatusActive,
	types.EventBillingIssue:    types.SubStatusPastDue,
	types.EventCancellation:    types.SubStatusCancelled,
	types.EventExpiration:      types.SubStatusExpired,
}

// Classify maps a provider event type to the internal subscription status.
// The second return value is false for any type outside the static table
// (including TRANSFER). Unrecognized types are not an error: the caller must
// acknowledge them with success so the provider stops redelivering.
func Classify(eventType string) (types.SubscriptionStatus, bool) {
	status, ok := statusByEventType[eventType]
	return status, ok
}
