package types

import (
	"strings"
	"time"
)

// NormalizeReferralCode canonicalizes a referral code for storage and
// comparison: whitespace trimmed, uppercased.
func NormalizeReferralCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SubscriberAttribute is a single provider-side subscriber attribute value.
// Attributes arrive on webhook events as a mapping of attribute name to
// {value, updated_at_ms}; only referral_code is currently consumed.
type SubscriberAttribute struct {
	Value       string `json:"value"`
	UpdatedAtMs *int64 `json:"updated_at_ms,omitempty"`
}

// NormalizedEvent is the canonical internal form of a provider webhook event.
// It is constructed once per request by the normalizer, is immutable, and is
// discarded at request end, never persisted.
//
// For TRANSFER events, UserID is the first entry of the provider's
// transferred_to list and ProductID is the TransferProductID placeholder.
type NormalizedEvent struct {
	Type        string
	UserID      string
	ProductID   string
	ExpiresAtMs *int64
	Attributes  map[string]SubscriberAttribute
}

// ReferralCode returns the trimmed, uppercased referral code attribute and
// whether one was present on the event.
func (e *NormalizedEvent) ReferralCode() (string, bool) {
	attr, ok := e.Attributes[AttrReferralCode]
	if !ok {
		return "", false
	}
	code := NormalizeReferralCode(attr.Value)
	if code == "" {
		return "", false
	}
	return code, true
}

// SubscriptionRecord is the subscription state embedded in each user
// document. It is mutated exclusively by the webhook processor via
// merge-writes and is never deleted, only transitioned between statuses.
type SubscriptionRecord struct {
	Status    SubscriptionStatus `json:"status"`
	ProductID string             `json:"productId"`
	ExpiresAt *time.Time         `json:"expiresAt"`
	Platform  Platform           `json:"platform"`
	LastEvent string             `json:"lastEvent"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// UserDocument is the subset of a user document the webhook processor reads
// and writes. Other profile fields are owned by the mobile client and are
// preserved by merge-write semantics.
type UserDocument struct {
	ID           string              `json:"id"`
	ReferralCode string              `json:"referralCode,omitempty"`
	Subscription *SubscriptionRecord `json:"subscription,omitempty"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}
