package types

// SubscriptionStatus is the internal subscription lifecycle state stored on
// each user document. The mobile client gates feature access on this value;
// only the webhook processor writes it.
type SubscriptionStatus string

const (
	SubStatusActive    SubscriptionStatus = "ACTIVE"
	SubStatusPastDue   SubscriptionStatus = "PAST_DUE"
	SubStatusCancelled SubscriptionStatus = "CANCELLED"
	SubStatusExpired   SubscriptionStatus = "EXPIRED"
)

// Platform identifies the store a product was purchased on. Derived
// heuristically from the product id; defaults to iOS.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// Provider event type constants prevent magic strings in the webhook pipeline.
const (
	EventInitialPurchase = "INITIAL_PURCHASE"
	EventRenewal         = "RENEWAL"
	EventBillingIssue    = "BILLING_ISSUE"
	EventCancellation    = "CANCELLATION"
	EventExpiration      = "EXPIRATION"
	EventTransfer        = "TRANSFER"
)

// TransferProductID is the placeholder product id carried by normalized
// TRANSFER events, which have no product of their own.
const TransferProductID = "TRANSFER"

// TransferCleanupEvent is the synthetic lastEvent value written by the
// duplicate-subscription janitor when it demotes a stale ACTIVE record.
const TransferCleanupEvent = "TRANSFER_CLEANUP"

// AttrReferralCode is the subscriber attribute carrying the referral code
// denormalized onto the user document.
const AttrReferralCode = "referral_code"
