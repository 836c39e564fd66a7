package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nourish/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		eventType  string
		wantStatus types.SubscriptionStatus
		wantOK     bool
	}{
		{types.EventInitialPurchase, types.SubStatusActive, true},
		{types.EventRenewal, types.SubStatusActive, true},
		{types.EventBillingIssue, types.SubStatusPastDue, true},
		{types.EventCancellation, types.SubStatusCancelled, true},
		{types.EventExpiration, types.SubStatusExpired, true},

		// TRANSFER is handled structurally, never via status mapping.
		{types.EventTransfer, "", false},

		{"PRODUCT_CHANGE", "", false},
		{"SUBSCRIBER_ALIAS", "", false},
		{"initial_purchase", "", false}, // case-sensitive
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			status, ok := Classify(tt.eventType)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}
