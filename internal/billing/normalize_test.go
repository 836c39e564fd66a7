package billing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nourish/internal/types"
)

// requireAppErr asserts err wraps a *types.AppError with the given code.
func requireAppErr(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, code, appErr.Code)
}

func TestNormalize_InitialPurchase(t *testing.T) {
	raw := []byte(`{
		"api_version": "1.0",
		"event": {
			"type": "INITIAL_PURCHASE",
			"id": "evt_123",
			"app_user_id": "user_1",
			"product_id": "nourish_monthly_ios",
			"expiration_at_ms": 1767225600000,
			"subscriber_attributes": {
				"referral_code": {"value": "friend42", "updated_at_ms": 1700000000000}
			}
		}
	}`)

	ev, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, types.EventInitialPurchase, ev.Type)
	assert.Equal(t, "user_1", ev.UserID)
	assert.Equal(t, "nourish_monthly_ios", ev.ProductID)
	require.NotNil(t, ev.ExpiresAtMs)
	assert.Equal(t, int64(1767225600000), *ev.ExpiresAtMs)

	code, ok := ev.ReferralCode()
	require.True(t, ok)
	assert.Equal(t, "FRIEND42", code)
}

func TestNormalize_NullExpiration(t *testing.T) {
	raw := []byte(`{"event":{"type":"RENEWAL","app_user_id":"u","product_id":"p","expiration_at_ms":null}}`)

	ev, err := Normalize(raw)
	require.NoError(t, err)
	assert.Nil(t, ev.ExpiresAtMs)
}

func TestNormalize_AbsentExpiration(t *testing.T) {
	raw := []byte(`{"event":{"type":"RENEWAL","app_user_id":"u","product_id":"p"}}`)

	ev, err := Normalize(raw)
	require.NoError(t, err)
	assert.Nil(t, ev.ExpiresAtMs)
}

func TestNormalize_FractionalExpirationTruncates(t *testing.T) {
	raw := []byte(`{"event":{"type":"RENEWAL","app_user_id":"u","product_id":"p","expiration_at_ms":1700000000000.9}}`)

	ev, err := Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, ev.ExpiresAtMs)
	assert.Equal(t, int64(1700000000000), *ev.ExpiresAtMs)
}

func TestNormalize_Transfer(t *testing.T) {
	raw := []byte(`{"event":{"type":"TRANSFER","transferred_to":["user_new","user_extra"]}}`)

	ev, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, types.EventTransfer, ev.Type)
	assert.Equal(t, "user_new", ev.UserID)
	assert.Equal(t, types.TransferProductID, ev.ProductID)
	assert.Nil(t, ev.ExpiresAtMs)
}

func TestNormalize_TransferIgnoresAppUserID(t *testing.T) {
	// TRANSFER payloads may still carry app_user_id for the old owner; the
	// normalized event must target the first transfer recipient.
	raw := []byte(`{"event":{"type":"TRANSFER","app_user_id":"user_old","transferred_to":["user_new"]}}`)

	ev, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "user_new", ev.UserID)
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCode types.ErrorCode
	}{
		{
			name:     "malformed json",
			raw:      `{not json`,
			wantCode: types.ErrCodeValidationInvalidJSON,
		},
		{
			name:     "empty object",
			raw:      `{}`,
			wantCode: types.ErrCodeValidationMissingEvent,
		},
		{
			name:     "null event",
			raw:      `{"event":null}`,
			wantCode: types.ErrCodeValidationMissingEvent,
		},
		{
			name:     "event is not an object",
			raw:      `{"event":"INITIAL_PURCHASE"}`,
			wantCode: types.ErrCodeValidationMissingEvent,
		},
		{
			name:     "missing type",
			raw:      `{"event":{"app_user_id":"u","product_id":"p"}}`,
			wantCode: types.ErrCodeValidationMissingEventType,
		},
		{
			name:     "missing app_user_id",
			raw:      `{"event":{"type":"RENEWAL","product_id":"p"}}`,
			wantCode: types.ErrCodeValidationMissingAppUserID,
		},
		{
			name:     "missing product_id",
			raw:      `{"event":{"type":"RENEWAL","app_user_id":"u"}}`,
			wantCode: types.ErrCodeValidationMissingProductID,
		},
		{
			name:     "non-numeric expiration",
			raw:      `{"event":{"type":"RENEWAL","app_user_id":"u","product_id":"p","expiration_at_ms":"soon"}}`,
			wantCode: types.ErrCodeValidationInvalidExpiration,
		},
		{
			name:     "negative expiration",
			raw:      `{"event":{"type":"RENEWAL","app_user_id":"u","product_id":"p","expiration_at_ms":-1}}`,
			wantCode: types.ErrCodeValidationInvalidExpiration,
		},
		{
			name:     "transfer without targets",
			raw:      `{"event":{"type":"TRANSFER"}}`,
			wantCode: types.ErrCodeValidationNoTransferTargets,
		},
		{
			name:     "transfer with empty target list",
			raw:      `{"event":{"type":"TRANSFER","transferred_to":[]}}`,
			wantCode: types.ErrCodeValidationNoTransferTargets,
		},
		{
			name:     "transfer with empty first target",
			raw:      `{"event":{"type":"TRANSFER","transferred_to":[""]}}`,
			wantCode: types.ErrCodeValidationNoTransferTargets,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Normalize([]byte(tt.raw))
			assert.Nil(t, ev)
			requireAppErr(t, err, tt.wantCode)
		})
	}
}

func TestNormalize_ReferralCodeAbsent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "no attributes",
			raw:  `{"event":{"type":"RENEWAL","app_user_id":"u","product_id":"p"}}`,
		},
		{
			name: "empty referral value",
			raw:  `{"event":{"type":"RENEWAL","app_user_id":"u","product_id":"p","subscriber_attributes":{"referral_code":{"value":"  "}}}}`,
		},
		{
			name: "other attributes only",
			raw:  `{"event":{"type":"RENEWAL","app_user_id":"u","product_id":"p","subscriber_attributes":{"$email":{"value":"a@b.c"}}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Normalize([]byte(tt.raw))
			require.NoError(t, err)
			_, ok := ev.ReferralCode()
			assert.False(t, ok)
		})
	}
}
