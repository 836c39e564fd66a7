package billing

import (
	"bytes"
	"encoding/json"
	"strconv"

	"nourish/internal/types"
)

// webhookEnvelope is the outer shape of a provider webhook payload. The event
// body is kept raw so its absence can be distinguished from a malformed body.
type webhookEnvelope struct {
	Event json.RawMessage `json:"event"`
}

// webhookEvent is the union of the fields carried by the provider's
// heterogeneous event shapes. Non-TRANSFER events populate app_user_id /
// product_id / expiration_at_ms; TRANSFER events carry transferred_to
// instead. expiration_at_ms stays raw so that non-numeric values are
// rejected with a field-specific reason instead of a generic decode error.
type webhookEvent struct {
	Type                 string                               `json:"type"`
	AppUserID            string                               `json:"app_user_id"`
	ProductID            string                               `json:"product_id"`
	ExpirationAtMs       json.RawMessage                      `json:"expiration_at_ms"`
	TransferredTo        []string                             `json:"transferred_to"`
	SubscriberAttributes map[string]types.SubscriberAttribute `json:"subscriber_attributes"`
}

// jsonNull is the literal the provider sends for explicitly-null fields.
var jsonNull = []byte("null")

// Normalize parses a raw provider webhook body into the canonical internal
// event shape. It trusts nothing beyond the fields it extracts.
//
// Failures are returned as *types.AppError with one validation code per
// reason and a message naming the offending field, so the entry point can
// map them to the provider-facing 400 while logs stay diagnosable.
//
// TRANSFER events take their user id from the FIRST entry of transferred_to;
// any further recipients are ignored. That mirrors the provider-side
// behavior this processor was built against and is intentionally not
// "fixed" here (see DESIGN.md).
func Normalize(raw []byte) (*types.NormalizedEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"request body is not a JSON object", err)
	}

	if len(env.Event) == 0 || bytes.Equal(env.Event, jsonNull) {
		return nil, types.NewAppError(types.ErrCodeValidationMissingEvent,
			"payload is missing the event object", nil)
	}

	var ev webhookEvent
	if err := json.Unmarshal(env.Event, &ev); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationMissingEvent,
			"event is not a well-formed object", err)
	}

	if ev.Type == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingEventType,
			"event.type must be a non-empty string", nil)
	}

	attrs := ev.SubscriberAttributes
	if attrs == nil {
		attrs = map[string]types.SubscriberAttribute{}
	}

	if ev.Type == types.EventTransfer {
		if len(ev.TransferredTo) == 0 || ev.TransferredTo[0] == "" {
			return nil, types.NewAppError(types.ErrCodeValidationNoTransferTargets,
				"event.transferred_to must be a non-empty list of user ids", nil)
		}
		return &types.NormalizedEvent{
			Type:       ev.Type,
			UserID:     ev.TransferredTo[0],
			ProductID:  types.TransferProductID,
			Attributes: attrs,
		}, nil
	}

	if ev.AppUserID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingAppUserID,
			"event.app_user_id must be a non-empty string", nil)
	}
	if ev.ProductID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingProductID,
			"event.product_id must be a non-empty string", nil)
	}

	expiresAtMs, err := parseExpirationMs(ev.ExpirationAtMs)
	if err != nil {
		return nil, err
	}

	return &types.NormalizedEvent{
		Type:        ev.Type,
		UserID:      ev.AppUserID,
		ProductID:   ev.ProductID,
		ExpiresAtMs: expiresAtMs,
		Attributes:  attrs,
	}, nil
}

// parseExpirationMs validates event.expiration_at_ms: absent and null are
// both accepted as "no expiry"; otherwise the value must be a non-negative
// number of millisecond-epoch time.
func parseExpirationMs(raw json.RawMessage) (*int64, error) {
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return nil, nil
	}

	ms, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidExpiration,
			"event.expiration_at_ms must be null or a number", err)
	}
	if ms < 0 {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidExpiration,
			"event.expiration_at_ms must not be negative", nil)
	}

	v := int64(ms)
	return &v, nil
}
