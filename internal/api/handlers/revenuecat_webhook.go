// Package handlers contains the HTTP handler implementations for the Nourish
// webhook processor.
//
// The RevenueCat webhook handler is NOT behind auth middleware -- it is
// called directly by the provider. Security is a shared bearer token compared
// in constant time. Response bodies on this route are part of the provider
// contract and are written flat, bypassing the core envelope.
package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"nourish/internal/billing"
	"nourish/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a webhook payload (256 KB).
// RevenueCat payloads are small; the headroom covers subscriber attributes.
const maxWebhookBodySize = 256 * 1024

// Provider-facing response bodies. These exact strings are pinned by the
// upstream webhook configuration and must not change shape.
const (
	bodySuccess          = `{"success":true}`
	bodyMethodNotAllowed = `{"error":"Method not allowed"}`
	bodyMissingAuth      = `{"error":"Missing authorization header"}`
	bodyInvalidAuth      = `{"error":"Invalid authorization"}`
	bodyServerConfig     = `{"error":"Server configuration error"}`
	bodyInvalidPayload   = `{"error":"Invalid payload format"}`
	bodyInternalError    = `{"error":"Internal server error"}`
)

// Metric outcome labels for webhook deliveries.
const (
	outcomeSuccess      = "success"
	outcomeInvalidAuth  = "invalid_auth"
	outcomeInvalidInput = "invalid_payload"
	outcomeStoreFailure = "store_failure"
)

// EventReconciler applies a normalized webhook event to the user store.
// This is the subset of the billing reconciler the handler needs.
type EventReconciler interface {
	Reconcile(ctx context.Context, ev *types.NormalizedEvent) error
}

// EventRecorder records per-delivery telemetry. Implementations must be
// best-effort; the handler never fails a delivery over metrics.
type EventRecorder interface {
	RecordEvent(ctx context.Context, eventType, outcome string)
}

// RevenueCatWebhookHandler handles subscription lifecycle events delivered
// by RevenueCat.
type RevenueCatWebhookHandler struct {
	secret     func() string // resolves the shared webhook token at request time
	reconciler EventReconciler
	metrics    EventRecorder // optional
	logger     *slog.Logger
}

// NewRevenueCatWebhookHandler creates a handler. The secret provider is
// called per request so rotated tokens take effect without a restart; it
// returns "" when no token is configured. The metrics recorder may be nil.
func NewRevenueCatWebhookHandler(
	secret func() string,
	reconciler EventReconciler,
	metrics EventRecorder,
	logger *slog.Logger,
) *RevenueCatWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RevenueCatWebhookHandler{
		secret:     secret,
		reconciler: reconciler,
		metrics:    metrics,
		logger:     logger,
	}
}

// ServeHTTP processes one webhook delivery.
//
// Gatekeeping order is fixed: method, then header presence, then server
// configuration, then token comparison, then payload validation. Every
// rejection acknowledges nothing about the store; the provider retries on
// non-2xx, and each accepted event is safe to re-apply.
func (h *RevenueCatWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		h.logger.WarnContext(ctx, "webhook called with wrong method",
			"method", r.Method,
		)
		writeFlat(w, http.StatusMethodNotAllowed, bodyMethodNotAllowed)
		return
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		h.logger.WarnContext(ctx, "webhook missing authorization header")
		h.record(ctx, "unknown", outcomeInvalidAuth)
		writeFlat(w, http.StatusUnauthorized, bodyMissingAuth)
		return
	}

	expected := h.secret()
	if expected == "" {
		// Misconfiguration is ours, not the caller's. 5xx keeps the
		// provider retrying until the token is provisioned.
		h.logger.ErrorContext(ctx, "webhook auth token not configured")
		writeFlat(w, http.StatusInternalServerError, bodyServerConfig)
		return
	}

	if !billing.VerifyToken(authHeader, expected) {
		h.logger.WarnContext(ctx, "webhook authorization rejected")
		h.record(ctx, "unknown", outcomeInvalidAuth)
		writeFlat(w, http.StatusUnauthorized, bodyInvalidAuth)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read webhook body",
			"error", err,
		)
		h.record(ctx, "unknown", outcomeInvalidInput)
		writeFlat(w, http.StatusBadRequest, bodyInvalidPayload)
		return
	}

	ev, err := billing.Normalize(payload)
	if err != nil {
		// The specific reason stays server-side; the provider only ever
		// sees the flat 400 body.
		h.logger.WarnContext(ctx, "webhook payload rejected",
			"error", err,
		)
		h.record(ctx, "unknown", outcomeInvalidInput)
		writeFlat(w, http.StatusBadRequest, bodyInvalidPayload)
		return
	}

	h.logger.InfoContext(ctx, "processing webhook event",
		"event_type", ev.Type,
		"user_id", ev.UserID,
		"product_id", ev.ProductID,
	)

	if err := h.reconciler.Reconcile(ctx, ev); err != nil {
		h.logger.ErrorContext(ctx, "webhook event processing failed",
			"event_type", ev.Type,
			"user_id", ev.UserID,
			"error", err,
		)
		h.record(ctx, ev.Type, outcomeStoreFailure)
		writeFlat(w, http.StatusInternalServerError, bodyInternalError)
		return
	}

	h.record(ctx, ev.Type, outcomeSuccess)
	writeFlat(w, http.StatusOK, bodySuccess)
}

// record forwards delivery telemetry when a recorder is configured.
func (h *RevenueCatWebhookHandler) record(ctx context.Context, eventType, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordEvent(ctx, eventType, outcome)
	}
}

// writeFlat writes one of the fixed provider-facing JSON bodies.
func writeFlat(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
