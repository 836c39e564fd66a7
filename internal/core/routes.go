package core

// WebhookPath is the provider-facing endpoint RevenueCat is configured to
// deliver to. It is registered for every HTTP method so the handler can
// answer non-POST requests with the provider contract's 405 body instead of
// chi's default.
const WebhookPath = "/webhooks/revenuecat"

// MountRoutes registers the global middleware chain and all routes.
//
// Middleware order matters:
//  1. Recoverer       - outermost, catches all panics.
//  2. RequestID       - correlation ID for tracing.
//  3. SecurityHeaders - present on every response, errors included.
//  4. RequestLogger   - structured logging with Authorization redacted.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))

	s.router.Handle(WebhookPath, s.Webhook)
	s.router.Get("/health", s.HandleHealth)
}
