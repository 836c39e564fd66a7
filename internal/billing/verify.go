package billing

import (
	"crypto/subtle"
	"strings"
)

// bearerPrefix is the optional scheme prefix accepted (and ignored) on both
// the inbound Authorization header and the configured token. The payment
// provider sends the token either bare or as "Bearer <token>" depending on
// how the webhook was configured.
const bearerPrefix = "Bearer "

// VerifyToken reports whether the supplied Authorization header value matches
// the expected shared-secret token. It is a pure predicate with no side
// effects.
//
// Both values have an optional "Bearer " prefix stripped before comparison.
// Empty values never verify. A length mismatch short-circuits before the
// byte comparison (token length is not considered secret); equal-length
// values are compared in constant time.
func VerifyToken(authHeader, expectedToken string) bool {
	supplied := strings.TrimPrefix(authHeader, bearerPrefix)
	expected := strings.TrimPrefix(expectedToken, bearerPrefix)

	if supplied == "" || expected == "" {
		return false
	}
	if len(supplied) != len(expected) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) == 1
}
