package types

// redactedPlaceholder replaces secret values anywhere they could leak:
// fmt output, JSON config dumps, structured log entries.
const redactedPlaceholder = "***REDACTED***"

// SecretString holds a sensitive value such as the provider webhook token
// or the database URL. Both fmt and JSON rendering yield a placeholder, so
// a config struct can be logged whole without leaking credentials.
//
// Call Unmask only where the plaintext is genuinely consumed, such as the
// constant-time comparison against an inbound Authorization header.
type SecretString string

// String satisfies fmt.Stringer with the redacted placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON renders the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
