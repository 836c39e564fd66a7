package types

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestSecretStringRedactsInFmt(t *testing.T) {
	secret := SecretString("tok_super_secret")

	formatted := fmt.Sprintf("token=%s value=%v", secret, secret)
	if formatted != "token=***REDACTED*** value=***REDACTED***" {
		t.Errorf("fmt output leaked the secret: %q", formatted)
	}
}

func TestSecretStringRedactsInJSON(t *testing.T) {
	payload := struct {
		Token SecretString `json:"token"`
	}{Token: "tok_super_secret"}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(data) != `{"token":"***REDACTED***"}` {
		t.Errorf("JSON output leaked the secret: %s", data)
	}
}

func TestSecretStringUnmask(t *testing.T) {
	secret := SecretString("tok_super_secret")
	if secret.Unmask() != "tok_super_secret" {
		t.Errorf("Unmask() = %q, want the raw value", secret.Unmask())
	}
}
