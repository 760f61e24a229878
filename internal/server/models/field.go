package models

import "fmt"

// SecretField names one encrypted column of a user record.
type SecretField string

const (
	ProviderClientID     SecretField = "provider_client_id"
	ProviderClientSecret SecretField = "provider_client_secret"
	ProviderAccessToken  SecretField = "provider_access_token"
	ProviderRefreshToken SecretField = "provider_refresh_token"
	AIAPIKey             SecretField = "ai_api_key"
	PendingAuthVerifier  SecretField = "pending_auth_verifier"
)

// SecretFields lists every field in column order.
var SecretFields = []SecretField{
	ProviderClientID,
	ProviderClientSecret,
	ProviderAccessToken,
	ProviderRefreshToken,
	AIAPIKey,
	PendingAuthVerifier,
}

// Valid reports whether f is a known field. Field names end up in SQL, so
// only names from SecretFields are ever accepted.
func (f SecretField) Valid() bool {
	for _, known := range SecretFields {
		if f == known {
			return true
		}
	}
	return false
}

// ParseSecretField converts a client-supplied name into a SecretField.
func ParseSecretField(name string) (SecretField, error) {
	f := SecretField(name)
	if !f.Valid() {
		return "", fmt.Errorf("unknown secret field %q", name)
	}
	return f, nil
}
