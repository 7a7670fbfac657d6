package oidc

import (
	"encoding/json"
)

// IDToken is an oidc id_token in compact JWT form. Its String and JSON
// representations are redacted, since a raw id_token is a bearer credential
// that must never leak into logs.
type IDToken string

// RedactedIDToken is the redacted string or json for an oidc id_token.
const RedactedIDToken = "[REDACTED: id_token]"

// String will redact the token.
func (t IDToken) String() string {
	return RedactedIDToken
}

// MarshalJSON will redact the token.
func (t IDToken) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedIDToken)
}
