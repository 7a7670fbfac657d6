package oidc

import "errors"

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrIDGeneratorFailed = errors.New("id generation failed")
	ErrInvalidCACert     = errors.New("invalid CA certificate")
	ErrExpiredRequest    = errors.New("request is expired")
	ErrNotFound          = errors.New("not found")

	// The sentinel errors below classify callback validation rejections.
	// Their message text is part of the package's contract: hosts match on
	// it (and on KindOf) to distinguish failure modes, so it must remain
	// stable.

	// ErrNoPendingAuth is returned when the session holds no pending
	// authentication request: either no login was initiated or the pending
	// request expired.
	ErrNoPendingAuth = errors.New("state missing from the session")

	// ErrStateMissing is returned when the provider's response carries no
	// state value.
	ErrStateMissing = errors.New("state missing from the response")

	// ErrStateMismatch is returned when the response state does not equal
	// the pending request's state.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrMissingIDToken is returned when the provider's response carries no
	// id_token.
	ErrMissingIDToken = errors.New("id_token missing from the response")

	// ErrMalformedToken is returned when the id_token is not a structurally
	// valid compact JWT.
	ErrMalformedToken = errors.New("unexpected token")

	// ErrUnexpectedAlg is returned when the id_token header declares a
	// signing algorithm outside the configured allow-list.
	ErrUnexpectedAlg = errors.New("unexpected JWT alg received")

	// ErrInvalidSignature is returned when the id_token signature does not
	// verify under the resolved key.
	ErrInvalidSignature = errors.New("invalid id_token signature")

	// ErrMissingClaim is returned when a required registered claim (iss,
	// sub, aud, exp, iat) is absent from a verified id_token.
	ErrMissingClaim = errors.New("missing required JWT property")

	ErrInvalidIssuer       = errors.New("invalid issuer")
	ErrInvalidAudience     = errors.New("invalid audience")
	ErrExpiredToken        = errors.New("id_token is expired")
	ErrInvalidNonce        = errors.New("invalid nonce")
	ErrKeyResolutionFailed = errors.New("unable to resolve signing key")
)

// Kind is a stable, machine-checkable classification of a callback
// validation failure, suitable for error boundaries and log pipelines that
// should not match on message text.
type Kind string

const (
	KindNone                    Kind = ""
	KindStateMissingFromSession Kind = "state_missing_from_session"
	KindStateMissing            Kind = "state_missing"
	KindStateMismatch           Kind = "state_mismatch"
	KindTokenMissing            Kind = "token_missing"
	KindTokenMalformed          Kind = "token_malformed"
	KindUnexpectedAlgorithm     Kind = "unexpected_algorithm"
	KindSignatureInvalid        Kind = "signature_invalid"
	KindMissingClaim            Kind = "missing_claim"
	KindIssuerMismatch          Kind = "issuer_mismatch"
	KindAudienceMismatch        Kind = "audience_mismatch"
	KindTokenExpired            Kind = "token_expired"
	KindNonceMismatch           Kind = "nonce_mismatch"
	KindKeyResolutionFailed     Kind = "key_resolution_failed"
	KindUnknown                 Kind = "unknown"
)

// kindCatalog is ordered: KindOf reports the first match, so more specific
// sentinels must come before any they wrap.
var kindCatalog = []struct {
	err  error
	kind Kind
}{
	{ErrNoPendingAuth, KindStateMissingFromSession},
	{ErrStateMissing, KindStateMissing},
	{ErrStateMismatch, KindStateMismatch},
	{ErrMissingIDToken, KindTokenMissing},
	{ErrMalformedToken, KindTokenMalformed},
	{ErrUnexpectedAlg, KindUnexpectedAlgorithm},
	{ErrInvalidSignature, KindSignatureInvalid},
	{ErrMissingClaim, KindMissingClaim},
	{ErrInvalidIssuer, KindIssuerMismatch},
	{ErrInvalidAudience, KindAudienceMismatch},
	{ErrExpiredToken, KindTokenExpired},
	{ErrInvalidNonce, KindNonceMismatch},
	{ErrKeyResolutionFailed, KindKeyResolutionFailed},
}

// KindOf reports the Kind for a callback validation error. It unwraps, so it
// works on errors that have been annotated with additional context. A nil
// error reports KindNone and an unclassified error reports KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, c := range kindCatalog {
		if errors.Is(err, c.err) {
			return c.kind
		}
	}
	return KindUnknown
}
