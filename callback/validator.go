package callback

import (
	"context"
	"fmt"

	"github.com/verato-io/rely/oidc"
)

// Validator is the callback validation state machine. Validate runs the
// checks an id_token response must pass, in a fixed order, and
// short-circuits on the first failure. It is stateless and concurrently
// safe: all per-attempt state arrives as parameters and the config is
// immutable.
type Validator struct {
	config   *oidc.Config
	verifier *oidc.Verifier
}

// NewValidator creates a Validator for the given relying party config,
// verifying tokens with the given verifier.
func NewValidator(c *oidc.Config, verifier *oidc.Verifier) (*Validator, error) {
	const op = "callback.NewValidator"
	if verifier == nil {
		return nil, fmt.Errorf("%s: verifier is nil: %w", op, oidc.ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return &Validator{config: c, verifier: verifier}, nil
}

// Validate checks the untrusted response against the session's pending
// authentication request. On acceptance it returns the verified claims; on
// rejection it returns an error wrapping one of the oidc sentinel errors
// (see oidc.KindOf), with a message suitable for logging.
//
// The check order is a security property, not cosmetic, because each check
// assumes the invariants the earlier ones established:
//
//  1. a pending request exists (and hasn't expired)
//  2. the response carries a state
//  3. the response state equals the pending state
//  4. the response carries an id_token
//  5. the id_token is a structurally valid compact JWT
//  6. its declared alg is in the configured allow-list
//  7. its signature verifies under the resolved key
//  8. the registered claims (iss, sub, aud, exp, iat) are present
//  9. iss equals the configured issuer
//  10. aud contains the configured client id
//  11. exp is in the future (within the clock skew tolerance)
//  12. the nonce claim equals the pending request's nonce
//
// A validation rejection never mutates the session; applying an accepted
// outcome is Complete's job.
func (v *Validator) Validate(ctx context.Context, pending *oidc.Request, resp *Response) (*oidc.IDTokenClaims, error) {
	if pending == nil || pending.IsExpired() {
		return nil, oidc.ErrNoPendingAuth
	}
	if resp == nil || resp.State == "" {
		return nil, oidc.ErrStateMissing
	}
	if resp.State != pending.State() {
		return nil, fmt.Errorf("%w, expected %s, got: %s", oidc.ErrStateMismatch, pending.State(), resp.State)
	}
	if resp.IDToken == "" {
		return nil, oidc.ErrMissingIDToken
	}

	// structure, algorithm allow-list, key resolution, and signature
	raw, err := v.verifier.Verify(ctx, oidc.IDToken(resp.IDToken), v.config.SupportedSigningAlgs)
	if err != nil {
		return nil, err
	}

	// required claim presence, then shape; only now does the claim bag
	// become a typed record
	claims, err := oidc.ParseIDTokenClaims(raw)
	if err != nil {
		return nil, err
	}

	if !oidc.IssuerEqual(v.config.Issuer, claims.Issuer) {
		return nil, fmt.Errorf("%w, expected %s, got: %s", oidc.ErrInvalidIssuer, v.config.Issuer, claims.Issuer)
	}
	if !claims.HasAudience(v.config.ClientID) {
		return nil, fmt.Errorf("%w, expected %s, got: %v", oidc.ErrInvalidAudience, v.config.ClientID, claims.Audiences)
	}

	var expireOpts []oidc.Option
	if v.config.ClockSkew > 0 {
		expireOpts = append(expireOpts, oidc.WithExpirySkew(v.config.ClockSkew))
	}
	if claims.Expired(expireOpts...) {
		return nil, fmt.Errorf("%w, expired at %s", oidc.ErrExpiredToken, claims.Expiry.UTC())
	}

	// the nonce binding is what prevents an otherwise fully valid token
	// issued for one login attempt from being replayed into another
	if claims.Nonce == "" || claims.Nonce != pending.Nonce() {
		return nil, fmt.Errorf("%w: the id_token nonce does not match the pending request's nonce", oidc.ErrInvalidNonce)
	}

	return claims, nil
}
