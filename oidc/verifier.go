package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v3"
)

// Verifier checks a compact JWT's structure, declared algorithm, and
// signature, yielding the raw claim bag of a cryptographically verified
// token. It is stateless and never caches verdicts: every id_token is
// single-use by construction since the pending request it binds to is
// consumed, so there is nothing worth remembering. Key caching belongs to
// the KeyResolver.
type Verifier struct {
	resolver KeyResolver
}

// NewVerifier creates a Verifier backed by the given KeyResolver.
func NewVerifier(resolver KeyResolver) (*Verifier, error) {
	const op = "oidc.NewVerifier"
	if resolver == nil {
		return nil, fmt.Errorf("%s: key resolver is nil: %w", op, ErrNilParameter)
	}
	return &Verifier{resolver: resolver}, nil
}

// Verify parses the token, enforces the algorithm allow-list, resolves the
// verification key, and verifies the signature, in that order. The order is
// a security property: the allow-list is enforced before any key material is
// touched, so a token declaring a disallowed algorithm is rejected even if
// its signature would verify.
//
// On success it returns the verified payload's claims. Failures wrap
// ErrMalformedToken, ErrUnexpectedAlg, ErrKeyResolutionFailed, or
// ErrInvalidSignature.
func (v *Verifier) Verify(ctx context.Context, token IDToken, allowed []Alg) (map[string]interface{}, error) {
	const op = "Verifier.Verify"
	if token == "" {
		return nil, ErrMissingIDToken
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%s: allowed algorithms is empty: %w", op, ErrInvalidParameter)
	}

	jws, err := jose.ParseSigned(string(token))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(jws.Signatures) != 1 {
		return nil, fmt.Errorf("%w: expected one signature, got: %d", ErrMalformedToken, len(jws.Signatures))
	}
	header := jws.Signatures[0].Header

	if !algInList(allowed, Alg(header.Algorithm)) {
		return nil, fmt.Errorf("%w, expected %v, got: %s", ErrUnexpectedAlg, allowed, header.Algorithm)
	}

	key, err := v.resolver.ResolveKey(ctx, header.KeyID, Alg(header.Algorithm))
	if err != nil {
		if !errors.Is(err, ErrKeyResolutionFailed) {
			err = fmt.Errorf("%w: %v", ErrKeyResolutionFailed, err)
		}
		return nil, err
	}

	payload, err := jws.Verify(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

func algInList(allowed []Alg, a Alg) bool {
	for _, candidate := range allowed {
		if candidate == a {
			return true
		}
	}
	return false
}
