package oidc

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/verato-io/rely/internal/strutils"
)

// DefaultClockSkew is the tolerance applied to id_token expiry checks when a
// Config doesn't specify one. Chosen conservatively: wide enough for real
// clock drift between relying party and provider, narrow enough that an
// expired token is not usable for long.
const DefaultClockSkew = 1 * time.Minute

// registeredClaims are the claims every id_token must carry, in the order
// their presence is checked (the first missing one is reported).
var registeredClaims = []string{"iss", "sub", "aud", "exp", "iat"}

// IDTokenClaims is the decoded payload of a verified id_token. The
// registered claims are strongly typed; everything else the provider sent
// (profile claims like nickname, name, email, ...) passes through opaquely
// in Additional.
//
// An IDTokenClaims is only ever constructed from a token that has already
// passed signature and algorithm verification: ParseIDTokenClaims is the
// boundary where the untyped claim bag becomes a typed record, and callers
// must not build one from an unverified payload.
type IDTokenClaims struct {
	// Issuer is the iss claim: the provider's issuer identifier URL.
	Issuer string

	// Subject is the sub claim: the end user's identifier at the provider.
	Subject string

	// Audiences is the aud claim. The provider may send a single string or
	// an array; both decode into this slice.
	Audiences []string

	// Expiry is the exp claim.
	Expiry time.Time

	// IssuedAt is the iat claim.
	IssuedAt time.Time

	// Nonce is the nonce claim, echoing the pending Request's nonce. It
	// may be empty here; the callback validator is what enforces the
	// binding.
	Nonce string

	// Additional holds every other claim, untyped.
	Additional map[string]interface{}
}

// ParseIDTokenClaims converts a verified token's raw claim bag into a typed
// IDTokenClaims. It checks the registered claims for presence first (a
// missing one returns an error wrapping ErrMissingClaim naming the claim),
// then for well-formedness (a mistyped one returns an error wrapping
// ErrMalformedToken).
func ParseIDTokenClaims(all map[string]interface{}) (*IDTokenClaims, error) {
	const op = "oidc.ParseIDTokenClaims"
	if all == nil {
		return nil, fmt.Errorf("%s: claims are nil: %w", op, ErrNilParameter)
	}
	for _, name := range registeredClaims {
		if _, ok := all[name]; !ok {
			return nil, fmt.Errorf("%w %s", ErrMissingClaim, name)
		}
	}

	c := &IDTokenClaims{
		Additional: map[string]interface{}{},
	}
	var err error
	if c.Issuer, err = stringClaim(all, "iss"); err != nil {
		return nil, err
	}
	if c.Subject, err = stringClaim(all, "sub"); err != nil {
		return nil, err
	}
	if c.Audiences, err = audienceClaim(all["aud"]); err != nil {
		return nil, err
	}
	if c.Expiry, err = timeClaim(all, "exp"); err != nil {
		return nil, err
	}
	if c.IssuedAt, err = timeClaim(all, "iat"); err != nil {
		return nil, err
	}
	if _, ok := all["nonce"]; ok {
		if c.Nonce, err = stringClaim(all, "nonce"); err != nil {
			return nil, err
		}
	}
	for k, v := range all {
		switch k {
		case "iss", "sub", "aud", "exp", "iat", "nonce":
		default:
			c.Additional[k] = v
		}
	}
	return c, nil
}

// HasAudience reports whether the aud claim contains the given audience.
func (c *IDTokenClaims) HasAudience(aud string) bool {
	return strutils.StrListContains(c.Audiences, aud)
}

// Expired reports whether the token's exp has passed. Supports the WithNow
// and WithExpirySkew options; without WithExpirySkew the DefaultClockSkew is
// used.
func (c *IDTokenClaims) Expired(opt ...Option) bool {
	opts := getClaimsOpts(opt...)
	now := time.Now()
	if opts.withNowFunc != nil {
		now = opts.withNowFunc()
	}
	return !now.Before(c.Expiry.Add(opts.withExpirySkew))
}

// claimsJSON is used for the typed portion of an IDTokenClaims' JSON form.
type claimsJSON struct {
	Issuer   string      `json:"iss"`
	Subject  string      `json:"sub"`
	Audience interface{} `json:"aud"`
	Expiry   int64       `json:"exp"`
	IssuedAt int64       `json:"iat"`
	Nonce    string      `json:"nonce,omitempty"`
}

// MarshalJSON implements json.Marshaler, flattening the typed claims and
// Additional back into a single JSON object so an authenticated session
// record round-trips.
func (c *IDTokenClaims) MarshalJSON() ([]byte, error) {
	const op = "IDTokenClaims.MarshalJSON"
	all := make(map[string]interface{}, len(c.Additional)+6)
	for k, v := range c.Additional {
		all[k] = v
	}
	all["iss"] = c.Issuer
	all["sub"] = c.Subject
	all["aud"] = c.Audiences
	all["exp"] = c.Expiry.Unix()
	all["iat"] = c.IssuedAt.Unix()
	if c.Nonce != "" {
		all["nonce"] = c.Nonce
	}
	data, err := json.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to marshal claims: %w", op, err)
	}
	return data, nil
}

// UnmarshalJSON implements json.Unmarshaler via ParseIDTokenClaims, so a
// stored record is held to the same shape requirements as a fresh token.
func (c *IDTokenClaims) UnmarshalJSON(data []byte) error {
	const op = "IDTokenClaims.UnmarshalJSON"
	var all map[string]interface{}
	if err := json.Unmarshal(data, &all); err != nil {
		return fmt.Errorf("%s: unable to unmarshal claims: %w", op, err)
	}
	parsed, err := ParseIDTokenClaims(all)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	*c = *parsed
	return nil
}

func stringClaim(all map[string]interface{}, name string) (string, error) {
	s, ok := all[name].(string)
	if !ok {
		return "", fmt.Errorf("%w: claim %s is not a string", ErrMalformedToken, name)
	}
	return s, nil
}

func timeClaim(all map[string]interface{}, name string) (time.Time, error) {
	// encoding/json decodes JWT NumericDate values into float64
	switch v := all[name].(type) {
	case float64:
		return time.Unix(int64(v), 0), nil
	case int64:
		return time.Unix(v, 0), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: claim %s is not a numeric date", ErrMalformedToken, name)
		}
		return time.Unix(n, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: claim %s is not a numeric date", ErrMalformedToken, name)
	}
}

func audienceClaim(v interface{}) ([]string, error) {
	switch aud := v.(type) {
	case string:
		return []string{aud}, nil
	case []string:
		return aud, nil
	case []interface{}:
		auds := make([]string, 0, len(aud))
		for _, a := range aud {
			s, ok := a.(string)
			if !ok {
				return nil, fmt.Errorf("%w: claim aud contains a non-string member", ErrMalformedToken)
			}
			auds = append(auds, s)
		}
		return auds, nil
	default:
		return nil, fmt.Errorf("%w: claim aud is neither a string nor a list", ErrMalformedToken)
	}
}

// claimsOptions is the set of available options for IDTokenClaims functions
type claimsOptions struct {
	withNowFunc    func() time.Time
	withExpirySkew time.Duration
}

// claimsDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func claimsDefaults() claimsOptions {
	return claimsOptions{
		withExpirySkew: DefaultClockSkew,
	}
}

// getClaimsOpts gets the claims defaults and applies the opt overrides
// passed in
func getClaimsOpts(opt ...Option) claimsOptions {
	opts := claimsDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
