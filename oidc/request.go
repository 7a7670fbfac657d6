package oidc

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultRequestExpirySkew defines a default time skew when checking a
// Request's expiration.
const DefaultRequestExpirySkew = 1 * time.Second

// Request represents one pending authentication attempt: the server-side
// context written when the relying party initiates a login and read back
// exactly once when the provider posts to the callback endpoint. Its State
// binds the callback to this attempt (CSRF protection) and its Nonce binds
// the issued id_token to this attempt (replay protection); the two are
// generated independently and are never equal.
type Request struct {
	// state is a unique identifier and an opaque value used to correlate
	// the callback with this pending attempt
	state string

	// nonce is a unique value echoed back inside the id_token issued for
	// this attempt
	nonce string

	// returnTo is the post-login redirect target. Optional; callers fall
	// back to a configured default when it's empty.
	returnTo string

	// expiration is the expiration time for the Request
	expiration time.Time

	// nowFunc is an optional time func used for testing expiration
	nowFunc func() time.Time
}

// NewRequest creates a new pending authentication Request with a generated
// State and Nonce. The expireIn bounds how long the attempt may remain
// pending. Supported options: WithReturnTo, WithNow
func NewRequest(expireIn time.Duration, opt ...Option) (*Request, error) {
	const op = "oidc.NewRequest"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	opts := getReqOpts(opt...)
	state, err := NewID(WithPrefix("st"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate the request's state: %w", op, err)
	}
	nonce, err := NewID(WithPrefix("n"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate the request's nonce: %w", op, err)
	}
	r := &Request{
		state:    state,
		nonce:    nonce,
		returnTo: opts.withReturnTo,
		nowFunc:  opts.withNowFunc,
	}
	r.expiration = r.now().Add(expireIn)
	return r, nil
}

// State is the opaque CSRF token correlating the callback with this attempt.
func (r *Request) State() string { return r.state }

// Nonce is the opaque replay-binding token the id_token must echo back.
func (r *Request) Nonce() string { return r.nonce }

// ReturnTo is the post-login redirect target. It may be empty.
func (r *Request) ReturnTo() string { return r.returnTo }

// IsExpired returns true if the request has expired. Supports the
// WithExpirySkew option and if none is provided it will use the
// DefaultRequestExpirySkew.
func (r *Request) IsExpired(opt ...Option) bool {
	opts := getReqOpts(opt...)
	return r.expiration.Before(r.now().Add(opts.withExpirySkew))
}

func (r *Request) now() time.Time {
	if r.nowFunc != nil {
		return r.nowFunc()
	}
	return time.Now() // fallback to the standard library
}

// reqJSON is the serialized form of a Request, so pending attempts can be
// written to a session store. nowFunc intentionally does not round-trip.
type reqJSON struct {
	State      string    `json:"state"`
	Nonce      string    `json:"nonce"`
	ReturnTo   string    `json:"return_to,omitempty"`
	Expiration time.Time `json:"expiration"`
}

// MarshalJSON implements json.Marshaler so a pending Request can be stored
// in a serializable session record.
func (r *Request) MarshalJSON() ([]byte, error) {
	return json.Marshal(reqJSON{
		State:      r.state,
		Nonce:      r.nonce,
		ReturnTo:   r.returnTo,
		Expiration: r.expiration,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Request) UnmarshalJSON(data []byte) error {
	const op = "Request.UnmarshalJSON"
	var j reqJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("%s: unable to unmarshal request: %w", op, err)
	}
	r.state = j.State
	r.nonce = j.Nonce
	r.returnTo = j.ReturnTo
	r.expiration = j.Expiration
	return nil
}

// reqOptions is the set of available options for Request functions
type reqOptions struct {
	withReturnTo   string
	withNowFunc    func() time.Time
	withExpirySkew time.Duration
}

// reqDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func reqDefaults() reqOptions {
	return reqOptions{
		withExpirySkew: DefaultRequestExpirySkew,
	}
}

// getReqOpts gets the request defaults and applies the opt overrides passed
// in
func getReqOpts(opt ...Option) reqOptions {
	opts := reqDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithReturnTo provides an optional post-login redirect target for a new
// Request.
func WithReturnTo(url string) Option {
	return func(o interface{}) {
		if o, ok := o.(*reqOptions); ok {
			o.withReturnTo = url
		}
	}
}
