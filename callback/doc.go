/*
callback provides the relying party's side of an OIDC implicit flow
callback: a Validator implementing the ordered security checks an id_token
form_post response must pass (state match, algorithm allow-list, signature,
issuer, audience, expiry, nonce binding), a SessionStore contract for the
pending-to-authenticated session transition, and FormPost, an
http.HandlerFunc factory composing the two.

The validator's check order is load-bearing: each check establishes an
invariant the later checks assume, and every failure mode is reported with a
distinct, stable kind so hosts can tell an expired session from a forged
state from a replayed token.
*/
package callback
