/*
oidc is a package for relying parties that consume OpenID Connect id_tokens
issued via the implicit/hybrid flow with the form_post response mode.

It provides the primitives the callback package composes into a callback
endpoint: an immutable Config for the relying party, a Request representing
one pending authentication attempt (state + nonce + return-to target), a
Verifier that checks a compact JWT's structure, algorithm, and signature
against a KeyResolver, and a strongly typed IDTokenClaims model that is only
ever constructed from a verified token payload.

The package also exports a testing surface (StartTestProvider, TestSignJWT,
etc.) which implements a small OIDC identity provider suitable for testing
relying parties without a network dependency on a real provider.
*/
package oidc
