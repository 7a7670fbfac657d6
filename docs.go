// rely provides packages for OpenID Connect relying parties that use the
// implicit/hybrid id_token flow with the form_post response mode: building
// authentication requests, validating identity provider callbacks, and
// transitioning server-side sessions from pending to authenticated.
//
// The oidc package holds the relying party configuration, the pending
// authentication Request, id_token verification and claims; the callback
// package holds the response validation and the form_post http handler. A
// runnable relying party lives in examples/formpost.
package rely
