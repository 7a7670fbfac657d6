package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"

	"github.com/verato-io/rely/oidc"
)

// DefaultReturnTo is where an accepted callback redirects when the pending
// request didn't record a target and no WithDefaultReturnTo option was
// given.
const DefaultReturnTo = "/"

// ErrorResponseFunc is used by FormPost to create an http response when the
// callback fails.
//
// The function receives the failure's stable kind and error (message
// included), or, when the provider itself reported an authentication error,
// that response instead. The function should use the http.ResponseWriter to
// send back whatever content (headers, html, JSON, etc) it wishes to the
// client that originated the oidc flow. Status code and rendering are the
// host's decision; the kind and message are this package's contract.
type ErrorResponseFunc func(kind oidc.Kind, respErr *AuthErrorResponse, e error, w http.ResponseWriter, req *http.Request)

// FormPost creates an oidc implicit flow callback handler for the form_post
// response mode. For each inbound POST it locates the end user's session via
// the SessionProvider, validates the posted response against the session's
// pending authentication request, and either commits the authenticated
// session and redirects (302) to the pending request's return-to target, or
// hands the failure to eFn with the session left untouched.
//
// Supported options: WithDefaultReturnTo, WithLogger
func FormPost(ctx context.Context, v *Validator, sessions SessionProvider, eFn ErrorResponseFunc, opt ...oidc.Option) (http.HandlerFunc, error) {
	const op = "callback.FormPost"
	if v == nil {
		return nil, fmt.Errorf("%s: validator is nil: %w", op, oidc.ErrNilParameter)
	}
	if sessions == nil {
		return nil, fmt.Errorf("%s: session provider is nil: %w", op, oidc.ErrNilParameter)
	}
	if eFn == nil {
		return nil, fmt.Errorf("%s: error response func is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getFormPostOpts(opt...)

	return func(w http.ResponseWriter, req *http.Request) {
		resp, err := ReadResponse(req)
		if err != nil {
			eFn(oidc.KindUnknown, nil, fmt.Errorf("%s: unable to read callback response: %w", op, err), w, req)
			return
		}

		// a provider-reported failure carries no artifacts to validate
		if respErr := resp.authError(); respErr != nil {
			if opts.withLogger != nil {
				opts.withLogger.Error("provider reported authentication error", "error", respErr.Error, "description", respErr.Description)
			}
			eFn(oidc.KindNone, respErr, nil, w, req)
			return
		}

		store, err := sessions.Session(req)
		if err != nil {
			eFn(oidc.KindUnknown, nil, fmt.Errorf("%s: unable to find session: %w", op, err), w, req)
			return
		}
		pending, err := store.PendingAuth(ctx)
		if err != nil {
			eFn(oidc.KindUnknown, nil, fmt.Errorf("%s: unable to read pending auth: %w", op, err), w, req)
			return
		}

		claims, err := v.Validate(ctx, pending, resp)
		if err != nil {
			kind := oidc.KindOf(err)
			if opts.withLogger != nil {
				opts.withLogger.Error("callback rejected", "kind", kind, "error", err.Error())
			}
			eFn(kind, nil, err, w, req)
			return
		}

		if _, err := Complete(ctx, store, oidc.IDToken(resp.IDToken), claims); err != nil {
			eFn(oidc.KindUnknown, nil, err, w, req)
			return
		}

		returnTo := pending.ReturnTo()
		if returnTo == "" {
			returnTo = opts.withDefaultReturnTo
		}
		if opts.withLogger != nil {
			opts.withLogger.Info("callback accepted", "sub", claims.Subject, "return_to", returnTo)
		}
		http.Redirect(w, req, returnTo, http.StatusFound)
	}, nil
}

// formPostOptions is the set of available options for FormPost
type formPostOptions struct {
	withDefaultReturnTo string
	withLogger          hclog.Logger
}

// formPostDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func formPostDefaults() formPostOptions {
	return formPostOptions{
		withDefaultReturnTo: DefaultReturnTo,
	}
}

// getFormPostOpts gets the FormPost defaults and applies the opt overrides
// passed in
func getFormPostOpts(opt ...oidc.Option) formPostOptions {
	opts := formPostDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithDefaultReturnTo provides an optional fallback redirect target for
// accepted callbacks whose pending request didn't record one.
func WithDefaultReturnTo(url string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*formPostOptions); ok && url != "" {
			o.withDefaultReturnTo = url
		}
	}
}

// WithLogger provides an optional hclog.Logger for callback outcomes.
func WithLogger(l hclog.Logger) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*formPostOptions); ok {
			o.withLogger = l
		}
	}
}
