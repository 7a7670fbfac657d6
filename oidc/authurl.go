package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

// AuthURL generates a URL the relying party can redirect the user to, to
// kick off an implicit id_token flow with the provider. The URL requests
// response_type=id_token with response_mode=form_post and carries the
// pending Request's state and nonce, which the callback package later
// validates. The provider's authorization endpoint is taken from its
// discovery document.
//
// Supported options: WithUILocales
func (c *Config) AuthURL(ctx context.Context, r *Request, opt ...Option) (string, error) {
	const op = "Config.AuthURL"
	if r == nil {
		return "", fmt.Errorf("%s: request is nil: %w", op, ErrNilParameter)
	}
	if r.State() == r.Nonce() {
		return "", fmt.Errorf("%s: request state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	opts := getAuthURLOpts(opt...)

	client, err := c.HTTPClient()
	if err != nil {
		return "", fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	provider, err := oidc.NewProvider(HTTPClientContext(ctx, client), c.Issuer)
	if err != nil {
		return "", fmt.Errorf("%s: unable to discover issuer %s: %w", op, c.Issuer, err)
	}

	// The "openid" scope is required for oidc flows
	scopes := append([]string{oidc.ScopeOpenID}, c.Scopes...)

	oauth2Config := oauth2.Config{
		ClientID:    c.ClientID,
		RedirectURL: c.RedirectURL,
		Endpoint:    provider.Endpoint(),
		Scopes:      scopes,
	}
	authCodeOpts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", "id_token"),
		oauth2.SetAuthURLParam("response_mode", "form_post"),
		oauth2.SetAuthURLParam("nonce", r.Nonce()),
	}
	if len(opts.withUILocales) > 0 {
		tags := make([]string, 0, len(opts.withUILocales))
		for _, t := range opts.withUILocales {
			tags = append(tags, t.String())
		}
		authCodeOpts = append(authCodeOpts, oauth2.SetAuthURLParam("ui_locales", strings.Join(tags, " ")))
	}
	return oauth2Config.AuthCodeURL(r.State(), authCodeOpts...), nil
}

// authURLOptions is the set of available options for AuthURL
type authURLOptions struct {
	withUILocales []language.Tag
}

// authURLDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func authURLDefaults() authURLOptions {
	return authURLOptions{}
}

// getAuthURLOpts gets the AuthURL defaults and applies the opt overrides
// passed in
func getAuthURLOpts(opt ...Option) authURLOptions {
	opts := authURLDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithUILocales provides an optional list of BCP47 language tags for the
// provider's ui_locales parameter.
func WithUILocales(locales ...language.Tag) Option {
	return func(o interface{}) {
		if o, ok := o.(*authURLOptions); ok {
			o.withUILocales = locales
		}
	}
}
