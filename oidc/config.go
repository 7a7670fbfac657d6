package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/verato-io/rely/internal/strutils"
)

// Config represents the configuration for an OIDC relying party using the
// implicit/hybrid id_token flow. A Config is immutable after construction:
// the callback validation state machine only ever reads it, which keeps the
// machine pure and independently testable.
type Config struct {
	// ClientID is the relying party's client identifier, used as the
	// required id_token audience.
	ClientID string

	// Issuer is a case-sensitive URL using the https (or http, for tests)
	// scheme that contains scheme, host, and optionally, port number and
	// path components and no query or fragment components. An id_token's
	// iss claim must equal it, modulo a trailing slash.
	Issuer string

	// SupportedSigningAlgs is the allow-list of id_token signing
	// algorithms. Tokens declaring any other alg are rejected before their
	// signatures are even considered. Supported values: RS256, RS384,
	// RS512, ES256, ES384, ES512, PS256, PS384, PS512, EdDSA
	SupportedSigningAlgs []Alg

	// RedirectURL is the relying party's callback URL the provider posts
	// authentication responses to.
	RedirectURL string

	// Scopes is a list of additional oidc scopes to request of the
	// provider. The required "openid" scope is always requested and should
	// not be part of this optional list.
	Scopes []string

	// ClockSkew is the tolerance applied when checking the id_token exp
	// claim. When zero, DefaultClockSkew is used.
	ClockSkew time.Duration

	// ProviderCA is an optional CA cert PEM to use when sending requests
	// to the provider.
	ProviderCA string
}

// NewConfig composes a new relying party config and validates it.
// Supported options: WithScopes, WithProviderCA, WithClockSkew
func NewConfig(issuer string, clientID string, supported []Alg, redirectURL string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:               issuer,
		ClientID:             clientID,
		SupportedSigningAlgs: supported,
		RedirectURL:          redirectURL,
		Scopes:               strutils.RemoveDuplicatesStable(opts.withScopes, false),
		ClockSkew:            opts.withClockSkew,
		ProviderCA:           opts.withProviderCA,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid relying party config: %w", op, err)
	}
	return c, nil
}

// Validate the config. Among other validations, it verifies the issuer is a
// well-formed URL, but it doesn't verify the issuer is discoverable via an
// http request.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	if c.ClientID == "" {
		return fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if c.Issuer == "" {
		return fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	}
	u, err := url.Parse(c.Issuer)
	if err != nil {
		return fmt.Errorf("%s: issuer %s is invalid (%s): %w", op, c.Issuer, err, ErrInvalidIssuer)
	}
	if !strutils.StrListContains([]string{"https", "http"}, u.Scheme) {
		return fmt.Errorf("%s: issuer %s scheme is not http or https: %w", op, c.Issuer, ErrInvalidIssuer)
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	if len(c.SupportedSigningAlgs) == 0 {
		return fmt.Errorf("%s: supported algorithms is empty: %w", op, ErrInvalidParameter)
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			return fmt.Errorf("%s: unsupported algorithm %s: %w", op, a, ErrInvalidParameter)
		}
	}
	if c.ClockSkew < 0 {
		return fmt.Errorf("%s: clock skew is negative: %w", op, ErrInvalidParameter)
	}
	return nil
}

// AlgAllowed reports whether the given JOSE alg header value is in the
// config's allow-list.
func (c *Config) AlgAllowed(alg string) bool {
	for _, a := range c.SupportedSigningAlgs {
		if string(a) == alg {
			return true
		}
	}
	return false
}

// IssuerEqual compares two issuer URLs with trailing-slash normalization,
// since providers are inconsistent about whether their issuer identifiers
// carry one.
func IssuerEqual(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

// HTTPClient returns a new http client configured with the config's
// ProviderCA if one was provided, otherwise the installed system CA chain.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	tr := cleanhttp.DefaultPooledTransport()
	if c.ProviderCA != "" {
		tlsConfig, err := tlsConfigForCA(c.ProviderCA)
		if err != nil {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = tlsConfig
	}
	return &http.Client{Transport: tr}, nil
}

// HTTPClientContext returns a new Context carrying the provided HTTP client.
// It sets the same context key used by the github.com/coreos/go-oidc and
// golang.org/x/oauth2 packages, so the returned context works for those
// packages as well.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	return oidc.ClientContext(ctx, client)
}

// configOptions is the set of available options for NewConfig
type configOptions struct {
	withScopes     []string
	withProviderCA string
	withClockSkew  time.Duration
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{}
}

// getConfigOpts gets the config defaults and applies the opt overrides
// passed in
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes for the config
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithProviderCA provides an optional CA cert PEM for the config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithClockSkew provides an optional clock skew tolerance for id_token
// expiry checking.
func WithClockSkew(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withClockSkew = d
		}
	}
}
