package oidc

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v3"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// DefaultKeyFetchTimeout bounds a single remote JWKS fetch, so a slow or
// unreachable provider rejects the callback attempt instead of hanging it.
const DefaultKeyFetchTimeout = 15 * time.Second

// KeyResolver resolves the public key an id_token's signature must verify
// under. Implementations are keyed by the token's JWS kid header (which may
// be empty) and must be concurrently safe, since a resolver is shared across
// callback requests. Failures, including network failures and unknown kids,
// must be reported as errors wrapping ErrKeyResolutionFailed.
type KeyResolver interface {
	ResolveKey(ctx context.Context, kid string, alg Alg) (crypto.PublicKey, error)
}

// StaticKeyResolver resolves keys from a local, fixed set. It is intended
// for providers with pinned keys and for tests.
type StaticKeyResolver struct {
	keys map[string]crypto.PublicKey
}

// NewStaticKeyResolver returns a StaticKeyResolver for the given keys,
// indexed by kid. A single key may be registered under the empty kid, in
// which case it also serves tokens that carry no kid header.
func NewStaticKeyResolver(keys map[string]crypto.PublicKey) (*StaticKeyResolver, error) {
	const op = "oidc.NewStaticKeyResolver"
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: no keys provided: %w", op, ErrInvalidParameter)
	}
	cp := make(map[string]crypto.PublicKey, len(keys))
	for k, v := range keys {
		if v == nil {
			return nil, fmt.Errorf("%s: key %q is nil: %w", op, k, ErrNilParameter)
		}
		cp[k] = v
	}
	return &StaticKeyResolver{keys: cp}, nil
}

// NewStaticKeyResolverPEM is like NewStaticKeyResolver but parses the given
// PEM-encoded x509 certificates or PKIX public keys.
func NewStaticKeyResolverPEM(pems map[string]string) (*StaticKeyResolver, error) {
	const op = "oidc.NewStaticKeyResolverPEM"
	keys := make(map[string]crypto.PublicKey, len(pems))
	for kid, p := range pems {
		key, err := parsePublicKeyPEM([]byte(p))
		if err != nil {
			return nil, fmt.Errorf("%s: unable to parse key %q: %w", op, kid, err)
		}
		keys[kid] = key
	}
	return NewStaticKeyResolver(keys)
}

// ResolveKey implements KeyResolver. When the token carries no kid and the
// resolver holds exactly one key, that key is returned.
func (r *StaticKeyResolver) ResolveKey(_ context.Context, kid string, _ Alg) (crypto.PublicKey, error) {
	if key, ok := r.keys[kid]; ok {
		return key, nil
	}
	if kid != "" {
		if key, ok := r.keys[""]; ok {
			return key, nil
		}
	}
	if kid == "" && len(r.keys) == 1 {
		for _, key := range r.keys {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: no key for kid %q", ErrKeyResolutionFailed, kid)
}

// DiscoveryKeyResolver resolves keys from the JSON Web Key Set a provider
// publishes via OIDC discovery. Resolved key sets are cached; an unknown kid
// triggers exactly one refetch (covering provider key rotation) and every
// remote fetch is bounded by a timeout, so key resolution can fail or
// succeed but never hang a callback request.
type DiscoveryKeyResolver struct {
	issuer       string
	jwksURL      string
	client       *http.Client
	fetchTimeout time.Duration
	logger       hclog.Logger

	mu   sync.RWMutex
	jwks *jose.JSONWebKeySet
}

// NewDiscoveryKeyResolver discovers the jwks_uri for the config's issuer and
// returns a resolver backed by it. The initial key set is fetched eagerly so
// configuration problems surface at startup rather than on the first
// callback. Supported options: WithKeyFetchTimeout, WithResolverLogger
func NewDiscoveryKeyResolver(ctx context.Context, c *Config, opt ...Option) (*DiscoveryKeyResolver, error) {
	const op = "oidc.NewDiscoveryKeyResolver"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	opts := getResolverOpts(opt...)
	client, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}

	// discovery is the only place the issuer's metadata document is needed
	provider, err := oidc.NewProvider(HTTPClientContext(ctx, client), c.Issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to discover issuer %s: %w", op, c.Issuer, err)
	}
	var metadata struct {
		JWKSURL string `json:"jwks_uri"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return nil, fmt.Errorf("%s: unable to read issuer metadata: %w", op, err)
	}
	if metadata.JWKSURL == "" {
		return nil, fmt.Errorf("%s: issuer %s published no jwks_uri: %w", op, c.Issuer, ErrKeyResolutionFailed)
	}

	r := &DiscoveryKeyResolver{
		issuer:       c.Issuer,
		jwksURL:      metadata.JWKSURL,
		client:       client,
		fetchTimeout: opts.withKeyFetchTimeout,
		logger:       opts.withLogger,
	}
	if err := r.fetchKeys(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// Issuer returns the issuer this resolver serves keys for.
func (r *DiscoveryKeyResolver) Issuer() string { return r.issuer }

// ResolveKey implements KeyResolver.
func (r *DiscoveryKeyResolver) ResolveKey(ctx context.Context, kid string, alg Alg) (crypto.PublicKey, error) {
	const op = "DiscoveryKeyResolver.ResolveKey"
	if key, ok := r.cachedKey(kid, alg); ok {
		return key, nil
	}

	// Unknown kid: the provider may have rotated its keys since the cached
	// fetch. Refetch once; a second miss is terminal for this attempt.
	if r.logger != nil {
		r.logger.Debug("unknown key id, refetching JWKS", "issuer", r.issuer, "kid", kid)
	}
	if err := r.fetchKeys(ctx); err != nil {
		merr := multierror.Append(fmt.Errorf("no cached key for kid %q", kid), err)
		return nil, fmt.Errorf("%s: %v: %w", op, merr, ErrKeyResolutionFailed)
	}
	if key, ok := r.cachedKey(kid, alg); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%s: %w: issuer %s has no key for kid %q", op, ErrKeyResolutionFailed, r.issuer, kid)
}

// cachedKey finds a verification key in the cached JWKS. A token without a
// kid matches a lone signing key; otherwise kids must match exactly.
func (r *DiscoveryKeyResolver) cachedKey(kid string, alg Alg) (crypto.PublicKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.jwks == nil {
		return nil, false
	}
	var candidates []jose.JSONWebKey
	for _, k := range r.jwks.Keys {
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		if k.Algorithm != "" && k.Algorithm != string(alg) {
			continue
		}
		if kid != "" {
			if k.KeyID == kid {
				return k.Key, true
			}
			continue
		}
		candidates = append(candidates, k)
	}
	if kid == "" && len(candidates) == 1 {
		return candidates[0].Key, true
	}
	return nil, false
}

// fetchKeys retrieves the remote JWKS and replaces the cache. The fetch is
// bounded by the resolver's timeout regardless of the caller's ctx.
func (r *DiscoveryKeyResolver) fetchKeys(ctx context.Context) error {
	const op = "DiscoveryKeyResolver.fetchKeys"
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("%s: unable to create JWKS request: %w", op, ErrKeyResolutionFailed)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: unable to fetch JWKS from %s: %v: %w", op, r.jwksURL, err, ErrKeyResolutionFailed)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: JWKS endpoint %s returned %d: %w", op, r.jwksURL, resp.StatusCode, ErrKeyResolutionFailed)
	}

	var jwks jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("%s: unable to decode JWKS: %v: %w", op, err, ErrKeyResolutionFailed)
	}

	r.mu.Lock()
	r.jwks = &jwks
	r.mu.Unlock()
	if r.logger != nil {
		r.logger.Debug("fetched JWKS", "issuer", r.issuer, "keys", len(jwks.Keys))
	}
	return nil
}

// parsePublicKeyPEM is used to parse RSA, ECDSA, and Ed25519 public keys
// from PEM-encoded x509 certificates or PKIX public keys.
func parsePublicKeyPEM(data []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block != nil {
		var rawKey interface{}
		var err error
		if rawKey, err = x509.ParsePKIXPublicKey(block.Bytes); err != nil {
			if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
				rawKey = cert.PublicKey
			} else {
				return nil, err
			}
		}
		switch k := rawKey.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
			return k, nil
		}
	}
	return nil, fmt.Errorf("data does not contain any valid public keys: %w", ErrInvalidParameter)
}

// tlsConfigForCA returns a tls config that trusts the given CA PEM.
func tlsConfigForCA(caPEM string) (*tls.Config, error) {
	certPool := x509.NewCertPool()
	if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
		return nil, ErrInvalidCACert
	}
	return &tls.Config{RootCAs: certPool}, nil
}

// resolverOptions is the set of available options for DiscoveryKeyResolver
// functions
type resolverOptions struct {
	withKeyFetchTimeout time.Duration
	withLogger          hclog.Logger
}

// resolverDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func resolverDefaults() resolverOptions {
	return resolverOptions{
		withKeyFetchTimeout: DefaultKeyFetchTimeout,
	}
}

// getResolverOpts gets the resolver defaults and applies the opt overrides
// passed in
func getResolverOpts(opt ...Option) resolverOptions {
	opts := resolverDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithKeyFetchTimeout provides an optional bound for a single remote JWKS
// fetch.
func WithKeyFetchTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*resolverOptions); ok {
			if d > 0 {
				o.withKeyFetchTimeout = d
			}
		}
	}
}

// WithResolverLogger provides an optional hclog.Logger for key resolution
// activity.
func WithResolverLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*resolverOptions); ok {
			o.withLogger = l
		}
	}
}
