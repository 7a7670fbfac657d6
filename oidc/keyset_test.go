package oidc

import (
	"context"
	"crypto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticKeyResolver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pub, _ := TestGenerateKeys(t)
	otherPub, _ := TestGenerateKeys(t)

	t.Run("no-keys", func(t *testing.T) {
		assert := assert.New(t)
		_, err := NewStaticKeyResolver(nil)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("nil-key", func(t *testing.T) {
		assert := assert.New(t)
		_, err := NewStaticKeyResolver(map[string]crypto.PublicKey{"k": nil})
		assert.ErrorIs(err, ErrNilParameter)
	})
	t.Run("by-kid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewStaticKeyResolver(map[string]crypto.PublicKey{"k1": pub, "k2": otherPub})
		require.NoError(err)
		got, err := r.ResolveKey(ctx, "k2", RS256)
		require.NoError(err)
		assert.Equal(otherPub, got)
	})
	t.Run("no-kid-single-key", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewStaticKeyResolver(map[string]crypto.PublicKey{"k1": pub})
		require.NoError(err)
		got, err := r.ResolveKey(ctx, "", RS256)
		require.NoError(err)
		assert.Equal(pub, got)
	})
	t.Run("no-kid-multiple-keys", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewStaticKeyResolver(map[string]crypto.PublicKey{"k1": pub, "k2": otherPub})
		require.NoError(err)
		_, err = r.ResolveKey(ctx, "", RS256)
		assert.ErrorIs(err, ErrKeyResolutionFailed)
	})
	t.Run("unknown-kid-with-fallback", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewStaticKeyResolver(map[string]crypto.PublicKey{"": pub})
		require.NoError(err)
		got, err := r.ResolveKey(ctx, "whatever", RS256)
		require.NoError(err)
		assert.Equal(pub, got)
	})
	t.Run("from-pem", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewStaticKeyResolverPEM(map[string]string{"k1": TestEncodePublicKeyPEM(t, pub)})
		require.NoError(err)
		got, err := r.ResolveKey(ctx, "k1", RS256)
		require.NoError(err)
		assert.Equal(pub, got)
	})
	t.Run("from-bad-pem", func(t *testing.T) {
		assert := assert.New(t)
		_, err := NewStaticKeyResolverPEM(map[string]string{"k1": "not a pem"})
		assert.Error(err)
	})
}

func TestNewDiscoveryKeyResolver(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		c := testProviderConfig(t, tp)
		r, err := NewDiscoveryKeyResolver(ctx, c)
		require.NoError(err)
		assert.Equal(tp.Addr(), r.Issuer())
	})
	t.Run("nil-config", func(t *testing.T) {
		assert := assert.New(t)
		_, err := NewDiscoveryKeyResolver(ctx, nil)
		assert.ErrorIs(err, ErrNilParameter)
	})
	t.Run("jwks-unreachable", func(t *testing.T) {
		assert := assert.New(t)
		tp := StartTestProvider(t)
		tp.DisableJWKS(true)
		c := testProviderConfig(t, tp)
		_, err := NewDiscoveryKeyResolver(ctx, c)
		assert.ErrorIs(err, ErrKeyResolutionFailed)
	})
	t.Run("undiscoverable-issuer", func(t *testing.T) {
		assert := assert.New(t)
		tp := StartTestProvider(t)
		c := testProviderConfig(t, tp)
		c.Issuer = "https://127.0.0.1:1"
		_, err := NewDiscoveryKeyResolver(ctx, c)
		assert.Error(err)
	})
}

func TestDiscoveryKeyResolver_ResolveKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("cached-kid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		r, err := NewDiscoveryKeyResolver(ctx, testProviderConfig(t, tp))
		require.NoError(err)
		_, pub, alg, kid := tp.SigningKeys()
		got, err := r.ResolveKey(ctx, kid, alg)
		require.NoError(err)
		assert.Equal(pub, got)
	})
	t.Run("rotated-key-triggers-refetch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		r, err := NewDiscoveryKeyResolver(ctx, testProviderConfig(t, tp))
		require.NoError(err)

		newPub, newPriv := TestGenerateKeys(t)
		tp.SetSigningKeys(newPriv, newPub, RS256, "test-key-2")

		got, err := r.ResolveKey(ctx, "test-key-2", RS256)
		require.NoError(err)
		assert.Equal(newPub, got)
	})
	t.Run("unknown-kid-after-refetch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		r, err := NewDiscoveryKeyResolver(ctx, testProviderConfig(t, tp))
		require.NoError(err)
		_, err = r.ResolveKey(ctx, "never-published", RS256)
		require.Error(err)
		assert.ErrorIs(err, ErrKeyResolutionFailed)
	})
	t.Run("refetch-failure-reports-both", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		r, err := NewDiscoveryKeyResolver(ctx, testProviderConfig(t, tp))
		require.NoError(err)

		tp.DisableJWKS(true)
		_, err = r.ResolveKey(ctx, "test-key-2", RS256)
		require.Error(err)
		assert.ErrorIs(err, ErrKeyResolutionFailed)
		assert.Contains(err.Error(), "no cached key")
	})
}

// testProviderConfig builds a Config pointed at a running TestProvider.
func testProviderConfig(t *testing.T, tp *TestProvider) *Config {
	t.Helper()
	c, err := NewConfig(tp.Addr(), "client-id", []Alg{RS256}, "http://localhost:3000/callback", WithProviderCA(tp.CACert()))
	require.NoError(t, err)
	return c
}
