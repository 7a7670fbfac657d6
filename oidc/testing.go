package oidc

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/require"
)

// TestGenerateKeys will generate a test RSA 2048 pub/priv key pair, suitable
// for signing test JWTs with RS256.
func TestGenerateKeys(t *testing.T) (crypto.PublicKey, crypto.PrivateKey) {
	t.Helper()
	require := require.New(t)
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(err)
	return priv.Public(), priv
}

// TestEncodePublicKeyPEM encodes a public key into PKIX PEM form, suitable
// for NewStaticKeyResolverPEM.
func TestEncodePublicKeyPEM(t *testing.T, pub crypto.PublicKey) string {
	t.Helper()
	require := require.New(t)
	derBytes, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: derBytes}))
}

// TestSignJWT will bundle the provided claims into a signed JWT. The arg
// keyID is optional; when empty the JWT will not carry a kid header. For
// asymmetric algs the key must be the private key; for HMAC algs (which this
// package never trusts, but tests need to produce) the key must be a []byte
// secret.
func TestSignJWT(t *testing.T, key crypto.PrivateKey, alg string, claims map[string]interface{}, keyID string) string {
	t.Helper()
	require := require.New(t)

	signingKey := jose.SigningKey{
		Algorithm: jose.SignatureAlgorithm(alg),
		Key:       key,
	}
	if keyID != "" {
		signingKey.Key = jose.JSONWebKey{Key: key, KeyID: keyID}
	}
	sig, err := jose.NewSigner(signingKey, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(err)

	payload, err := json.Marshal(claims)
	require.NoError(err)
	jws, err := sig.Sign(payload)
	require.NoError(err)

	raw, err := jws.CompactSerialize()
	require.NoError(err)
	return raw
}

// TestIDTokenClaims returns a claim bag for a well-formed id_token: issuer,
// subject, audience, expiry, issued-at, and nonce, merged with the provided
// additional claims (which may override any of them, including removing one
// by setting it to nil).
func TestIDTokenClaims(t *testing.T, issuer, clientID, nonce string, additional map[string]interface{}) map[string]interface{} {
	t.Helper()
	now := time.Now()
	claims := map[string]interface{}{
		"iss":   issuer,
		"sub":   "alice@example.com",
		"aud":   []string{clientID},
		"exp":   float64(now.Add(5 * time.Minute).Unix()),
		"iat":   float64(now.Unix()),
		"nonce": nonce,
	}
	for k, v := range additional {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}
	return claims
}

// TestRequest creates a pending authentication Request with the given state
// and nonce, which NewRequest intentionally doesn't allow. Supported
// options: WithReturnTo, WithNow
func TestRequest(t *testing.T, state, nonce string, opt ...Option) *Request {
	t.Helper()
	require := require.New(t)
	require.NotEmpty(state)
	require.NotEmpty(nonce)
	opts := getReqOpts(opt...)
	r := &Request{
		state:    state,
		nonce:    nonce,
		returnTo: opts.withReturnTo,
		nowFunc:  opts.withNowFunc,
	}
	r.expiration = r.now().Add(5 * time.Minute)
	return r
}

// TestExpiredRequest creates a pending authentication Request whose
// expiration has already passed.
func TestExpiredRequest(t *testing.T, state, nonce string) *Request {
	t.Helper()
	r := TestRequest(t, state, nonce)
	r.expiration = time.Now().Add(-1 * time.Minute)
	return r
}
