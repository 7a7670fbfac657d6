package oidc

import (
	"bytes"
	"crypto"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/require"
)

// TestProvider is a local, TLS test server which implements just enough of
// an OIDC identity provider for relying party tests: the discovery
// document, a JWKS endpoint, and an authorization endpoint that answers
// implicit flow requests with an auto-submitting form_post document carrying
// a freshly signed id_token. It makes writing callback tests much easier
// since no real provider (or network) is needed.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	mu           sync.Mutex
	clientID     string
	replySubject string
	customClaims map[string]interface{}
	omitIDToken  bool
	omitNonce    bool
	disableJWKS  bool
	expiry       time.Duration

	privKey crypto.PrivateKey
	pubKey  crypto.PublicKey
	alg     Alg
	keyID   string

	t *testing.T
}

// StartTestProvider creates and starts a running TestProvider. It generates
// its own RS256 signing key pair, which callers may replace with
// SetSigningKeys. The server is stopped via t.Cleanup.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	pub, priv := TestGenerateKeys(t)
	p := &TestProvider{
		t:            t,
		privKey:      priv,
		pubKey:       pub,
		alg:          RS256,
		keyID:        "test-key-1",
		replySubject: "alice@example.com",
		expiry:       5 * time.Minute,
	}

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	cert := p.httpServer.Certificate()
	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the provider's issuer URL (the base URL of its webserver).
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// SetClientCreds configures the client ID used as the default id_token
// audience when the authorize request doesn't carry one.
func (p *TestProvider) SetClientCreds(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
}

// SetSigningKeys replaces the provider's signing key pair, which also
// rotates the published JWKS.
func (p *TestProvider) SetSigningKeys(priv crypto.PrivateKey, pub crypto.PublicKey, alg Alg, keyID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.privKey, p.pubKey, p.alg, p.keyID = priv, pub, alg, keyID
}

// SigningKeys returns the provider's current signing key pair.
func (p *TestProvider) SigningKeys() (crypto.PrivateKey, crypto.PublicKey, Alg, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.privKey, p.pubKey, p.alg, p.keyID
}

// SetCustomClaims lets you set claims to merge into (or, with nil values,
// remove from) the id_tokens the provider issues.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetReplySubject configures the sub claim of issued id_tokens.
func (p *TestProvider) SetReplySubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replySubject = sub
}

// SetExpectedExpiry configures how far in the future issued id_tokens
// expire. Negative values produce already-expired tokens.
func (p *TestProvider) SetExpectedExpiry(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiry = d
}

// OmitIDTokens forces an error state where the authorize response carries no
// id_token.
func (p *TestProvider) OmitIDTokens(omit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = omit
}

// OmitNonces forces an error state where issued id_tokens carry no nonce
// claim.
func (p *TestProvider) OmitNonces(omit bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitNonce = omit
}

// DisableJWKS makes the JWKS endpoint return 404, simulating a provider
// whose keys cannot be fetched.
func (p *TestProvider) DisableJWKS(disable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableJWKS = disable
}

// ServeHTTP implements the provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.t.Helper()

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		reply := struct {
			Issuer       string `json:"issuer"`
			AuthEndpoint string `json:"authorization_endpoint"`
			JWKSURI      string `json:"jwks_uri"`
		}{
			Issuer:       p.Addr(),
			AuthEndpoint: p.Addr() + "/authorize",
			JWKSURI:      p.Addr() + "/.well-known/jwks.json",
		}
		_ = json.NewEncoder(w).Encode(&reply)

	case "/.well-known/jwks.json":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if p.disableJWKS {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		jwks := &jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{
				{
					Key:       p.pubKey,
					KeyID:     p.keyID,
					Use:       "sig",
					Algorithm: string(p.alg),
				},
			},
		}
		_ = json.NewEncoder(w).Encode(jwks)

	case "/authorize":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		redirectURI := qv.Get("redirect_uri")
		if redirectURI == "" {
			http.Error(w, "missing redirect_uri parameter", http.StatusBadRequest)
			return
		}
		state := qv.Get("state")
		if state == "" {
			http.Error(w, "missing state parameter", http.StatusBadRequest)
			return
		}
		audience := qv.Get("client_id")
		if audience == "" {
			audience = p.clientID
		}

		now := time.Now()
		claims := map[string]interface{}{
			"iss": p.Addr(),
			"sub": p.replySubject,
			"aud": []string{audience},
			"exp": float64(now.Add(p.expiry).Unix()),
			"iat": float64(now.Unix()),
		}
		if nonce := qv.Get("nonce"); nonce != "" && !p.omitNonce {
			claims["nonce"] = nonce
		}
		for k, v := range p.customClaims {
			if v == nil {
				delete(claims, k)
				continue
			}
			claims[k] = v
		}
		idToken := TestSignJWT(p.t, p.privKey, string(p.alg), claims, p.keyID)
		if p.omitIDToken {
			idToken = ""
		}

		// form_post response mode: an html document that posts the
		// response parameters to the relying party's redirect_uri onload,
		// as a browser would.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, testFormPostDocument, html.EscapeString(redirectURI), html.EscapeString(state), html.EscapeString(idToken))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

const testFormPostDocument = `<html>
  <head><title>Submit This Form</title></head>
  <body onload="javascript:document.forms[0].submit()">
    <form method="post" action="%s">
      <input type="hidden" name="state" value="%s"/>
      <input type="hidden" name="id_token" value="%s"/>
    </form>
  </body>
</html>`
