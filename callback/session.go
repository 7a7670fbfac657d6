package callback

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/verato-io/rely/oidc"
)

// Session is an authenticated session record: the raw id_token and the
// verified claims derived from it. It is created exclusively by Complete
// after a callback has been accepted, and owned by the session store for the
// lifetime of the user's browser session.
type Session struct {
	// IDToken is the raw token the session was established from. Its
	// string/JSON forms are redacted.
	IDToken oidc.IDToken

	// Claims are the verified id_token claims.
	Claims *oidc.IDTokenClaims

	// AuthenticatedAt is when the callback was accepted.
	AuthenticatedAt time.Time
}

// SessionStore is the per-end-user session handle the callback machinery
// reads and writes. Implementations back it with whatever the host uses for
// sessions (cookies, a server-side store, ...) and must provide
// read-your-writes consistency per session; no cross-session coordination is
// required.
type SessionStore interface {
	// PendingAuth returns the session's pending authentication request, or
	// nil when no login is pending.
	PendingAuth(ctx context.Context) (*oidc.Request, error)

	// SetAuthenticated commits the authenticated session and clears the
	// pending authentication request as part of the same logical write:
	// after a successful return, PendingAuth must report nil. The two
	// must never be observable together, since a lingering pending
	// request would allow its state and nonce to be replayed.
	SetAuthenticated(ctx context.Context, s *Session) error
}

// SessionProvider finds the SessionStore for an inbound request, typically
// via a session cookie. Implementations must be concurrently safe, since the
// provider is used within a concurrent http.Handler.
type SessionProvider interface {
	Session(req *http.Request) (SessionStore, error)
}

// MemoryStore is an in-memory SessionStore for a single end-user session. It
// is concurrently safe.
type MemoryStore struct {
	mu      sync.Mutex
	pending *oidc.Request
	auth    *Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SetPendingAuth records a pending authentication request, superseding any
// previous one. Written at login initiation.
func (s *MemoryStore) SetPendingAuth(_ context.Context, r *oidc.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = r
	return nil
}

// PendingAuth implements SessionStore.
func (s *MemoryStore) PendingAuth(_ context.Context) (*oidc.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, nil
}

// SetAuthenticated implements SessionStore. The commit and the clearing of
// the pending request happen under one lock, so no reader can observe the
// session both authenticated and pending.
func (s *MemoryStore) SetAuthenticated(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = sess
	s.pending = nil
	return nil
}

// Authenticated returns the authenticated session, or nil when the session
// is unauthenticated.
func (s *MemoryStore) Authenticated(_ context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auth, nil
}

// SingleSessionProvider is a SessionProvider for a single session. It is
// intended for tests and single-user tools.
type SingleSessionProvider struct {
	Store SessionStore
}

// Session implements SessionProvider, returning the single store for every
// request.
func (p *SingleSessionProvider) Session(_ *http.Request) (SessionStore, error) {
	if p.Store == nil {
		return nil, oidc.ErrNotFound
	}
	return p.Store, nil
}
