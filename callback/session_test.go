package callback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verato-io/rely/oidc"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewMemoryStore()
		pending, err := s.PendingAuth(ctx)
		require.NoError(err)
		assert.Nil(pending)
		auth, err := s.Authenticated(ctx)
		require.NoError(err)
		assert.Nil(auth)
	})
	t.Run("pending-round-trip", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewMemoryStore()
		r, err := oidc.NewRequest(2 * time.Minute)
		require.NoError(err)
		require.NoError(s.SetPendingAuth(ctx, r))

		got, err := s.PendingAuth(ctx)
		require.NoError(err)
		assert.Equal(r, got)
	})
	t.Run("commit-clears-pending", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewMemoryStore()
		r, err := oidc.NewRequest(2 * time.Minute)
		require.NoError(err)
		require.NoError(s.SetPendingAuth(ctx, r))

		sess := &Session{
			IDToken:         "header.payload.sig",
			Claims:          &oidc.IDTokenClaims{Subject: "alice@example.com"},
			AuthenticatedAt: time.Now(),
		}
		require.NoError(s.SetAuthenticated(ctx, sess))

		// the commit and the consumption of the pending request are one
		// write: a later callback with the same state must find nothing
		pending, err := s.PendingAuth(ctx)
		require.NoError(err)
		assert.Nil(pending)

		auth, err := s.Authenticated(ctx)
		require.NoError(err)
		assert.Equal(sess, auth)
	})
	t.Run("new-pending-supersedes", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := NewMemoryStore()
		first, err := oidc.NewRequest(2 * time.Minute)
		require.NoError(err)
		second, err := oidc.NewRequest(2 * time.Minute)
		require.NoError(err)
		require.NoError(s.SetPendingAuth(ctx, first))
		require.NoError(s.SetPendingAuth(ctx, second))

		got, err := s.PendingAuth(ctx)
		require.NoError(err)
		assert.Equal(second, got)
	})
}

func TestSingleSessionProvider(t *testing.T) {
	t.Parallel()
	t.Run("returns-store", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := NewMemoryStore()
		p := &SingleSessionProvider{Store: store}
		got, err := p.Session(nil)
		require.NoError(err)
		assert.Equal(SessionStore(store), got)
	})
	t.Run("nil-store", func(t *testing.T) {
		assert := assert.New(t)
		p := &SingleSessionProvider{}
		_, err := p.Session(nil)
		assert.ErrorIs(err, oidc.ErrNotFound)
	})
}
