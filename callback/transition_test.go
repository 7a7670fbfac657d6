package callback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verato-io/rely/oidc"
)

func TestComplete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	claims := &oidc.IDTokenClaims{
		Issuer:    "https://issuer.example.com",
		Subject:   "alice@example.com",
		Audiences: []string{"client-id"},
		Expiry:    time.Now().Add(5 * time.Minute),
		IssuedAt:  time.Now(),
		Nonce:     "n_1234",
	}

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		store := NewMemoryStore()
		pending, err := oidc.NewRequest(2 * time.Minute)
		require.NoError(err)
		require.NoError(store.SetPendingAuth(ctx, pending))

		sess, err := Complete(ctx, store, "header.payload.sig", claims)
		require.NoError(err)
		require.NotNil(sess)
		assert.Equal(oidc.IDToken("header.payload.sig"), sess.IDToken)
		assert.Equal(claims, sess.Claims)
		assert.False(sess.AuthenticatedAt.IsZero())

		got, err := store.Authenticated(ctx)
		require.NoError(err)
		assert.Equal(sess, got)
		gone, err := store.PendingAuth(ctx)
		require.NoError(err)
		assert.Nil(gone)
	})
	t.Run("nil-store", func(t *testing.T) {
		assert := assert.New(t)
		_, err := Complete(ctx, nil, "header.payload.sig", claims)
		assert.ErrorIs(err, oidc.ErrNilParameter)
	})
	t.Run("empty-token", func(t *testing.T) {
		assert := assert.New(t)
		_, err := Complete(ctx, NewMemoryStore(), "", claims)
		assert.ErrorIs(err, oidc.ErrInvalidParameter)
	})
	t.Run("nil-claims", func(t *testing.T) {
		assert := assert.New(t)
		_, err := Complete(ctx, NewMemoryStore(), "header.payload.sig", nil)
		assert.ErrorIs(err, oidc.ErrNilParameter)
	})
}
