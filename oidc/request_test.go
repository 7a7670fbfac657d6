package oidc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(2 * time.Minute)
		require.NoError(err)
		require.NotNil(r)
		assert.NotEmpty(r.State())
		assert.NotEmpty(r.Nonce())
		assert.NotEqual(r.State(), r.Nonce())
		assert.Empty(r.ReturnTo())
		assert.False(r.IsExpired())
	})
	t.Run("with-return-to", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(2*time.Minute, WithReturnTo("/orders"))
		require.NoError(err)
		assert.Equal("/orders", r.ReturnTo())
	})
	t.Run("zero-expire-in", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(0)
		require.Error(err)
		assert.Nil(r)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("negative-expire-in", func(t *testing.T) {
		assert := assert.New(t)
		_, err := NewRequest(-1 * time.Minute)
		assert.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestRequest_IsExpired(t *testing.T) {
	t.Parallel()
	t.Run("fresh", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(1 * time.Minute)
		require.NoError(err)
		assert.False(r.IsExpired())
	})
	t.Run("expired", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		r, err := NewRequest(1 * time.Minute)
		require.NoError(err)
		r.expiration = time.Now().Add(-1 * time.Minute)
		assert.True(r.IsExpired())
	})
	t.Run("within-default-skew", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		// expires 30s from now, but the default 1s skew plus a 35s
		// override pushes the horizon past it
		r, err := NewRequest(30 * time.Second)
		require.NoError(err)
		assert.False(r.IsExpired())
		assert.True(r.IsExpired(WithExpirySkew(35*time.Second)))
	})
}

func TestRequest_JSON(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	orig, err := NewRequest(2*time.Minute, WithReturnTo("/after-login"))
	require.NoError(err)

	data, err := json.Marshal(orig)
	require.NoError(err)

	var got Request
	require.NoError(json.Unmarshal(data, &got))
	assert.Equal(orig.State(), got.State())
	assert.Equal(orig.Nonce(), got.Nonce())
	assert.Equal(orig.ReturnTo(), got.ReturnTo())
	assert.False(got.IsExpired())
}
