package oidc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"no-pending-auth", ErrNoPendingAuth, KindStateMissingFromSession},
		{"state-missing", ErrStateMissing, KindStateMissing},
		{"state-mismatch", ErrStateMismatch, KindStateMismatch},
		{"token-missing", ErrMissingIDToken, KindTokenMissing},
		{"token-malformed", ErrMalformedToken, KindTokenMalformed},
		{"unexpected-alg", ErrUnexpectedAlg, KindUnexpectedAlgorithm},
		{"invalid-signature", ErrInvalidSignature, KindSignatureInvalid},
		{"missing-claim", ErrMissingClaim, KindMissingClaim},
		{"invalid-issuer", ErrInvalidIssuer, KindIssuerMismatch},
		{"invalid-audience", ErrInvalidAudience, KindAudienceMismatch},
		{"expired-token", ErrExpiredToken, KindTokenExpired},
		{"invalid-nonce", ErrInvalidNonce, KindNonceMismatch},
		{"key-resolution", ErrKeyResolutionFailed, KindKeyResolutionFailed},
		{"unclassified", errors.New("something else entirely"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tt.want, KindOf(tt.err))
		})
	}
	t.Run("wrapped", func(t *testing.T) {
		assert := assert.New(t)
		err := fmt.Errorf("callback rejected: %w", fmt.Errorf("%w, expected a, got: b", ErrStateMismatch))
		assert.Equal(KindStateMismatch, KindOf(err))
	})
}
