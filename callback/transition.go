package callback

import (
	"context"
	"fmt"
	"time"

	"github.com/verato-io/rely/oidc"
)

// Complete transitions a session from pending to authenticated: it builds
// the Session record for an accepted callback and commits it, which also
// consumes the pending request. It must only be called with claims produced
// by a Validator.
//
// Rejected callbacks never reach Complete: the pending request is left
// untouched and whether the user may re-attempt the login is the host's
// decision.
func Complete(ctx context.Context, store SessionStore, rawToken oidc.IDToken, claims *oidc.IDTokenClaims) (*Session, error) {
	const op = "callback.Complete"
	if store == nil {
		return nil, fmt.Errorf("%s: session store is nil: %w", op, oidc.ErrNilParameter)
	}
	if rawToken == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, oidc.ErrInvalidParameter)
	}
	if claims == nil {
		return nil, fmt.Errorf("%s: claims are nil: %w", op, oidc.ErrNilParameter)
	}
	sess := &Session{
		IDToken:         rawToken,
		Claims:          claims,
		AuthenticatedAt: time.Now(),
	}
	if err := store.SetAuthenticated(ctx, sess); err != nil {
		return nil, fmt.Errorf("%s: unable to commit authenticated session: %w", op, err)
	}
	return sess, nil
}
