package solgate

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"golang.org/x/sync/singleflight"

	"github.com/layer-3/solgate/core"
	"github.com/layer-3/solgate/ports"
	"github.com/layer-3/solgate/wallet"
)

// DefaultStatement is the consent statement shown in the sign-in message
const DefaultStatement = "Sign in to SolPredict."

// Authenticator runs the nonce based sign-in protocol
type Authenticator struct {
	adapter    *wallet.Adapter
	issuer     ports.NonceIssuer
	verifier   ports.Verifier
	terminator ports.SessionTerminator
	sessions   *SessionCache
	logger     watermill.LoggerAdapter

	origin    core.Origin
	statement string
	now       func() time.Time

	flight singleflight.Group
}

// NewAuthenticator creates a new authenticator. terminator may be nil, in
// which case SignOut only clears the local session.
func NewAuthenticator(
	adapter *wallet.Adapter,
	issuer ports.NonceIssuer,
	verifier ports.Verifier,
	terminator ports.SessionTerminator,
	sessions *SessionCache,
	origin core.Origin,
	logger watermill.LoggerAdapter,
) *Authenticator {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	return &Authenticator{
		adapter:    adapter,
		issuer:     issuer,
		verifier:   verifier,
		terminator: terminator,
		sessions:   sessions,
		logger:     logger.With(watermill.LogFields{"component": "authenticator"}),
		origin:     origin,
		statement:  DefaultStatement,
		now:        time.Now,
	}
}

// WithStatement replaces the consent statement
func (a *Authenticator) WithStatement(statement string) *Authenticator {
	a.statement = statement
	return a
}

// SignIn proves ownership of the wallet to the identity service and marks the
// session authenticated. Overlapping calls share one attempt so the wallet
// prompts only once. Failures never touch the session and are not retried.
func (a *Authenticator) SignIn(ctx context.Context) error {
	ch := a.flight.DoChan("sign-in", func() (interface{}, error) {
		return nil, a.signIn(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Authenticator) signIn(ctx context.Context) error {
	if err := a.adapter.Connect(ctx); err != nil {
		return err
	}

	grant, err := a.issuer.FetchNonce(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch nonce: %w", err)
	}
	if grant.Nonce == "" {
		return fmt.Errorf("empty nonce: %w", core.ErrBadChallengeParameters)
	}
	if grant.TTL <= 0 {
		return fmt.Errorf("ttl %s: %w", grant.TTL, core.ErrBadChallengeParameters)
	}

	challenge := core.NewSignInChallenge(a.origin, a.statement, grant.Nonce, a.now(), grant.TTL)

	proof, err := a.adapter.SignIn(ctx, challenge)
	if err != nil {
		return fmt.Errorf("wallet sign-in failed: %w", err)
	}

	identity, err := a.verifier.Verify(ctx, proof)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	a.logger.Info("Signed in", watermill.LogFields{
		"address": identity.Address,
		"wallet":  a.adapter.Name(),
		"path":    a.adapter.Path(),
	})
	a.sessions.SetAuthenticated(identity)

	return nil
}

// SignOut ends the session with the identity service and clears the local session
func (a *Authenticator) SignOut(ctx context.Context) error {
	if a.terminator != nil {
		if err := a.terminator.Logout(ctx); err != nil {
			return fmt.Errorf("failed to sign out: %w", err)
		}
	}

	a.sessions.SetUnauthenticated()
	return nil
}
