package solgate

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/layer-3/solgate/core"
	"github.com/layer-3/solgate/ports"
	"github.com/layer-3/solgate/wallet"
)

// Services groups the remote collaborators a Gate talks to
type Services struct {
	Nonces   ports.NonceIssuer
	Verifier ports.Verifier
	Identity ports.IdentityFetcher
	Logout   ports.SessionTerminator
	Network  ports.Broadcaster
}

// Gate wires the authenticator, session cache and relayer around one wallet
type Gate struct {
	auth     *Authenticator
	sessions *SessionCache
	relayer  *Relayer
}

var _ Client = (*Gate)(nil)

// New creates a Gate for w
func New(origin core.Origin, w wallet.Wallet, services Services, logger watermill.LoggerAdapter, opts ...SessionCacheOption) *Gate {
	adapter := wallet.NewAdapter(w)
	sessions := NewSessionCache(services.Identity, logger, opts...)

	return &Gate{
		auth:     NewAuthenticator(adapter, services.Nonces, services.Verifier, services.Logout, sessions, origin, logger),
		sessions: sessions,
		relayer:  NewRelayer(adapter, services.Network, logger),
	}
}

// WithStatement replaces the consent statement shown in sign-in messages
func (g *Gate) WithStatement(statement string) *Gate {
	g.auth.WithStatement(statement)
	return g
}

func (g *Gate) SignIn(ctx context.Context) error {
	return g.auth.SignIn(ctx)
}

func (g *Gate) SignOut(ctx context.Context) error {
	return g.auth.SignOut(ctx)
}

func (g *Gate) Session() core.AuthSession {
	return g.sessions.Snapshot()
}

func (g *Gate) Refresh(ctx context.Context) core.AuthSession {
	return g.sessions.Refresh(ctx)
}

func (g *Gate) Subscribe(listener func(core.AuthSession)) (unsubscribe func()) {
	return g.sessions.Subscribe(listener)
}

func (g *Gate) Relay(ctx context.Context, transactionBase64 string) core.RelayOutcome {
	return g.relayer.Relay(ctx, transactionBase64)
}

// Sessions exposes the underlying session cache
func (g *Gate) Sessions() *SessionCache {
	return g.sessions
}
