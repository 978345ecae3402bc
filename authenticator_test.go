package solgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/solgate/core"
	"github.com/layer-3/solgate/wallet"
)

type authFixture struct {
	issuer     *fakeIssuer
	verifier   *fakeVerifier
	terminator *fakeTerminator
	sessions   *SessionCache
}

func newAuthFixture() *authFixture {
	return &authFixture{
		issuer:     &fakeIssuer{grant: core.NonceGrant{Nonce: "abc123", TTL: 5 * time.Minute}},
		verifier:   &fakeVerifier{},
		terminator: &fakeTerminator{},
		sessions:   NewSessionCache(&fakeFetcher{}, nil, noFollowUp),
	}
}

func (f *authFixture) authenticator(w wallet.Wallet) *Authenticator {
	return NewAuthenticator(wallet.NewAdapter(w), f.issuer, f.verifier, f.terminator, f.sessions, testOrigin(), nil)
}

func TestSignIn(t *testing.T) {
	f := newAuthFixture()
	k := newKeypair(t)
	a := f.authenticator(k)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	require.NoError(t, a.SignIn(context.Background()))

	s := f.sessions.Snapshot()
	assert.Equal(t, core.StatusAuthenticated, s.Status)
	require.NotNil(t, s.Identity)
	assert.Equal(t, k.Address(), s.Identity.Address)

	require.Equal(t, 1, f.verifier.calls())
	challenge, address, err := core.ParseMessage(string(f.verifier.proofs[0].SignedMessage))
	require.NoError(t, err)
	assert.Equal(t, k.Address(), address)
	assert.Equal(t, "abc123", challenge.Nonce)
	assert.Equal(t, "app.test", challenge.Domain)
	assert.Equal(t, "https://app.test", challenge.URI)
	assert.Equal(t, DefaultStatement, challenge.Statement)
	assert.True(t, challenge.IssuedAt.Equal(now))
	assert.True(t, challenge.ExpirationTime.Equal(now.Add(5*time.Minute)))
}

func TestSignInLegacyWallet(t *testing.T) {
	f := newAuthFixture()
	k := newKeypair(t)

	require.NoError(t, f.authenticator(messageOnlyWallet{k: k}).SignIn(context.Background()))
	assert.Equal(t, core.StatusAuthenticated, f.sessions.Snapshot().Status)
}

func TestSignInBadChallengeParameters(t *testing.T) {
	cases := map[string]*fakeIssuer{
		"zero ttl":     {grant: core.NonceGrant{Nonce: "n"}},
		"negative ttl": {grant: core.NonceGrant{Nonce: "n", TTL: -time.Second}},
		"empty nonce":  {grant: core.NonceGrant{TTL: time.Minute}},
		"issuer":       {err: core.ErrBadChallengeParameters},
	}
	for name, issuer := range cases {
		t.Run(name, func(t *testing.T) {
			f := newAuthFixture()
			f.issuer = issuer

			err := f.authenticator(newKeypair(t)).SignIn(context.Background())
			assert.ErrorIs(t, err, core.ErrBadChallengeParameters)
			assert.Zero(t, f.verifier.calls())
			assert.Equal(t, core.StatusPending, f.sessions.Snapshot().Status)
		})
	}
}

func TestSignInVerificationRejected(t *testing.T) {
	f := newAuthFixture()
	f.verifier.err = core.ErrVerificationRejected

	err := f.authenticator(newKeypair(t)).SignIn(context.Background())
	assert.ErrorIs(t, err, core.ErrVerificationRejected)
	assert.Equal(t, core.StatusPending, f.sessions.Snapshot().Status)
}

func TestSignInUnsupportedWallet(t *testing.T) {
	f := newAuthFixture()
	k := newKeypair(t)
	require.NoError(t, k.Connect(context.Background()))

	// hides every signing capability of the keypair
	w := struct{ wallet.Wallet }{k}

	err := f.authenticator(w).SignIn(context.Background())
	assert.ErrorIs(t, err, core.ErrUnsupportedWallet)
	assert.Zero(t, f.verifier.calls())
	assert.Equal(t, core.StatusPending, f.sessions.Snapshot().Status)
}

func TestSignInWalletNotConnected(t *testing.T) {
	f := newAuthFixture()
	w := struct{ wallet.Wallet }{newKeypair(t)}

	err := f.authenticator(w).SignIn(context.Background())
	assert.ErrorIs(t, err, core.ErrConnectionRequired)
	assert.Zero(t, f.issuer.calls.Load())
	assert.Zero(t, f.verifier.calls())
}

func TestSignInCoalescesConcurrentCalls(t *testing.T) {
	f := newAuthFixture()
	w := &blockingWallet{Keypair: newKeypair(t), release: make(chan struct{})}
	a := f.authenticator(w)

	const callers = 4
	errs := make(chan error, callers)
	go func() { errs <- a.SignIn(context.Background()) }()
	require.Eventually(t, func() bool { return w.prompts.Load() == 1 }, time.Second, time.Millisecond)

	for i := 1; i < callers; i++ {
		go func() { errs <- a.SignIn(context.Background()) }()
	}
	// give the later callers a chance to attach before the wallet answers
	time.Sleep(20 * time.Millisecond)
	close(w.release)

	for i := 0; i < callers; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, int32(1), w.prompts.Load())
	assert.Equal(t, int32(1), f.issuer.calls.Load())
	assert.Equal(t, 1, f.verifier.calls())
}

func TestSignInCallerCanStopWaiting(t *testing.T) {
	f := newAuthFixture()
	w := &blockingWallet{Keypair: newKeypair(t), release: make(chan struct{})}
	a := f.authenticator(w)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- a.SignIn(ctx) }()
	require.Eventually(t, func() bool { return w.prompts.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	// the prompt already shown still completes the sign-in
	close(w.release)
	require.Eventually(t, func() bool {
		return f.sessions.Snapshot().Status == core.StatusAuthenticated
	}, time.Second, time.Millisecond)
}

func TestSignOut(t *testing.T) {
	f := newAuthFixture()
	a := f.authenticator(newKeypair(t))
	require.NoError(t, a.SignIn(context.Background()))

	require.NoError(t, a.SignOut(context.Background()))
	assert.Equal(t, 1, f.terminator.calls)
	assert.Equal(t, core.StatusUnauthenticated, f.sessions.Snapshot().Status)
	assert.Nil(t, f.sessions.Snapshot().Identity)
}

func TestSignOutFailureKeepsSession(t *testing.T) {
	f := newAuthFixture()
	a := f.authenticator(newKeypair(t))
	require.NoError(t, a.SignIn(context.Background()))

	f.terminator.err = errors.New("offline")
	assert.Error(t, a.SignOut(context.Background()))
	assert.Equal(t, core.StatusAuthenticated, f.sessions.Snapshot().Status)
}
