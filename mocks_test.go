package solgate

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/solgate/core"
	"github.com/layer-3/solgate/wallet"
)

type fakeFetcher struct {
	calls    atomic.Int32
	started  chan struct{}
	release  chan struct{}
	identity *core.Identity
	err      error
}

func (f *fakeFetcher) WhoAmI(ctx context.Context) (*core.Identity, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.identity, f.err
}

type fakeIssuer struct {
	grant core.NonceGrant
	err   error
	calls atomic.Int32
}

func (f *fakeIssuer) FetchNonce(ctx context.Context) (core.NonceGrant, error) {
	f.calls.Add(1)
	return f.grant, f.err
}

// fakeVerifier checks proofs the way the identity service does
type fakeVerifier struct {
	mu     sync.Mutex
	proofs []core.SignInProof
	err    error
}

func (f *fakeVerifier) Verify(ctx context.Context, proof core.SignInProof) (core.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.proofs = append(f.proofs, proof)
	if f.err != nil {
		return core.Identity{}, f.err
	}
	if !ed25519.Verify(ed25519.PublicKey(proof.Account.PublicKey), proof.SignedMessage, proof.Signature) {
		return core.Identity{}, core.ErrVerificationRejected
	}
	return core.Identity{Address: base58.Encode(proof.Account.PublicKey)}, nil
}

func (f *fakeVerifier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.proofs)
}

type fakeTerminator struct {
	calls int
	err   error
}

func (f *fakeTerminator) Logout(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeNetwork struct {
	mu         sync.Mutex
	sent       [][]byte
	confirmed  []string
	signature  string
	sendErr    error
	recency    core.BlockhashContext
	recencyErr error
	confirmErr error
}

func (f *fakeNetwork) SendTransaction(ctx context.Context, raw []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, raw)
	return f.signature, f.sendErr
}

func (f *fakeNetwork) LatestBlockhash(ctx context.Context) (core.BlockhashContext, error) {
	return f.recency, f.recencyErr
}

func (f *fakeNetwork) Confirm(ctx context.Context, signature string, recency core.BlockhashContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, signature)
	return f.confirmErr
}

// blockingWallet holds every structured sign-in until release is closed
type blockingWallet struct {
	*wallet.Keypair
	prompts atomic.Int32
	release chan struct{}
}

func (w *blockingWallet) SignIn(ctx context.Context, challenge core.SignInChallenge) (wallet.SignInOutput, error) {
	w.prompts.Add(1)
	<-w.release
	return w.Keypair.SignIn(ctx, challenge)
}

// messageOnlyWallet exposes the legacy message signing path only
type messageOnlyWallet struct {
	k *wallet.Keypair
}

func (w messageOnlyWallet) Name() string    { return "message-only" }
func (w messageOnlyWallet) Connected() bool { return true }
func (w messageOnlyWallet) PublicKey() any {
	return solana.MustPublicKeyFromBase58(w.k.Address())
}
func (w messageOnlyWallet) SignMessage(ctx context.Context, message []byte) (any, error) {
	return w.k.SignMessage(ctx, message)
}

func newKeypair(t *testing.T) *wallet.Keypair {
	t.Helper()
	k, err := wallet.GenerateKeypair()
	require.NoError(t, err)
	return k
}

// transferBase64 builds an unsigned transfer paid by k
func transferBase64(t *testing.T, k *wallet.Keypair) string {
	t.Helper()
	payer := solana.MustPublicKeyFromBase58(k.Address())
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1000, payer, solana.NewWallet().PublicKey()).Build()},
		solana.Hash{9},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func testOrigin() core.Origin {
	return core.Origin{Domain: "app.test", URI: "https://app.test"}
}

// noFollowUp keeps the session cache from arming real timers
func noFollowUp(c *SessionCache) {
	c.schedule = func(time.Duration, func()) {}
}
