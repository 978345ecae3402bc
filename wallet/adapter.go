package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/layer-3/solgate/core"
)

// signingPath is one way of obtaining a sign-in signature from a wallet
type signingPath interface {
	name() string
	supports(w Wallet) bool
	signIn(ctx context.Context, w Wallet, challenge core.SignInChallenge) (SignInOutput, error)
}

// signingPaths in priority order
var signingPaths = []signingPath{structuredPath{}, bytesPath{}, legacyPath{}}

type structuredPath struct{}

func (structuredPath) name() string { return "sign-in" }

func (structuredPath) supports(w Wallet) bool {
	_, ok := w.(SignInSigner)
	return ok
}

func (structuredPath) signIn(ctx context.Context, w Wallet, challenge core.SignInChallenge) (SignInOutput, error) {
	return w.(SignInSigner).SignIn(ctx, challenge)
}

type bytesPath struct{}

func (bytesPath) name() string { return "sign-bytes" }

func (bytesPath) supports(w Wallet) bool {
	_, ok := w.(BytesSigner)
	return ok
}

func (bytesPath) signIn(ctx context.Context, w Wallet, challenge core.SignInChallenge) (SignInOutput, error) {
	return signCanonical(ctx, w, challenge, w.(BytesSigner).SignBytes)
}

type legacyPath struct{}

func (legacyPath) name() string { return "sign-message" }

func (legacyPath) supports(w Wallet) bool {
	_, ok := w.(MessageSigner)
	return ok
}

func (legacyPath) signIn(ctx context.Context, w Wallet, challenge core.SignInChallenge) (SignInOutput, error) {
	return signCanonical(ctx, w, challenge, w.(MessageSigner).SignMessage)
}

func signCanonical(ctx context.Context, w Wallet, challenge core.SignInChallenge, sign func(context.Context, []byte) (any, error)) (SignInOutput, error) {
	publicKey, err := Bytes(w.PublicKey())
	if err != nil {
		return SignInOutput{}, fmt.Errorf("public key: %w", err)
	}
	if len(publicKey) == 0 {
		return SignInOutput{}, core.ErrConnectionRequired
	}

	message := []byte(core.BuildMessage(challenge, base58.Encode(publicKey)))
	signature, err := sign(ctx, message)
	if err != nil {
		return SignInOutput{}, err
	}

	return SignInOutput{
		Account:       publicKey,
		SignedMessage: message,
		Signature:     signature,
	}, nil
}

// Adapter presents one signing capability over heterogeneous wallets
type Adapter struct {
	wallet Wallet
}

// NewAdapter creates a new adapter for w
func NewAdapter(w Wallet) *Adapter {
	return &Adapter{wallet: w}
}

// Name returns the wallet name
func (a *Adapter) Name() string {
	return a.wallet.Name()
}

// Connect connects the wallet unless it already is
func (a *Adapter) Connect(ctx context.Context) error {
	if a.wallet.Connected() {
		return nil
	}

	connector, ok := a.wallet.(Connector)
	if !ok {
		return core.ErrConnectionRequired
	}
	if err := connector.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConnectionRequired, err)
	}
	if !a.wallet.Connected() {
		return core.ErrConnectionRequired
	}

	return nil
}

// PublicKey returns the normalized account key of a connected wallet
func (a *Adapter) PublicKey() ([]byte, error) {
	key, err := Bytes(a.wallet.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if len(key) == 0 {
		return nil, core.ErrConnectionRequired
	}
	return key, nil
}

// Path returns the name of the signing path SignIn would use, or "" when the
// wallet cannot sign messages.
func (a *Adapter) Path() string {
	for _, p := range signingPaths {
		if p.supports(a.wallet) {
			return p.name()
		}
	}
	return ""
}

// SignIn connects if needed and signs challenge through the first supported
// signing path. The returned proof only holds normalized byte slices.
func (a *Adapter) SignIn(ctx context.Context, challenge core.SignInChallenge) (core.SignInProof, error) {
	if err := a.Connect(ctx); err != nil {
		return core.SignInProof{}, err
	}

	for _, p := range signingPaths {
		if !p.supports(a.wallet) {
			continue
		}
		output, err := p.signIn(ctx, a.wallet, challenge)
		if err != nil {
			return core.SignInProof{}, fmt.Errorf("%s: %w", p.name(), err)
		}
		return proofFromOutput(output)
	}

	return core.SignInProof{}, core.ErrUnsupportedWallet
}

// CanSignTransactions reports whether the wallet exposes transaction signing
func (a *Adapter) CanSignTransactions() bool {
	_, ok := a.wallet.(TransactionSigner)
	return ok
}

// SignTransaction connects if needed and has the wallet sign tx
func (a *Adapter) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	signer, ok := a.wallet.(TransactionSigner)
	if !ok {
		return nil, core.ErrUnsignableWallet
	}
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}

	signed, err := signer.SignTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	if signed == nil {
		return nil, core.ErrIncompleteWalletResponse
	}
	return signed, nil
}

func proofFromOutput(output SignInOutput) (core.SignInProof, error) {
	var parts [3][]byte
	for i, v := range []any{output.Account, output.SignedMessage, output.Signature} {
		b, err := Bytes(v)
		if err != nil {
			return core.SignInProof{}, fmt.Errorf("%w: %v", core.ErrIncompleteWalletResponse, err)
		}
		if len(b) == 0 {
			return core.SignInProof{}, core.ErrIncompleteWalletResponse
		}
		parts[i] = b
	}

	return core.SignInProof{
		Account:       core.Account{PublicKey: parts[0]},
		SignedMessage: parts[1],
		Signature:     parts[2],
	}, nil
}
