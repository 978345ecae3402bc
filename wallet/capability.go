package wallet

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/layer-3/solgate/core"
)

// Wallet is the minimal surface every wallet exposes. Signing support is
// discovered through the optional capability interfaces below.
type Wallet interface {
	Name() string
	Connected() bool

	// PublicKey returns the account key in any byte-like representation, or nil
	// while disconnected.
	PublicKey() any
}

// Connector is implemented by wallets that need an explicit connect step
type Connector interface {
	Connect(ctx context.Context) error
}

// SignInOutput is the bundle returned by a structured sign-in. Fields hold
// wallet specific byte-like values and are normalized by the Adapter.
type SignInOutput struct {
	Account       any
	SignedMessage any
	Signature     any
}

// SignInSigner accepts a challenge directly so the wallet can render a
// structured consent screen.
type SignInSigner interface {
	SignIn(ctx context.Context, challenge core.SignInChallenge) (SignInOutput, error)
}

// BytesSigner signs arbitrary bytes
type BytesSigner interface {
	SignBytes(ctx context.Context, message []byte) (any, error)
}

// MessageSigner is the legacy message signing method
type MessageSigner interface {
	SignMessage(ctx context.Context, message []byte) (any, error)
}

// TransactionSigner adds the wallet's signature to a transaction
type TransactionSigner interface {
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}
