package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/layer-3/solgate/core"
)

// NonceIssuer hands out sign-in nonces
type NonceIssuer interface {
	FetchNonce(ctx context.Context) (core.NonceGrant, error)
}

// Verifier checks a sign-in proof and establishes a session
type Verifier interface {
	Verify(ctx context.Context, proof core.SignInProof) (core.Identity, error)
}

// IdentityFetcher answers "who am I". A nil identity with a nil error means
// the caller is not authenticated.
type IdentityFetcher interface {
	WhoAmI(ctx context.Context) (*core.Identity, error)
}

// SessionTerminator ends the current session
type SessionTerminator interface {
	Logout(ctx context.Context) error
}

// Broadcaster submits signed transactions to the network and awaits confirmation.
// SendTransaction may return a signature alongside an error when the network
// assigned one before failing.
type Broadcaster interface {
	SendTransaction(ctx context.Context, raw []byte) (string, error)
	LatestBlockhash(ctx context.Context) (core.BlockhashContext, error)
	Confirm(ctx context.Context, signature string, recency core.BlockhashContext) error
}

// BalanceSource looks up the balance of an account address
type BalanceSource interface {
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
}
