package solgate

import (
	"context"

	"github.com/layer-3/solgate/core"
)

// Client represents the public interface an application uses to authenticate
// a wallet and relay transactions
type Client interface {
	// SignIn proves ownership of the connected wallet to the identity service
	SignIn(ctx context.Context) error

	// SignOut ends the current session
	SignOut(ctx context.Context) error

	// Session returns the current authentication session
	Session() core.AuthSession

	// Refresh re-checks the identity, joining an in-flight check if there is one
	Refresh(ctx context.Context) core.AuthSession

	// Subscribe registers listener for session transitions
	Subscribe(listener func(core.AuthSession)) (unsubscribe func())

	// Relay signs and broadcasts a server-built transaction
	Relay(ctx context.Context, transactionBase64 string) core.RelayOutcome
}
