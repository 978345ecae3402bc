package ports

import (
	"context"
	"time"
)

// Store keeps single-use nonces and invalidated session tokens
type Store interface {
	// PutNonce records a freshly issued nonce for ttl
	PutNonce(ctx context.Context, nonce string, ttl time.Duration) error

	// ConsumeNonce removes the nonce and reports whether it was still outstanding
	ConsumeNonce(ctx context.Context, nonce string) (bool, error)

	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}
