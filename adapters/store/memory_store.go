package store

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/layer-3/solgate/ports"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Entries expire on their own; Close stops the cleanup loop.
type MemoryStore struct {
	nonces      *ttlcache.Cache[string, struct{}]
	invalidated *ttlcache.Cache[string, struct{}]
}

var _ ports.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		nonces:      ttlcache.New[string, struct{}](ttlcache.WithDisableTouchOnHit[string, struct{}]()),
		invalidated: ttlcache.New[string, struct{}](ttlcache.WithDisableTouchOnHit[string, struct{}]()),
	}

	go s.nonces.Start()
	go s.invalidated.Start()

	return s
}

// PutNonce records an outstanding nonce
func (s *MemoryStore) PutNonce(ctx context.Context, nonce string, ttl time.Duration) error {
	s.nonces.Set(nonce, struct{}{}, ttl)
	return nil
}

// ConsumeNonce removes the nonce; only the first call for a live nonce succeeds
func (s *MemoryStore) ConsumeNonce(ctx context.Context, nonce string) (bool, error) {
	item, ok := s.nonces.GetAndDelete(nonce)
	if !ok || item == nil || item.IsExpired() {
		return false, nil
	}
	return true, nil
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.invalidated.Set(tokenID, struct{}{}, expiry)
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	item := s.invalidated.Get(tokenID)
	return item != nil && !item.IsExpired(), nil
}

// Close stops the expiry loops
func (s *MemoryStore) Close() {
	s.nonces.Stop()
	s.invalidated.Stop()
}
