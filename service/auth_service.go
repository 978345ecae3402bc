package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/layer-3/solgate/core"
	"github.com/layer-3/solgate/ports"
)

// Config controls the sign-in verifier
type Config struct {
	Domain     string        `help:"Domain sign-in messages must name." env:"SOLGATE_DOMAIN" default:"localhost"`
	NonceTTL   time.Duration `help:"How long an issued nonce stays valid." env:"SOLGATE_NONCE_TTL" default:"5m"`
	SessionTTL time.Duration `help:"Lifetime of a session cookie." env:"SOLGATE_SESSION_TTL" default:"24h"`
	ClockSkew  time.Duration `help:"Tolerated clock drift on message timestamps." env:"SOLGATE_CLOCK_SKEW" default:"1m"`
}

// AuthService handles authentication business logic
type AuthService struct {
	tokenizer ports.Tokenizer
	store     ports.Store
	eventPub  ports.EventPublisher
	balances  ports.BalanceSource
	logger    watermill.LoggerAdapter

	domain     string
	nonceTTL   time.Duration
	sessionTTL time.Duration
	clockSkew  time.Duration
	now        func() time.Time
}

// NewAuthService creates a new authentication service. balances may be nil,
// in which case identities report a zero balance.
func NewAuthService(
	cfg Config,
	tokenizer ports.Tokenizer,
	store ports.Store,
	eventPub ports.EventPublisher,
	balances ports.BalanceSource,
	logger watermill.LoggerAdapter,
) *AuthService {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.NonceTTL <= 0 {
		cfg.NonceTTL = 5 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	return &AuthService{
		tokenizer:  tokenizer,
		store:      store,
		eventPub:   eventPub,
		balances:   balances,
		logger:     logger.With(watermill.LogFields{"component": "auth_service"}),
		domain:     cfg.Domain,
		nonceTTL:   cfg.NonceTTL,
		sessionTTL: cfg.SessionTTL,
		clockSkew:  cfg.ClockSkew,
		now:        time.Now,
	}
}

// SessionTTL is the lifetime of issued session tokens
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// IssueNonce generates a single-use sign-in nonce
func (s *AuthService) IssueNonce(ctx context.Context) (core.NonceGrant, error) {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return core.NonceGrant{}, fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(nonceBytes)

	if err := s.store.PutNonce(ctx, nonce, s.nonceTTL); err != nil {
		return core.NonceGrant{}, err
	}

	return core.NonceGrant{Nonce: nonce, TTL: s.nonceTTL}, nil
}

// VerifySignIn checks a signed sign-in message and opens a session. It
// returns the identity and the session token.
func (s *AuthService) VerifySignIn(ctx context.Context, proof core.SignInProof) (core.Identity, string, error) {
	challenge, address, err := core.ParseMessage(string(proof.SignedMessage))
	if err != nil {
		return core.Identity{}, "", err
	}

	if challenge.Domain != s.domain {
		return core.Identity{}, "", fmt.Errorf("%w: %q", core.ErrDomainMismatch, challenge.Domain)
	}
	if challenge.Version != core.MessageVersion {
		return core.Identity{}, "", fmt.Errorf("unsupported version %q: %w", challenge.Version, core.ErrInvalidMessage)
	}

	// Verify that the address matches the signing key
	if len(proof.Account.PublicKey) != ed25519.PublicKeySize {
		return core.Identity{}, "", fmt.Errorf("public key must be %d bytes: %w", ed25519.PublicKeySize, core.ErrInvalidSignature)
	}
	if base58.Encode(proof.Account.PublicKey) != address {
		return core.Identity{}, "", fmt.Errorf("address mismatch: %w", core.ErrInvalidSignature)
	}
	if len(proof.Signature) != ed25519.SignatureSize {
		return core.Identity{}, "", fmt.Errorf("signature must be %d bytes: %w", ed25519.SignatureSize, core.ErrInvalidSignature)
	}
	if !ed25519.Verify(ed25519.PublicKey(proof.Account.PublicKey), proof.SignedMessage, proof.Signature) {
		return core.Identity{}, "", core.ErrInvalidSignature
	}

	now := s.now()
	if now.After(challenge.ExpirationTime) {
		return core.Identity{}, "", core.ErrChallengeExpired
	}
	if challenge.IssuedAt.After(now.Add(s.clockSkew)) {
		return core.Identity{}, "", fmt.Errorf("issued in the future: %w", core.ErrInvalidMessage)
	}

	// The nonce is consumed last so an unsigned request cannot burn it
	consumed, err := s.store.ConsumeNonce(ctx, challenge.Nonce)
	if err != nil {
		return core.Identity{}, "", err
	}
	if !consumed {
		return core.Identity{}, "", core.ErrInvalidNonce
	}

	session := &core.Session{
		ID:        uuid.New().String(),
		Address:   address,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return core.Identity{}, "", fmt.Errorf("failed to create session token: %w", err)
	}

	if err := s.eventPub.PublishSignIn(ctx, session.Address, session.ID); err != nil {
		s.logger.Error("Failed to publish sign-in event", err, watermill.LogFields{"address": session.Address})
	}

	s.logger.Info("Session opened", watermill.LogFields{
		"address":    session.Address,
		"session_id": session.ID,
	})

	return s.identity(ctx, session), token, nil
}

// Identity resolves the identity behind a session token
func (s *AuthService) Identity(ctx context.Context, token string) (core.Identity, error) {
	session, err := s.ValidateToken(ctx, token)
	if err != nil {
		return core.Identity{}, err
	}

	return s.identity(ctx, session), nil
}

// ValidateToken parses a session token and checks it is neither expired nor invalidated
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	if s.now().After(session.ExpiresAt) {
		return nil, core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	return session, nil
}

// Logout invalidates a session token
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return err
	}

	// Expired tokens are still recorded for a short while so a skewed clock
	// cannot bring them back
	remaining := session.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		remaining = time.Hour
	}

	if err := s.store.InvalidateToken(ctx, session.ID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.Address, session.ID); err != nil {
		// The token is already invalidated in the store
		s.logger.Error("Failed to publish logout event", err, watermill.LogFields{"address": session.Address})
	}

	return nil
}

func (s *AuthService) identity(ctx context.Context, session *core.Session) core.Identity {
	identity := core.Identity{
		Address:          session.Address,
		SessionExpiresAt: session.ExpiresAt,
	}

	if s.balances == nil {
		return identity
	}

	balance, err := s.balances.Balance(ctx, session.Address)
	if err != nil {
		s.logger.Error("Balance lookup failed", err, watermill.LogFields{"address": session.Address})
		return identity
	}
	identity.Balance = balance

	return identity
}
