package core

import "errors"

// Sign-in flow
var (
	ErrConnectionRequired       = errors.New("wallet not connected")
	ErrUnsupportedWallet        = errors.New("wallet does not support message signing")
	ErrBadChallengeParameters   = errors.New("bad challenge parameters")
	ErrIncompleteWalletResponse = errors.New("incomplete wallet response")
	ErrVerificationRejected     = errors.New("sign-in verification rejected")
)

// Relay flow
var (
	ErrEmptyPayload       = errors.New("empty transaction payload")
	ErrMalformedPayload   = errors.New("malformed transaction payload")
	ErrUnsignableWallet   = errors.New("wallet cannot sign transactions")
	ErrBroadcastFailed    = errors.New("transaction broadcast failed")
	ErrConfirmationFailed = errors.New("transaction confirmation failed")
)

// Identity service
var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrInvalidMessage   = errors.New("invalid sign-in message")
	ErrChallengeExpired = errors.New("sign-in challenge expired")
	ErrDomainMismatch   = errors.New("sign-in domain mismatch")
	ErrRateLimited      = errors.New("too many requests")
)
