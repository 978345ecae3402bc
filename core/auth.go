package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the state of the process-wide authentication session
type Status string

const (
	StatusPending         Status = "pending"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// SignInChallenge is the statement a wallet is asked to sign. It is built once per
// sign-in attempt and discarded afterwards.
type SignInChallenge struct {
	Domain         string    // Origin host presenting the challenge
	URI            string    // Origin URI
	Statement      string    // Human readable consent statement
	Nonce          string    // Server issued one-time token
	Version        string    // Message format version
	IssuedAt       time.Time // When the challenge was built
	ExpirationTime time.Time // Advisory, enforced by the verifier
}

// NewSignInChallenge builds a challenge valid for ttl starting at now
func NewSignInChallenge(origin Origin, statement, nonce string, now time.Time, ttl time.Duration) SignInChallenge {
	now = now.UTC()
	return SignInChallenge{
		Domain:         origin.Domain,
		URI:            origin.URI,
		Statement:      statement,
		Nonce:          nonce,
		Version:        MessageVersion,
		IssuedAt:       now,
		ExpirationTime: now.Add(ttl),
	}
}

// Origin identifies the application a user signs in to
type Origin struct {
	Domain string
	URI    string
}

// Account wraps the public key of the signing wallet
type Account struct {
	PublicKey ByteArray `json:"publicKey"`
}

// SignInProof is what the verifier receives. It is consumed exactly once.
type SignInProof struct {
	Account       Account   `json:"account"`
	SignedMessage ByteArray `json:"signedMessage"`
	Signature     ByteArray `json:"signature"`
}

// Identity is the authenticated user as reported by the identity service
type Identity struct {
	Address          string          `json:"address"`
	Balance          decimal.Decimal `json:"balance"`
	SessionExpiresAt time.Time       `json:"sessionExpiresAt,omitempty"`
}

// AuthSession is a snapshot of the session cache.
// Err holds the transport error of the last identity fetch, if any.
type AuthSession struct {
	Identity *Identity
	Status   Status
	Err      error
}

// Authenticated reports whether the session carries an identity
func (s AuthSession) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil
}

// NonceGrant is a nonce handed out by the nonce issuer
type NonceGrant struct {
	Nonce string
	TTL   time.Duration
}

// Session represents an authenticated server-side session
type Session struct {
	ID        string    // Unique session identifier, also the token id
	Address   string    // Base58 account address
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session cookie stops being valid
}
