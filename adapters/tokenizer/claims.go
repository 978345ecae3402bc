package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the standard claims carried by a session cookie token.
// Subject holds the wallet address and ID the session id.
type SessionClaims struct {
	jwt.RegisteredClaims
}
