package core

import (
	"fmt"
	"strings"
	"time"
)

// MessageVersion is the only sign-in message version produced and accepted
const MessageVersion = "1"

const (
	headerSuffix    = " wants you to sign in with your Solana account:"
	uriPrefix       = "URI: "
	versionPrefix   = "Version: "
	noncePrefix     = "Nonce: "
	issuedAtPrefix  = "Issued At: "
	expirationLabel = "Expiration Time: "
)

// FormatTimestamp renders t as the ISO-8601 form used inside sign-in messages
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// BuildMessage renders the canonical sign-in message for challenge and the base58 address.
// The verifier re-derives this exact string, so the layout must not change.
func BuildMessage(challenge SignInChallenge, address string) string {
	lines := []string{
		challenge.Domain + headerSuffix,
		address,
		"",
		challenge.Statement,
		"",
		uriPrefix + challenge.URI,
		versionPrefix + challenge.Version,
		noncePrefix + challenge.Nonce,
		issuedAtPrefix + FormatTimestamp(challenge.IssuedAt),
		expirationLabel + FormatTimestamp(challenge.ExpirationTime),
	}
	return strings.Join(lines, "\n")
}

// ParseMessage is the inverse of BuildMessage. It returns the challenge and the address line.
func ParseMessage(msg string) (SignInChallenge, string, error) {
	lines := strings.Split(msg, "\n")
	if len(lines) != 10 || lines[2] != "" || lines[4] != "" {
		return SignInChallenge{}, "", fmt.Errorf("unexpected message layout: %w", ErrInvalidMessage)
	}

	domain, ok := strings.CutSuffix(lines[0], headerSuffix)
	if !ok || domain == "" {
		return SignInChallenge{}, "", fmt.Errorf("missing header: %w", ErrInvalidMessage)
	}

	address := lines[1]
	if address == "" {
		return SignInChallenge{}, "", fmt.Errorf("missing address: %w", ErrInvalidMessage)
	}

	fields := make([]string, 0, 5)
	for i, prefix := range []string{uriPrefix, versionPrefix, noncePrefix, issuedAtPrefix, expirationLabel} {
		value, ok := strings.CutPrefix(lines[5+i], prefix)
		if !ok {
			return SignInChallenge{}, "", fmt.Errorf("missing %q line: %w", strings.TrimSuffix(prefix, ": "), ErrInvalidMessage)
		}
		fields = append(fields, value)
	}

	issuedAt, err := time.Parse(time.RFC3339Nano, fields[3])
	if err != nil {
		return SignInChallenge{}, "", fmt.Errorf("issued at: %w", ErrInvalidMessage)
	}
	expiration, err := time.Parse(time.RFC3339Nano, fields[4])
	if err != nil {
		return SignInChallenge{}, "", fmt.Errorf("expiration time: %w", ErrInvalidMessage)
	}

	return SignInChallenge{
		Domain:         domain,
		URI:            fields[0],
		Statement:      lines[3],
		Version:        fields[1],
		Nonce:          fields[2],
		IssuedAt:       issuedAt,
		ExpirationTime: expiration,
	}, address, nil
}
