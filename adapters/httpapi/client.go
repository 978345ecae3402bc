// Package httpapi talks to the solgate identity service over HTTP. It
// implements the nonce, verification, identity and logout collaborators the
// sign-in flow depends on; the session cookie lives in the client's jar.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/layer-3/solgate/core"
	"github.com/layer-3/solgate/ports"
)

// ttlKeys are the response fields a nonce TTL may arrive under, in order of preference
var ttlKeys = []string{"ttlSeconds", "ttl", "ttl_seconds", "expiresIn", "expires_in"}

// maxTTLSeconds keeps the TTL representable as a time.Duration
const maxTTLSeconds = float64(math.MaxInt64 / int64(time.Second))

// Client is an HTTP client for the identity service
type Client struct {
	baseURL string
	http    *http.Client
}

var (
	_ ports.NonceIssuer       = (*Client)(nil)
	_ ports.Verifier          = (*Client)(nil)
	_ ports.IdentityFetcher   = (*Client)(nil)
	_ ports.SessionTerminator = (*Client)(nil)
)

// New creates a client for the service at baseURL. When httpClient is nil a
// client with its own cookie jar is used.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

// FetchNonce requests a fresh sign-in nonce
func (c *Client) FetchNonce(ctx context.Context) (core.NonceGrant, error) {
	var body map[string]any
	if err := c.do(ctx, http.MethodGet, "/auth/nonce", nil, &body); err != nil {
		return core.NonceGrant{}, err
	}

	nonce, _ := body["nonce"].(string)
	if nonce == "" {
		return core.NonceGrant{}, fmt.Errorf("missing nonce: %w", core.ErrBadChallengeParameters)
	}

	ttl, err := nonceTTL(body)
	if err != nil {
		return core.NonceGrant{}, err
	}

	return core.NonceGrant{Nonce: nonce, TTL: ttl}, nil
}

// Verify submits a sign-in proof. A rejection by the service is reported as
// core.ErrVerificationRejected.
func (c *Client) Verify(ctx context.Context, proof core.SignInProof) (core.Identity, error) {
	var body struct {
		User core.Identity `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/verify", proof, &body); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			return core.Identity{}, fmt.Errorf("%w: %w", core.ErrVerificationRejected, err)
		}
		return core.Identity{}, err
	}

	if body.User.Address == "" {
		return core.Identity{}, fmt.Errorf("%w: response carries no user", core.ErrVerificationRejected)
	}

	return body.User, nil
}

// WhoAmI returns the signed-in identity or nil when there is none
func (c *Client) WhoAmI(ctx context.Context) (*core.Identity, error) {
	var body struct {
		Authenticated bool           `json:"authenticated"`
		User          *core.Identity `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &body); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}

	if !body.Authenticated || body.User == nil {
		return nil, nil
	}

	return body.User, nil
}

// Logout ends the session held in the cookie jar
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)
		return &StatusError{Code: resp.StatusCode, Message: body.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}

	return nil
}

// nonceTTL reads the first TTL alias present. Values may be numbers or
// numeric strings and must be finite and positive.
func nonceTTL(body map[string]any) (time.Duration, error) {
	for _, key := range ttlKeys {
		raw, ok := body[key]
		if !ok || raw == nil {
			continue
		}

		var seconds float64
		switch v := raw.(type) {
		case float64:
			seconds = v
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return 0, fmt.Errorf("%s %q: %w", key, v, core.ErrBadChallengeParameters)
			}
			seconds = f
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return 0, fmt.Errorf("%s %q: %w", key, v, core.ErrBadChallengeParameters)
			}
			seconds = f
		default:
			return 0, fmt.Errorf("%s has type %T: %w", key, raw, core.ErrBadChallengeParameters)
		}

		if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds <= 0 || seconds > maxTTLSeconds {
			return 0, fmt.Errorf("%s %v: %w", key, seconds, core.ErrBadChallengeParameters)
		}

		return time.Duration(seconds * float64(time.Second)), nil
	}

	return 0, fmt.Errorf("missing ttl: %w", core.ErrBadChallengeParameters)
}
