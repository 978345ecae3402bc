package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"

	"github.com/layer-3/solgate/core"
	"github.com/layer-3/solgate/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	cfg         Config
	metrics     *Metrics
	limiter     *clientLimiter
	logger      watermill.LoggerAdapter
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, cfg Config, metrics *Metrics, logger watermill.LoggerAdapter) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		cfg:         cfg,
		metrics:     metrics,
		limiter:     newClientLimiter(cfg.NonceRate, cfg.NonceBurst),
		logger:      logger.With(watermill.LogFields{"component": "auth_handlers"}),
	}
}

// Nonce hands out a single-use sign-in nonce
func (h *AuthHandlers) Nonce(c *gin.Context) {
	if !h.limiter.allow(c.ClientIP(), time.Now()) {
		h.metrics.rateLimited.Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": core.ErrRateLimited.Error()})
		return
	}

	grant, err := h.authService.IssueNonce(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to issue nonce", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue nonce"})
		return
	}
	h.metrics.noncesIssued.Inc()

	c.JSON(http.StatusOK, gin.H{
		"nonce":      grant.Nonce,
		"ttlSeconds": int64(grant.TTL / time.Second),
	})
}

// Verify checks a signed sign-in message and sets the session cookie
func (h *AuthHandlers) Verify(c *gin.Context) {
	var proof core.SignInProof
	if err := c.ShouldBindJSON(&proof); err != nil {
		h.metrics.signIns.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	identity, token, err := h.authService.VerifySignIn(c.Request.Context(), proof)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Verification failed"

		// Map specific errors to appropriate status codes
		switch {
		case errors.Is(err, core.ErrInvalidMessage), errors.Is(err, core.ErrDomainMismatch):
			statusCode = http.StatusBadRequest
			errorMsg = err.Error()
		case errors.Is(err, core.ErrInvalidSignature):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid signature"
		case errors.Is(err, core.ErrInvalidNonce):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid or used nonce"
		case errors.Is(err, core.ErrChallengeExpired):
			statusCode = http.StatusUnauthorized
			errorMsg = "Challenge expired"
		default:
			h.logger.Error("Verification failed", err, nil)
		}

		h.metrics.signIns.WithLabelValues("rejected").Inc()
		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	h.metrics.signIns.WithLabelValues("ok").Inc()
	h.setSessionCookie(c, token, h.authService.SessionTTL())

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"user":       identity,
		"ttlSeconds": int64(h.authService.SessionTTL() / time.Second),
	})
}

// Me returns the signed-in user, or authenticated false when there is none
func (h *AuthHandlers) Me(c *gin.Context) {
	token := sessionToken(c, h.cfg.CookieName)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	identity, err := h.authService.Identity(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidToken),
			errors.Is(err, core.ErrTokenExpired),
			errors.Is(err, core.ErrTokenInvalidated):
			h.clearSessionCookie(c)
			c.JSON(http.StatusOK, gin.H{"authenticated": false})
		default:
			h.logger.Error("Identity lookup failed", err, nil)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          identity,
	})
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	token := sessionToken(c, h.cfg.CookieName)
	h.clearSessionCookie(c)

	if token == "" {
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		if errors.Is(err, core.ErrInvalidToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session token"})
			return
		}

		h.logger.Error("Logout failed", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}
	h.metrics.logouts.Inc()

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Authorize checks if a user is authorized
func (h *AuthHandlers) Authorize(c *gin.Context) {
	// If the request reached this handler, the auth middleware has already
	// validated the token
	address, exists := c.Get("userAddress")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"address":    address,
	})
}

func (h *AuthHandlers) setSessionCookie(c *gin.Context, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, token, int(ttl/time.Second), "/", "", h.cfg.SecureCookie, true)
}

func (h *AuthHandlers) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, "", -1, "/", "", h.cfg.SecureCookie, true)
}
