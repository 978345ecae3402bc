package http

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/layer-3/solgate/service"
)

// Config controls the HTTP surface
type Config struct {
	CookieName   string  `help:"Name of the session cookie." env:"SOLGATE_COOKIE" default:"solgate_session"`
	SecureCookie bool    `help:"Mark the session cookie Secure." env:"SOLGATE_SECURE_COOKIE"`
	NonceRate    float64 `help:"Nonce requests per second allowed per client, 0 disables limiting." env:"SOLGATE_NONCE_RATE" default:"1"`
	NonceBurst   int     `help:"Nonce request burst per client." env:"SOLGATE_NONCE_BURST" default:"5"`
}

// SetupRouter sets up the Gin router. reg receives the auth counters and
// backs the /metrics endpoint.
func SetupRouter(authService *service.AuthService, cfg Config, reg *prometheus.Registry, logger watermill.LoggerAdapter) *gin.Engine {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "solgate_session"
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.With(watermill.LogFields{"component": "http"})))

	// Create handlers
	handlers := NewAuthHandlers(authService, cfg, NewMetrics(reg), logger)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.GET("/nonce", handlers.Nonce)
		auth.POST("/verify", handlers.Verify)
		auth.GET("/me", handlers.Me)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService, cfg.CookieName))
	{
		api.GET("/authorize", handlers.Authorize)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return router
}
