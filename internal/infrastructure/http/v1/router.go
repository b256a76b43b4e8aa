// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"logibill/internal/domain/auth"
	"logibill/internal/domain/numbering"
	"logibill/internal/infrastructure/http/v1/handlers"
	"logibill/internal/infrastructure/http/v1/middleware"
	"logibill/pkg/logger"
)

// Metrics is what the router needs from the Prometheus recorder.
type Metrics interface {
	middleware.RequestMetrics
	Handler() http.Handler
}

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// AuthService issues tokens; nil disables POST /auth/token
	AuthService *auth.Service

	// NumberingService backs the numbering endpoints
	NumberingService *numbering.Service

	// ReadinessChecks are reported by /health/ready
	ReadinessChecks map[string]handlers.Pinger

	// Metrics records HTTP metrics and serves /metrics; nil disables both
	Metrics Metrics

	// RateLimiter throttles /api/v1 per client; nil disables it
	RateLimiter *middleware.RateLimiter

	// Debug enables gin debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.ReadinessChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		registerAuthRoutes(v1, cfg)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))
		if cfg.RateLimiter != nil {
			// Keyed by client id, so it must run after Auth.
			protected.Use(cfg.RateLimiter.Middleware())
		}

		registerNumberingRoutes(protected, cfg)
	}

	return router
}

// registerAuthRoutes registers authentication endpoints.
func registerAuthRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.AuthService == nil {
		return
	}

	authHandler := handlers.NewAuthHandler(handlers.NewBaseHandler(), cfg.AuthService)
	if cfg.RateLimiter != nil {
		// Keyed by remote IP: the caller is not authenticated yet.
		rg.POST("/auth/token", cfg.RateLimiter.Middleware(), authHandler.Token)
		return
	}
	rg.POST("/auth/token", authHandler.Token)
}

// registerNumberingRoutes registers numbering store endpoints.
func registerNumberingRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.NumberingService == nil {
		return
	}

	handler := handlers.NewNumberingHandler(handlers.NewBaseHandler(), cfg.NumberingService)
	RegisterNumberingRoutes(rg.Group("/numbering"), handler)
}
