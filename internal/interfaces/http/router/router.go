// Package router assembles the gin engine: middleware chain, API version
// group and endpoint registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/infrastructure/logger"
	"github.com/blingsync/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar registers a handler's routes on the API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config holds router configuration
type Config struct {
	// Env selects the gin mode ("production" runs ReleaseMode)
	Env string
	// APIVersion is the version path segment, default "v1"
	APIVersion string
	// Auth is the tenant authentication configuration
	Auth middleware.AuthConfig
	// CORS is the cross-origin configuration
	CORS middleware.CORSConfig
	// Public are registrars mounted before authentication (health, webhooks)
	Public []RouteRegistrar
	// Protected are registrars mounted behind tenant authentication
	Protected []RouteRegistrar
}

// New builds the gin engine with the middleware chain and all routes
// registered.
func New(cfg Config, log *zap.Logger) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1"
	}
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.CORS(cfg.CORS),
	)

	api := engine.Group("/api/" + cfg.APIVersion)

	// Public endpoints: liveness and the Bling webhook sit outside tenant auth
	for _, registrar := range cfg.Public {
		registrar.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(middleware.Auth(cfg.Auth))
	for _, registrar := range cfg.Protected {
		registrar.RegisterRoutes(protected)
	}

	return engine
}
