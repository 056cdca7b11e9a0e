package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blingsync/backend/internal/infrastructure/logger"
	"github.com/blingsync/backend/internal/interfaces/http/dto"
)

// Auth context keys and header constants
const (
	TenantIDKey     = "tenant_id"
	UserIDKey       = "user_id"
	TenantHeaderKey = "X-Tenant-ID"
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
)

var (
	// ErrMissingToken indicates no bearer token was presented
	ErrMissingToken = errors.New("middleware: missing bearer token")
	// ErrInvalidToken indicates the token failed validation
	ErrInvalidToken = errors.New("middleware: invalid token")
	// ErrMissingTenant indicates no tenant could be established for the request
	ErrMissingTenant = errors.New("middleware: tenant identification required")
)

// Claims are the JWT claims this service consumes. TenantID is mandatory for
// authenticated requests; UserID identifies the operator for audit fields.
type Claims struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	jwt.RegisteredClaims
}

// AuthConfig holds configuration for the tenant auth middleware
type AuthConfig struct {
	// Secret is the HMAC signing secret
	Secret string
	// SkipPaths are exact paths that never require authentication
	SkipPaths []string
	// HeaderFallback allows the X-Tenant-ID header to establish tenant
	// identity when no bearer token is present. Development only.
	HeaderFallback bool
	// Logger for middleware logging
	Logger *zap.Logger
}

// DefaultAuthConfig returns default auth middleware configuration
func DefaultAuthConfig(secret string) AuthConfig {
	return AuthConfig{
		Secret: secret,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/api/v1/health",
		},
		HeaderFallback: false,
	}
}

// Auth validates the bearer token and establishes tenant identity for the
// request. Token claims win over the X-Tenant-ID header.
func Auth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip {
				c.Next()
				return
			}
		}

		tenantID, userID, err := authenticate(c, cfg)
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("Request authentication failed",
					zap.String("path", path),
					zap.Error(err),
				)
			}
			code := dto.ErrCodeUnauthorized
			message := "Authentication required"
			if errors.Is(err, jwt.ErrTokenExpired) {
				code = dto.ErrCodeTokenExpired
				message = "Token has expired"
			} else if errors.Is(err, ErrInvalidToken) {
				code = dto.ErrCodeTokenInvalid
				message = "Invalid token"
			} else if errors.Is(err, ErrMissingTenant) {
				message = "Tenant identification required"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
			return
		}

		c.Set(TenantIDKey, tenantID)
		if userID != "" {
			c.Set(UserIDKey, userID)
		}

		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		ctx, _ = logger.WithTenantID(ctx, log, tenantID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// authenticate extracts and validates tenant identity from the request
func authenticate(c *gin.Context, cfg AuthConfig) (uuid.UUID, string, error) {
	authHeader := c.GetHeader(AuthHeaderKey)
	if authHeader == "" {
		if cfg.HeaderFallback {
			if header := c.GetHeader(TenantHeaderKey); header != "" {
				tenantID, err := uuid.Parse(header)
				if err != nil {
					return uuid.Nil, "", ErrMissingTenant
				}
				return tenantID, "", nil
			}
		}
		return uuid.Nil, "", ErrMissingToken
	}

	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return uuid.Nil, "", ErrInvalidToken
	}
	tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
	if tokenString == "" {
		return uuid.Nil, "", ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, "", err
		}
		return uuid.Nil, "", ErrInvalidToken
	}
	if !token.Valid {
		return uuid.Nil, "", ErrInvalidToken
	}

	if claims.TenantID == "" {
		return uuid.Nil, "", ErrMissingTenant
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return uuid.Nil, "", ErrMissingTenant
	}
	return tenantID, claims.UserID, nil
}

// GetTenantID retrieves the authenticated tenant ID from gin.Context
func GetTenantID(c *gin.Context) (uuid.UUID, bool) {
	if v, exists := c.Get(TenantIDKey); exists {
		if id, ok := v.(uuid.UUID); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

// GetUserID retrieves the authenticated user ID from gin.Context, when any
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	if v, exists := c.Get(UserIDKey); exists {
		if s, ok := v.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				return id, true
			}
		}
	}
	return uuid.Nil, false
}
