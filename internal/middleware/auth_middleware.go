package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/brroMonta/gifting/internal/errors"
	"github.com/brroMonta/gifting/pkg/util"
)

// Context keys for owner information
const (
	OwnerIDKey    = "owner_id"
	OwnerEmailKey = "owner_email"
)

type AuthMiddleware struct {
	jwtSecret string
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// Authenticate requires a valid bearer token and stores the owner in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Missing authorization header", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.Unauthorized(c, apperrors.AuthUnauthorized, "Authorization header is required")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.Warn("Invalid authorization header format", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.Unauthorized(c, apperrors.AuthTokenInvalid, "Authorization header must be Bearer <token>")
			c.Abort()
			return
		}

		claims, err := util.ValidateToken(parts[1], m.jwtSecret)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})

			if errors.Is(err, util.ErrExpiredToken) {
				apperrors.Unauthorized(c, apperrors.AuthTokenExpired, "Token has expired")
			} else {
				apperrors.Unauthorized(c, apperrors.AuthTokenInvalid, "Invalid token")
			}
			c.Abort()
			return
		}

		c.Set(OwnerIDKey, claims.OwnerID)
		c.Set(OwnerEmailKey, claims.Email)

		log.Debug("Owner authenticated", map[string]interface{}{
			"owner_id": claims.OwnerID,
		})

		c.Next()
	}
}

// GetOwnerID extracts the authenticated owner from context
func GetOwnerID(c *gin.Context) (string, bool) {
	ownerID, exists := c.Get(OwnerIDKey)
	if !exists {
		return "", false
	}
	id, ok := ownerID.(string)
	return id, ok && id != ""
}

// GetOwnerEmail extracts the owner email from context
func GetOwnerEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(OwnerEmailKey)
	if !exists {
		return "", false
	}
	return email.(string), true
}
