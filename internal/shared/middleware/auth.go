package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// AuthorizationHeader is the header key for authorization.
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens.
	BearerPrefix = "Bearer "
	// UserIDKey is the context key for the authenticated account ID.
	UserIDKey = "user_id"
	// EmailKey is the context key for the authenticated email.
	EmailKey = "email"
	// NameKey is the context key for the authenticated display name.
	NameKey = "name"
)

// TokenClaims holds the identity claims extracted from a verified token.
type TokenClaims struct {
	AccountID uuid.UUID
	Email     string
	Name      string
}

// TokenVerifier verifies a bearer token issued by the identity provider.
type TokenVerifier interface {
	VerifyToken(token string) (*TokenClaims, error)
}

// Auth returns a middleware that verifies bearer tokens.
// If the token is valid, it sets the account identity in the context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Authorization header required",
				},
			})
			return
		}

		claims, err := verifier.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Invalid or expired token",
				},
			})
			return
		}

		c.Set(UserIDKey, claims.AccountID)
		c.Set(EmailKey, claims.Email)
		c.Set(NameKey, claims.Name)

		c.Next()
	}
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader(AuthorizationHeader)
	if strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimPrefix(authHeader, BearerPrefix)
	}
	return ""
}

// GetUserID returns the authenticated account ID from context.
// Returns uuid.Nil if not found.
func GetUserID(c *gin.Context) uuid.UUID {
	if val, exists := c.Get(UserIDKey); exists {
		if userID, ok := val.(uuid.UUID); ok {
			return userID
		}
	}
	return uuid.Nil
}

// GetEmail returns the email from context, or empty string.
func GetEmail(c *gin.Context) string {
	return c.GetString(EmailKey)
}

// GetName returns the display name from context, or empty string.
func GetName(c *gin.Context) string {
	return c.GetString(NameKey)
}
