package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aescanero/reelgen/internal/auth"
)

// identityKey is the gin context key the auth middlewares store the caller's
// user id under.
const identityKey = "identity"

// CORS middleware for the browser frontend
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// OptionalAuth attaches the caller's identity when a bearer token is
// presented. No token means anonymous; a token that fails verification is
// rejected rather than downgraded.
func OptionalAuth(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		userID, err := svc.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: ErrorDetail{
					Code:    "UNAUTHORIZED",
					Message: "invalid bearer token",
				},
			})
			return
		}
		c.Set(identityKey, userID)
		c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: ErrorDetail{
					Code:    "UNAUTHORIZED",
					Message: "missing bearer token",
				},
			})
			return
		}

		userID, err := svc.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: ErrorDetail{
					Code:    "UNAUTHORIZED",
					Message: "invalid bearer token",
				},
			})
			return
		}
		c.Set(identityKey, userID)
		c.Next()
	}
}

// identity returns the authenticated user id, or "" for anonymous callers.
func identity(c *gin.Context) string {
	return c.GetString(identityKey)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
