package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/waffice/backend/internal/utils"
	"github.com/waffice/backend/pkg/apperrors"
	"github.com/waffice/backend/pkg/response"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

// AuthRequired verifies the bearer session token and stores the user id.
// Permissions are not taken from the token: services reload the caller
// from the store on every request.
func AuthRequired(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			response.Error(c, apperrors.ErrUnauthorized.WithMessage("authorization header required"))
			return
		}

		claims, err := tokens.ParseToken(tokenString)
		if err != nil {
			response.Error(c, apperrors.ErrUnauthorized.WithMessage("invalid or expired token"))
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// GetUserID gets the current user ID from context
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		if v, ok := id.(uint); ok {
			return v
		}
	}
	return 0
}

// GetEmail gets the current user's email from context
func GetEmail(c *gin.Context) string {
	return c.GetString(ContextEmail)
}
