// Package middleware provides authentication and recovery middleware for the Gin web framework.
package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys for storing user information
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UsernameKey is the key used to store username in session
	UsernameKey = "username"
)

// RequireAuth returns a middleware that requires authentication
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(UserIDKey)

		if userID == nil {
			unauthorized(c)
			return
		}

		// Validate user_id is an integer
		userIDInt, ok := userID.(int)
		if !ok {
			// Session stores may round-trip numbers as float64
			if userIDFloat, ok := userID.(float64); ok {
				userIDInt = int(userIDFloat)
			} else {
				unauthorized(c)
				return
			}
		}

		username := session.Get(UsernameKey)
		usernameStr, ok := username.(string)
		if !ok || usernameStr == "" {
			unauthorized(c)
			return
		}

		// Store user info in context for handlers to use
		c.Set(UserIDKey, userIDInt)
		c.Set(UsernameKey, usernameStr)

		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": "Authentication required",
		"code":  "UNAUTHORIZED",
	})
	c.Abort()
}
