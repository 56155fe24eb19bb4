package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/stillwater-health/telesession/internal/token"
)

// IdentityKey is where SessionAuth stores the authenticated identity
// in the gin context.
const IdentityKey = "identity"

// SessionClaims is the practice app's web-session token payload.
type SessionClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// SessionAuth validates the web-session bearer token issued by the
// practice app. Everything behind it can assume an authenticated
// caller; the realtime credential issuer in particular must never run
// without one.
func SessionAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			return
		}

		tok, err := jwt.ParseWithClaims(parts[1], &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid session",
			})
			return
		}

		claims, ok := tok.Claims.(*SessionClaims)
		if !ok || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid session claims",
			})
			return
		}

		c.Set(IdentityKey, token.Identity{
			UserID: claims.UserID,
			Name:   claims.Name,
			Role:   claims.Role,
		})
		c.Next()
	}
}
