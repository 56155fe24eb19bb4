package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/stillwater-health/telesession/internal/middleware"
	"github.com/stillwater-health/telesession/internal/token"
)

// TokenResponse carries the freshly minted realtime credential.
type TokenResponse struct {
	Token string `json:"token"`
}

// IssueSessionToken mints a short-lived realtime credential for the
// authenticated web identity. Runs behind SessionAuth, so an identity
// is always present; issued tokens are not recorded and cannot be
// revoked before expiry.
func IssueSessionToken(issuer *token.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(middleware.IdentityKey)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		identity := v.(token.Identity)

		signed, err := issuer.Issue(identity)
		if err != nil {
			log.Error().Err(err).Str("user_id", identity.UserID).Msg("credential issuance failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		c.JSON(http.StatusOK, TokenResponse{Token: signed})
	}
}
