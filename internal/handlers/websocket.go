package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/stillwater-health/telesession/internal/metrics"
	"github.com/stillwater-health/telesession/internal/rooms"
	"github.com/stillwater-health/telesession/internal/token"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by the OriginFilter middleware.
		return true
	},
}

// Reason codes reported on a refused connection. The set is closed: a
// rejected credential maps onto exactly one of these.
const (
	ReasonMissingToken     = "missing_token"
	ReasonInvalidSignature = "invalid_signature"
	ReasonExpired          = "expired"
	ReasonMissingRole      = "missing_role"
)

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, token.ErrMissingToken):
		return ReasonMissingToken
	case errors.Is(err, token.ErrExpired):
		return ReasonExpired
	case errors.Is(err, token.ErrMissingRole):
		return ReasonMissingRole
	default:
		return ReasonInvalidSignature
	}
}

// HandleSignaling is the connection gate plus the websocket upgrade.
// The credential is verified before the upgrade, so a refused attempt
// is a terminal HTTP 401 with a reason code and no socket ever enters
// the room registry. On success the verified identity is attached to
// the connection and trusted for its whole lifetime; there is no
// re-check, so a credential expiring mid-call does not drop the call.
func HandleSignaling(issuer *token.Issuer, registry *rooms.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := issuer.Verify(c.Query("token"))
		if err != nil {
			reason := rejectionReason(err)
			metrics.AuthFailures.WithLabelValues(reason).Inc()
			log.Warn().Str("reason", reason).Msg("realtime connection refused")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":  "authentication failed",
				"reason": reason,
			})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := rooms.NewClient(registry, conn, *identity)
		log.Info().
			Str("socket_id", client.ID).
			Str("user_id", identity.UserID).
			Str("role", identity.Role).
			Msg("realtime connection accepted")

		client.Serve()
	}
}
