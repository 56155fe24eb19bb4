package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/stillwater-health/telesession/internal/session"
	"github.com/stillwater-health/telesession/internal/store"
)

// AdmissionResponse tells the waiting-room UI which phase to present.
// MinutesUntil is present only while waiting.
type AdmissionResponse struct {
	State        session.Phase `json:"state"`
	MinutesUntil int           `json:"minutesUntil,omitempty"`
}

// CheckAdmission evaluates whether the appointment's session can be
// entered right now. Cancelled appointments and appointments without a
// configured media link are terminal before the time window is ever
// consulted.
func CheckAdmission(appointments store.AppointmentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		apptID := c.Param("appointmentId")

		appt, err := appointments.GetAppointment(c.Request.Context(), apptID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Appointment not found"})
				return
			}
			log.Error().Err(err).Str("appointment_id", apptID).Msg("appointment lookup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load appointment"})
			return
		}

		snap := session.Classify(*appt, time.Now())
		c.JSON(http.StatusOK, AdmissionResponse{
			State:        snap.Phase,
			MinutesUntil: snap.MinutesUntil,
		})
	}
}
