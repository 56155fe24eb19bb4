// Package store holds the service's view of the practice app's data.
// The appointment record is owned elsewhere; this service only reads
// the fields that gate session admission, and writes back a live
// presence mirror so the practice app can see room occupancy.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

// Appointment statuses this service cares about. A cancelled
// appointment short-circuits admission before the time window is ever
// evaluated.
const (
	StatusScheduled = "SCHEDULED"
	StatusCancelled = "CANCELLED"
)

// Appointment is the slice of the scheduling record needed for
// admission decisions. StartTime and EndTime are immutable once
// scheduled; MediaLink is empty when no video session was configured.
type Appointment struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Status    string    `json:"status"`
	MediaLink string    `json:"mediaLink,omitempty"`
}

// AppointmentStore reads appointment records.
type AppointmentStore interface {
	GetAppointment(ctx context.Context, id string) (*Appointment, error)
}

// Presence mirrors live room membership for external readers. Calls
// are advisory: a failed write must never block or fail a join.
type Presence interface {
	AddPeer(ctx context.Context, roomID, socketID string) error
	RemovePeer(ctx context.Context, roomID, socketID string) error
}
