// Package session drives the waiting-room state machine for one
// scheduled appointment: it decides which of the terminal or
// time-dependent phases the UI should present and keeps that decision
// fresh on a fixed tick.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stillwater-health/telesession/internal/admission"
	"github.com/stillwater-health/telesession/internal/store"
)

type Phase string

const (
	PhaseEvaluating Phase = "EVALUATING"
	PhaseCancelled  Phase = "CANCELLED"
	PhaseNoLink     Phase = "NO_LINK"
	PhaseWaiting    Phase = "WAITING"
	PhaseLive       Phase = "LIVE"
	PhaseEnded      Phase = "ENDED"
)

// Snapshot is the externally visible state. MinutesUntil is only
// meaningful while waiting.
type Snapshot struct {
	Phase        Phase
	MinutesUntil int
}

// Classify maps an appointment onto a phase at one instant.
// Cancellation and a missing media link are terminal and bypass the
// admission window entirely.
func Classify(appt store.Appointment, now time.Time) Snapshot {
	if appt.Status == store.StatusCancelled {
		return Snapshot{Phase: PhaseCancelled}
	}
	if appt.MediaLink == "" {
		return Snapshot{Phase: PhaseNoLink}
	}

	switch d := admission.Evaluate(now, appt.StartTime, appt.EndTime); d.State {
	case admission.TooEarly:
		return Snapshot{Phase: PhaseWaiting, MinutesUntil: d.MinutesUntil}
	case admission.Joinable:
		return Snapshot{Phase: PhaseLive}
	default:
		return Snapshot{Phase: PhaseEnded}
	}
}

// Monitor re-evaluates admission for a single appointment. Cancellation
// and a missing media link are immutable properties of the appointment,
// so they are checked exactly once at Start and never on tick.
//
// The monitor owns its timer: cancelling the context passed to Start
// clears it, so a view torn down mid-wait can never act on a stale
// tick.
type Monitor struct {
	appt     store.Appointment
	interval time.Duration
	now      func() time.Time
	onChange func(Snapshot)

	mu      sync.Mutex
	current Snapshot
}

// NewMonitor builds a monitor for appt. onChange fires on every phase
// or countdown change, including the initial evaluation; it may be nil.
func NewMonitor(appt store.Appointment, onChange func(Snapshot)) *Monitor {
	return &Monitor{
		appt:     appt,
		interval: time.Minute,
		now:      time.Now,
		onChange: onChange,
		current:  Snapshot{Phase: PhaseEvaluating},
	}
}

// Start runs the pre-checks, evaluates once, and unless the phase is
// already terminal begins ticking until ctx is cancelled or the
// session ends. Pre-checks run only here: cancellation and the media
// link are immutable, so ticks re-evaluate the time window alone.
func (m *Monitor) Start(ctx context.Context) {
	snap := Classify(m.appt, m.now())
	m.transition(snap)

	switch snap.Phase {
	case PhaseCancelled, PhaseNoLink, PhaseEnded:
		return
	}

	go m.run(ctx)
}

// Current returns the latest snapshot.
func (m *Monitor) Current() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if terminal := m.evaluate(); terminal {
				return
			}
		}
	}
}

// evaluate maps the admission verdict onto a phase and reports whether
// it is terminal. The LIVE → ENDED transition happens here on a tick
// even mid-conversation: the monitor never tears down an active media
// connection, it only stops presenting the join affordance.
func (m *Monitor) evaluate() (terminal bool) {
	d := admission.Evaluate(m.now(), m.appt.StartTime, m.appt.EndTime)

	switch d.State {
	case admission.TooEarly:
		m.transition(Snapshot{Phase: PhaseWaiting, MinutesUntil: d.MinutesUntil})
		return false
	case admission.Joinable:
		m.transition(Snapshot{Phase: PhaseLive})
		return false
	default:
		m.transition(Snapshot{Phase: PhaseEnded})
		return true
	}
}

func (m *Monitor) transition(next Snapshot) {
	m.mu.Lock()
	changed := next != m.current
	if changed {
		m.current = next
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	log.Debug().
		Str("appointment_id", m.appt.ID).
		Str("phase", string(next.Phase)).
		Int("minutes_until", next.MinutesUntil).
		Msg("session phase changed")
	if m.onChange != nil {
		m.onChange(next)
	}
}
