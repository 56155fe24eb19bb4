// Package admission decides whether a scheduled session may be entered
// at a given moment. It is a pure function of the clock and the
// appointment's start/end timestamps, so callers may re-evaluate on
// every tick without side effects.
package admission

import "time"

// EarlyEntryWindow is how long before the scheduled start a
// participant may enter the waiting room.
const EarlyEntryWindow = 30 * time.Minute

type State string

const (
	// TooEarly: the admission window has not opened yet.
	TooEarly State = "TOO_EARLY"
	// Joinable: now is within [start−EarlyEntryWindow, end], both
	// bounds inclusive.
	Joinable State = "JOINABLE"
	// Ended: the scheduled end has passed.
	Ended State = "ENDED"
)

// Decision is the evaluator's verdict. MinutesUntil is set only for
// TooEarly and is always at least 1: the remainder is rounded up to
// the next whole minute so a countdown never shows zero while entry
// is still disallowed.
type Decision struct {
	State        State
	MinutesUntil int
}

// Evaluate classifies now against the appointment's admission window.
// The three states partition the timeline with no gap or overlap.
func Evaluate(now, start, end time.Time) Decision {
	opens := start.Add(-EarlyEntryWindow)

	switch {
	case now.Before(opens):
		remaining := opens.Sub(now)
		minutes := int((remaining + time.Minute - 1) / time.Minute)
		return Decision{State: TooEarly, MinutesUntil: minutes}
	case now.After(end):
		return Decision{State: Ended}
	default:
		return Decision{State: Joinable}
	}
}
