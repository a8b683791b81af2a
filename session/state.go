package session

import "time"

type State int

const (
	Idle State = iota
	Recording
	Processing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Outcome is how a session ended. It is set on the transition that returns
// the controller to Idle.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeTooShort  Outcome = "too_short"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Transition is delivered to observers for every state change, in order.
type Transition struct {
	SessionID string
	From      State
	To        State
	Reason    error   // set on failed and cancelled sessions
	Outcome   Outcome // set when To is Idle
	Audio     time.Duration
	Text      string // inserted text, on OutcomeInserted
	Started   time.Time
	At        time.Time
}

// Status is a snapshot of the controller.
type Status struct {
	State     State
	SessionID string
	LastError error
}
