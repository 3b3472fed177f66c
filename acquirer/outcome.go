package acquirer

import "fmt"

type OutcomeKind int

const (
	outcomeUnknown OutcomeKind = iota
	OutcomeCreated
	OutcomeAlreadySatisfied
	OutcomeTimedOut
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadySatisfied:
		return "already-satisfied"
	case OutcomeTimedOut:
		return "timed-out"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a run.
type Outcome struct {
	Kind OutcomeKind
	// Set for created and already satisfied outcomes
	Record *Record
	// Set for failed outcomes
	Err error
}

// Success reports whether the process should exit successfully. A timed out
// run is a success: the caller is expected to try again later.
func (o Outcome) Success() bool {
	return o.Kind == OutcomeCreated || o.Kind == OutcomeAlreadySatisfied || o.Kind == OutcomeTimedOut
}

// Acquired reports whether the target instance exists.
func (o Outcome) Acquired() bool {
	return o.Kind == OutcomeCreated || o.Kind == OutcomeAlreadySatisfied
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeCreated, OutcomeAlreadySatisfied:
		if o.Record != nil {
			return fmt.Sprintf("%s: instance '%s' (%s) in '%s'", o.Kind, o.Record.DisplayName, o.Record.ID, o.Record.Location)
		}
	case OutcomeFailed:
		if o.Err != nil {
			return fmt.Sprintf("%s: %s", o.Kind, o.Err)
		}
	}
	return o.Kind.String()
}
