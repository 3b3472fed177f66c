package acquirer

import "time"

type Event interface{}

// Listener receives events synchronously on the engine goroutine. It must
// not block.
type Listener func(Event)

type EventPhaseChanged struct {
	From Phase
	To   Phase
}

// Locations

type EventLocationsDiscovered struct {
	Available  []string
	Candidates []string
}

type EventLocationSwitched struct {
	From string
	To   string
}

type EventCycleCompleted struct {
	Cycle     int
	Locations int
}

// Attempts

type EventAttempt struct {
	Location string
	Attempt  int
	Total    int
}

type EventAttemptFailed struct {
	Location       string
	Classification Classification
	Rule           string
	Err            error
}

type EventCreateAccepted struct {
	Location string
	Record   Record
}

type EventBackoff struct {
	Wait time.Duration
}

// Inventory

type EventInventoryChecked struct {
	Reason string
	Record *Record
}

// Outcome

type EventOutcome struct {
	Outcome Outcome
	Elapsed time.Duration
}
