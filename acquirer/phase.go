package acquirer

// Phase is a state of the acquisition state machine.
type Phase string

const (
	PhaseDiscovering       Phase = "discovering"
	PhaseCheckingInventory Phase = "checking-inventory"
	PhaseAttempting        Phase = "attempting"
	PhaseConfirming        Phase = "confirming"
	PhaseResolvingConflict Phase = "resolving-conflict"
	PhaseRotating          Phase = "rotating"
	PhaseBackingOff        Phase = "backing-off"

	// Terminal phases
	PhaseCreated          Phase = "created"
	PhaseAlreadySatisfied Phase = "already-satisfied"
	PhaseTimedOut         Phase = "timed-out"
	PhaseFailed           Phase = "failed"
)

func (p Phase) Terminal() bool {
	switch p {
	case PhaseCreated, PhaseAlreadySatisfied, PhaseTimedOut, PhaseFailed:
		return true
	default:
		return false
	}
}
