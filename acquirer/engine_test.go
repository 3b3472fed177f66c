package acquirer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var phxLocations = []string{"Uocm:PHX-AD-1", "Uocm:PHX-AD-2", "Uocm:PHX-AD-3"}

func TestEngine_AlreadySatisfiedSkipsCreation(t *testing.T) {
	clock := newFakeClock()
	provider := newFakeProvider(phxLocations...)
	provider.listFunc = func(int) ([]Record, error) {
		return []Record{armInstance("existing", "Uocm:PHX-AD-2", StateRunning)}, nil
	}
	notifier := &recordingNotifier{}

	outcome := newTestEngine(provider, clock, notifier).Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeAlreadySatisfied, outcome.Kind)
	require.NotNil(t, outcome.Record)
	assert.Equal(t, "existing", outcome.Record.ID)
	assert.Empty(t, provider.creates)
	assert.Equal(t, []NotificationKind{NotificationStarted, NotificationCreated}, notifier.kinds())
	assert.True(t, outcome.Success())
	assert.True(t, outcome.Acquired())
}

func TestEngine_Idempotent(t *testing.T) {
	clock := newFakeClock()
	provider := newFakeProvider(phxLocations...)

	var instances []Record
	provider.listFunc = func(int) ([]Record, error) { return instances, nil }
	provider.createFunc = func(_ int, details LaunchDetails) (Record, error) {
		record := armInstance("created", details.Location, StateProvisioning)
		instances = append(instances, record)
		return record, nil
	}
	engine := newTestEngine(provider, clock, nil)

	first := engine.Run(context.Background(), newTestRequest(), newTestPolicy())
	second := engine.Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeCreated, first.Kind)
	assert.Equal(t, OutcomeAlreadySatisfied, second.Kind)
	assert.Len(t, provider.creates, 1)
	assert.Equal(t, first.Record.ID, second.Record.ID)
}

func TestEngine_CapacityRotatesThroughLocations(t *testing.T) {
	clock := newFakeClock()
	provider := newFakeProvider(phxLocations...)
	provider.createFunc = func(call int, details LaunchDetails) (Record, error) {
		if call < 4 {
			return Record{}, capacityError()
		}
		return armInstance("new", details.Location, StateProvisioning), nil
	}
	provider.listFunc = func(call int) ([]Record, error) {
		if call == 0 {
			return nil, nil
		}
		return []Record{armInstance("new", "Uocm:PHX-AD-2", StateProvisioning)}, nil
	}

	engine := newTestEngine(provider, clock, nil)
	events := collectEvents(engine)
	outcome := engine.Run(context.Background(), newTestRequest(), newTestPolicy())

	require.Equal(t, OutcomeCreated, outcome.Kind, outcome.String())
	assert.Equal(t, []string{
		"Uocm:PHX-AD-1", "Uocm:PHX-AD-2", "Uocm:PHX-AD-3",
		"Uocm:PHX-AD-1", "Uocm:PHX-AD-2",
	}, provider.createdIn())

	cycles := eventsOfType[EventCycleCompleted](*events)
	require.Len(t, cycles, 1)
	assert.Equal(t, EventCycleCompleted{Cycle: 1, Locations: 3}, cycles[0])

	switches := eventsOfType[EventLocationSwitched](*events)
	require.Len(t, switches, 4)
	assert.Equal(t, EventLocationSwitched{From: "Uocm:PHX-AD-3", To: "Uocm:PHX-AD-1"}, switches[2])

	attempts := eventsOfType[EventAttempt](*events)
	require.Len(t, attempts, 5)
	assert.Equal(t, EventAttempt{Location: "Uocm:PHX-AD-2", Attempt: 2, Total: 5}, attempts[4])

	failures := eventsOfType[EventAttemptFailed](*events)
	require.Len(t, failures, 4)
	for _, failure := range failures {
		assert.Equal(t, Capacity, failure.Classification)
		assert.Equal(t, "capacity-message", failure.Rule)
	}
}

func TestEngine_FilteredLocations(t *testing.T) {
	clock := newFakeClock()
	provider := newFakeProvider(phxLocations...)
	provider.createFunc = func(call int, details LaunchDetails) (Record, error) {
		if call < 2 {
			return Record{}, capacityError()
		}
		return armInstance("new", details.Location, StateProvisioning), nil
	}
	provider.listFunc = func(call int) ([]Record, error) {
		if call == 0 {
			return nil, nil
		}
		return []Record{armInstance("new", "Uocm:PHX-AD-3", StateRunning)}, nil
	}

	request := newTestRequest()
	request.Locations = []string{"AD-1", "AD-3"}
	outcome := newTestEngine(provider, clock, nil).Run(context.Background(), request, newTestPolicy())

	assert.Equal(t, OutcomeCreated, outcome.Kind)
	assert.Equal(t, []string{"Uocm:PHX-AD-1", "Uocm:PHX-AD-3", "Uocm:PHX-AD-1"}, provider.createdIn())
}

func TestEngine_TransientRetriesSameLocation(t *testing.T) {
	clock := newFakeClock()
	provider := newFakeProvider(phxLocations...)
	provider.createFunc = func(call int, details LaunchDetails) (Record, error) {
		switch call {
		case 0:
			return Record{}, &ProviderError{Status: 429, Code: "TooManyRequests", Message: "Too many requests for the user"}
		case 1:
			return Record{}, &ProviderError{Status: 502, Message: "Bad Gateway"}
		default:
			return armInstance("new", details.Location, StateProvisioning), nil
		}
	}
	provider.listFunc = func(call int) ([]Record, error) {
		if call == 0 {
			return nil, nil
		}
		return []Record{armInstance("new", "Uocm:PHX-AD-1", StateProvisioning)}, nil
	}

	engine := newTestEngine(provider, clock, nil)
	events := collectEvents(engine)
	outcome := engine.Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeCreated, outcome.Kind)
	assert.Equal(t, []string{"Uocm:PHX-AD-1", "Uocm:PHX-AD-1", "Uocm:PHX-AD-1"}, provider.createdIn())
	assert.Empty(t, eventsOfType[EventLocationSwitched](*events))
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second}, clock.slept)
}

func TestEngine_RespectsBudget(t *testing.T) {
	clock := newFakeClock()
	provider := newFakeProvider(phxLocations...)
	provider.createFunc = func(int, LaunchDetails) (Record, error) {
		return Record{}, capacityError()
	}
	notifier := &recordingNotifier{}

	policy := newTestPolicy()
	policy.MaxRuntime = 100 * time.Second

	engine := newTestEngine(provider, clock, notifier)
	events := collectEvents(engine)
	outcome := engine.Run(context.Background(), newTestRequest(), policy)

	assert.Equal(t, OutcomeTimedOut, outcome.Kind)
	assert.True(t, outcome.Success())
	assert.False(t, outcome.Acquired())
	assert.Len(t, provider.creates, 4)
	assert.Equal(t, []time.Duration{30 * time.Second, 30 * time.Second, 30 * time.Second, 10 * time.Second}, clock.slept)

	results := eventsOfType[EventOutcome](*events)
	require.Len(t, results, 1)
	assert.LessOrEqual(t, results[0].Elapsed, policy.MaxRuntime)

	assert.Equal(t, []NotificationKind{NotificationStarted, NotificationNoCapacityTimeout}, notifier.kinds())
}

func TestEngine_ExpiredBudgetNeverAttempts(t *testing.T) {
	clock := newFakeClock()
	provider := newFakeProvider(phxLocations...)
	provider.listFunc = func(int) ([]Record, error) {
		clock.now = clock.now.Add(time.Hour)
		return nil, nil
	}

	policy := newTestPolicy()
	policy.MaxRuntime = time.Minute
	outcome := newTestEngine(provider, clock, nil).Run(context.Background(), newTestRequest(), policy)

	assert.Equal(t, OutcomeTimedOut, outcome.Kind)
	assert.Empty(t, provider.creates)
}

func TestEngine_FatalShortCircuits(t *testing.T) {
	clock := newFakeClock()
	provider := newFakeProvider(phxLocations...)
	cause := &ProviderError{Status: 400, Code: "InvalidParameter", Message: "Invalid shape"}
	provider.createFunc = func(int, LaunchDetails) (Record, error) {
		return Record{}, cause
	}
	notifier := &recordingNotifier{}

	outcome := newTestEngine(provider, clock, notifier).Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.False(t, outcome.Success())
	assert.Len(t, provider.creates, 1)
	assert.Empty(t, clock.slept)
	assert.ErrorIs(t, outcome.Err, ErrUnclassified)
	assert.ErrorIs(t, outcome.Err, cause)
	assert.Equal(t, []NotificationKind{NotificationStarted, NotificationFailed}, notifier.kinds())
}

func TestEngine_NonProviderErrorIsFatal(t *testing.T) {
	provider := newFakeProvider(phxLocations...)
	provider.createFunc = func(int, LaunchDetails) (Record, error) {
		return Record{}, errors.New("tls: handshake failure")
	}

	outcome := newTestEngine(provider, newFakeClock(), nil).Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.Len(t, provider.creates, 1)
}

func TestEngine_LimitExceededResolvedByInventory(t *testing.T) {
	clock := newFakeClock()
	provider := newFakeProvider(phxLocations...)
	provider.createFunc = func(int, LaunchDetails) (Record, error) {
		return Record{}, &ProviderError{Status: 400, Code: "LimitExceeded", Message: "standard-a1-core-count"}
	}
	provider.listFunc = func(call int) ([]Record, error) {
		if call < 2 {
			return nil, nil
		}
		return []Record{armInstance("late", "Uocm:PHX-AD-1", StateProvisioning)}, nil
	}

	outcome := newTestEngine(provider, clock, nil).Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeAlreadySatisfied, outcome.Kind)
	assert.Equal(t, "late", outcome.Record.ID)
	assert.Len(t, provider.creates, 1)
	assert.Equal(t, []time.Duration{time.Minute}, clock.slept)
}

func TestEngine_LimitExceededWithoutInstanceFails(t *testing.T) {
	clock := newFakeClock()
	provider := newFakeProvider(phxLocations...)
	provider.createFunc = func(int, LaunchDetails) (Record, error) {
		return Record{}, &ProviderError{Status: 400, Code: "LimitExceeded", Message: "standard-a1-core-count"}
	}

	outcome := newTestEngine(provider, clock, nil).Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrIdempotentConflict)
	assert.Len(t, provider.creates, 1)
	assert.Equal(t, 4, provider.listCalls)
}

func TestEngine_NoMatchingLocation(t *testing.T) {
	provider := newFakeProvider(phxLocations...)
	notifier := &recordingNotifier{}

	request := newTestRequest()
	request.Locations = []string{"AD-9"}
	outcome := newTestEngine(provider, newFakeClock(), notifier).Run(context.Background(), request, newTestPolicy())

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	var configErr *ConfigurationError
	assert.ErrorAs(t, outcome.Err, &configErr)
	assert.ErrorIs(t, outcome.Err, ErrNoLocations)
	assert.Empty(t, provider.creates)
	assert.Zero(t, provider.listCalls)
	assert.Equal(t, []NotificationKind{NotificationStarted, NotificationFailed}, notifier.kinds())
}

func TestEngine_LocationListingFails(t *testing.T) {
	provider := newFakeProvider()
	provider.locationErr = &ProviderError{Status: 401, Code: "NotAuthenticated"}

	outcome := newTestEngine(provider, newFakeClock(), nil).Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.ErrorContains(t, outcome.Err, "failed to list locations")
	assert.Empty(t, provider.creates)
}

func TestEngine_InvalidPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy RetryPolicy
		err    string
	}{
		{"negative wait interval", RetryPolicy{WaitInterval: -time.Second}, "wait-interval"},
		{"negative max runtime", RetryPolicy{MaxRuntime: -time.Minute}, "max-runtime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newFakeProvider(phxLocations...)
			notifier := &recordingNotifier{}

			outcome := newTestEngine(provider, newFakeClock(), notifier).Run(context.Background(), newTestRequest(), tt.policy)

			assert.Equal(t, OutcomeFailed, outcome.Kind)
			var configErr *ConfigurationError
			assert.ErrorAs(t, outcome.Err, &configErr)
			assert.ErrorContains(t, outcome.Err, tt.err)
			assert.Empty(t, provider.creates)
			assert.Zero(t, provider.listCalls)
			assert.Equal(t, []NotificationKind{NotificationStarted, NotificationFailed}, notifier.kinds())
		})
	}
}

func TestEngine_InvalidConfig(t *testing.T) {
	provider := newFakeProvider(phxLocations...)
	engine := New(provider, Config{
		Logger:         newTestLogger(),
		Clock:          newFakeClock(),
		InventoryDelay: -time.Second,
	})

	outcome := engine.Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	var configErr *ConfigurationError
	assert.ErrorAs(t, outcome.Err, &configErr)
	assert.ErrorContains(t, outcome.Err, "inventory-delay")
	assert.Empty(t, provider.creates)
}

func TestEngine_UnconfirmedCreationRetries(t *testing.T) {
	clock := newFakeClock()
	provider := newFakeProvider(phxLocations...)
	provider.listFunc = func(call int) ([]Record, error) {
		if call < 4 {
			return nil, nil
		}
		return []Record{armInstance("new", "Uocm:PHX-AD-1", StateRunning)}, nil
	}

	outcome := newTestEngine(provider, clock, nil).Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeCreated, outcome.Kind)
	assert.Len(t, provider.creates, 2)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute, 30 * time.Second}, clock.slept)
}

func TestEngine_ConfirmationFatalListingError(t *testing.T) {
	provider := newFakeProvider(phxLocations...)
	provider.listFunc = func(call int) ([]Record, error) {
		if call == 0 {
			return nil, nil
		}
		return nil, &ProviderError{Status: 404, Code: "NotAuthorizedOrNotFound"}
	}

	outcome := newTestEngine(provider, newFakeClock(), nil).Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.ErrorContains(t, outcome.Err, "failed to confirm instance creation")
	assert.Len(t, provider.creates, 1)
}

func TestEngine_NotifierFailureIsSwallowed(t *testing.T) {
	provider := newFakeProvider(phxLocations...)
	provider.listFunc = func(call int) ([]Record, error) {
		if call == 0 {
			return nil, nil
		}
		return []Record{armInstance("new", "Uocm:PHX-AD-1", StateRunning)}, nil
	}
	notifier := &recordingNotifier{err: errors.New("webhook unreachable")}

	outcome := newTestEngine(provider, newFakeClock(), notifier).Run(context.Background(), newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeCreated, outcome.Kind)
	assert.Equal(t, []NotificationKind{NotificationStarted, NotificationCreated}, notifier.kinds())
	require.NotNil(t, notifier.notifications[1].Record)
	assert.Equal(t, "new", notifier.notifications[1].Record.ID)
}

func TestEngine_Interrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := newFakeProvider(phxLocations...)
	notifier := &recordingNotifier{}

	outcome := newTestEngine(provider, newFakeClock(), notifier).Run(ctx, newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Empty(t, provider.creates)
	assert.Equal(t, []NotificationKind{NotificationStarted, NotificationFailed}, notifier.kinds())
}

func TestEngine_InterruptedDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider(phxLocations...)
	provider.createFunc = func(int, LaunchDetails) (Record, error) {
		cancel()
		return Record{}, capacityError()
	}

	outcome := newTestEngine(provider, newFakeClock(), nil).Run(ctx, newTestRequest(), newTestPolicy())

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
	assert.Len(t, provider.creates, 1)
}

func TestEngine_PhaseTransitions(t *testing.T) {
	provider := newFakeProvider("Uocm:PHX-AD-1")
	provider.createFunc = func(call int, details LaunchDetails) (Record, error) {
		if call == 0 {
			return Record{}, capacityError()
		}
		return armInstance("new", details.Location, StateProvisioning), nil
	}
	provider.listFunc = func(call int) ([]Record, error) {
		if call == 0 {
			return nil, nil
		}
		return []Record{armInstance("new", "Uocm:PHX-AD-1", StateProvisioning)}, nil
	}

	engine := newTestEngine(provider, newFakeClock(), nil)
	events := collectEvents(engine)
	outcome := engine.Run(context.Background(), newTestRequest(), newTestPolicy())
	require.Equal(t, OutcomeCreated, outcome.Kind)

	var phases []Phase
	for _, change := range eventsOfType[EventPhaseChanged](*events) {
		phases = append(phases, change.To)
	}
	assert.Equal(t, []Phase{
		PhaseCheckingInventory,
		PhaseAttempting,
		PhaseRotating,
		PhaseBackingOff,
		PhaseAttempting,
		PhaseConfirming,
		PhaseCreated,
	}, phases)

	assert.Empty(t, eventsOfType[EventLocationSwitched](*events))
	assert.Len(t, eventsOfType[EventCycleCompleted](*events), 1)

	results := eventsOfType[EventOutcome](*events)
	require.Len(t, results, 1)
	_, last := (*events)[len(*events)-1].(EventOutcome)
	assert.True(t, last)
}

func TestEngine_DualSecondInstance(t *testing.T) {
	provider := newFakeProvider(phxLocations...)
	first := Record{ID: "m1", Location: "Uocm:PHX-AD-1", Shape: microShape, State: StateRunning}
	instances := []Record{first}
	provider.listFunc = func(int) ([]Record, error) { return instances, nil }
	provider.createFunc = func(_ int, details LaunchDetails) (Record, error) {
		record := Record{ID: "m2", Location: details.Location, Shape: microShape, State: StateProvisioning}
		instances = append(instances, record)
		return record, nil
	}

	request := newTestRequest()
	request.Shape = microShape
	request.Cardinality = Dual
	request.SecondInstance = true

	outcome := newTestEngine(provider, newFakeClock(), nil).Run(context.Background(), request, newTestPolicy())

	assert.Equal(t, OutcomeCreated, outcome.Kind)
	assert.Equal(t, "m2", outcome.Record.ID)
	assert.Len(t, provider.creates, 1)
}
