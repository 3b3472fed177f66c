package acquirer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
)

// Engine drives the acquisition of a single instance. Runs are sequential:
// the engine never issues two provider calls at the same time.
type Engine struct {
	provider  Provider
	config    Config
	inventory *Inventory
	notifier  Notifier
	clock     Clock
	log       *slog.Logger
	listeners []Listener
}

func New(provider Provider, config Config) *Engine {
	logger := lo.Ternary(config.Logger != nil, config.Logger, slog.Default())
	clock := lo.Ternary(config.Clock != nil, config.Clock, SystemClock)
	if config.NotifyTimeout == 0 {
		config.NotifyTimeout = DefaultNotifyTimeout
	}

	var notifier Notifier = nopNotifier{}
	if config.Notifier != nil {
		notifier = config.Notifier
	}

	return &Engine{
		provider:  provider,
		config:    config,
		inventory: NewInventory(provider, clock, config.InventoryDelay, logger.With("component", "inventory")),
		notifier:  notifier,
		clock:     clock,
		log:       logger,
	}
}

// Subscribe registers a listener for every event of subsequent runs.
func (e *Engine) Subscribe(listener Listener) {
	e.listeners = append(e.listeners, listener)
}

type run struct {
	request Request
	policy  RetryPolicy
	budget  *Budget
	rotor   *Rotor
	log     *slog.Logger

	attempts int
	location string
	conflict error
	outcome  Outcome
}

// Run acquires the requested instance. It returns exactly one Outcome and
// emits exactly one outcome notification.
func (e *Engine) Run(ctx context.Context, request Request, policy RetryPolicy) Outcome {
	r := &run{
		request: request,
		policy:  policy.withDefaults(),
		budget:  NewBudget(e.clock, policy.MaxRuntime),
		log:     e.log.With("shape", request.Shape, "display-name", request.DisplayName),
	}

	r.log.Info("Starting instance acquisition",
		"locations", request.Locations,
		"wait-interval", r.policy.WaitInterval,
		"max-runtime", r.policy.MaxRuntime,
		"cardinality", request.Cardinality,
		"second-instance", request.SecondInstance,
	)
	e.notify(ctx, Notification{
		Kind: NotificationStarted,
		Text: fmt.Sprintf("Starting acquisition of a '%s' instance named '%s'", request.Shape, request.DisplayName),
	})

	phase := PhaseDiscovering
	for !phase.Terminal() {
		next := e.step(ctx, r, phase)
		if next != phase {
			r.log.Debug("Phase changed", "from", phase, "to", next)
			e.publish(EventPhaseChanged{From: phase, To: next})
		}
		phase = next
	}

	e.finish(ctx, r)
	return r.outcome
}

func (e *Engine) step(ctx context.Context, r *run, phase Phase) Phase {
	switch phase {
	case PhaseDiscovering:
		return e.discover(ctx, r)
	case PhaseCheckingInventory:
		return e.checkInventory(ctx, r)
	case PhaseAttempting:
		return e.attempt(ctx, r)
	case PhaseConfirming:
		return e.confirm(ctx, r)
	case PhaseResolvingConflict:
		return e.resolveConflict(ctx, r)
	case PhaseRotating:
		return e.rotate(r)
	case PhaseBackingOff:
		return e.backOff(ctx, r)
	default:
		return r.fail(fmt.Errorf("no transition out of phase '%s'", phase))
	}
}

func (e *Engine) discover(ctx context.Context, r *run) Phase {
	if err := Validate(e.config); err != nil {
		return r.fail(&ConfigurationError{Err: err})
	}
	if err := ValidatePolicy(r.policy); err != nil {
		return r.fail(&ConfigurationError{Err: err})
	}

	available, err := e.provider.ListLocations(ctx, r.request.Scope)
	if err != nil {
		return r.fail(fmt.Errorf("failed to list locations: %w", err))
	}

	candidates := FilterLocations(available, r.request.Locations)
	e.publish(EventLocationsDiscovered{Available: available, Candidates: candidates})
	if len(candidates) == 0 {
		return r.fail(&ConfigurationError{Err: fmt.Errorf(
			"%w: requested [%s], available [%s]",
			ErrNoLocations, strings.Join(r.request.Locations, ", "), strings.Join(available, ", "),
		)})
	}

	if r.rotor, err = NewRotor(candidates); err != nil {
		return r.fail(err)
	}

	r.log.Info("Discovered candidate locations", "available", available, "candidates", r.rotor.Locations())
	return PhaseCheckingInventory
}

func (e *Engine) checkInventory(ctx context.Context, r *run) Phase {
	record, err := e.inventory.Check(ctx, r.request.Query(1))
	if err != nil {
		return r.fail(fmt.Errorf("failed to check existing instances: %w", err))
	}

	e.publish(EventInventoryChecked{Reason: "initial", Record: record})
	if record != nil {
		r.log.Info("Matching instance already exists, nothing to create", "instance", record.ID, "state", record.State)
		return r.succeed(OutcomeAlreadySatisfied, record)
	}

	return PhaseAttempting
}

func (e *Engine) attempt(ctx context.Context, r *run) Phase {
	if r.budget.Expired() {
		return r.timeOut()
	}
	if err := ctx.Err(); err != nil {
		return r.fail(fmt.Errorf("interrupted: %w", err))
	}

	location, attempt := r.rotor.Attempt()
	r.attempts += 1
	r.location = location

	r.log.Info("Attempting instance creation", "location", location, "attempt", attempt, "total", r.attempts)
	e.publish(EventAttempt{Location: location, Attempt: attempt, Total: r.attempts})

	record, err := e.provider.CreateInstance(ctx, r.request.In(location))
	if err == nil {
		r.log.Info("Instance creation accepted, confirming", "location", location, "instance", record.ID)
		e.publish(EventCreateAccepted{Location: location, Record: record})
		return PhaseConfirming
	}

	classification, rule := Explain(err)
	e.publish(EventAttemptFailed{Location: location, Classification: classification, Rule: rule, Err: err})

	switch classification {
	case Transient:
		r.log.Info("Transient error, retrying in the same location", "location", location, "rule", rule, "error", err)
		return PhaseBackingOff

	case Capacity:
		r.log.Warn("Out of capacity, trying next location", "location", location, "rule", rule, "error", err)
		return PhaseRotating

	case IdempotentConflict:
		r.log.Info("Resource limit reached, checking whether the instance already exists", "location", location, "error", err)
		r.conflict = &ClassifiedError{Classification: classification, Location: location, Err: err}
		return PhaseResolvingConflict

	default:
		r.log.Error("Unrecoverable error, giving up", "location", location, "rule", rule, "error", err)
		return r.fail(&ClassifiedError{Classification: Fatal, Location: location, Err: err})
	}
}

// confirm waits for an accepted creation to show up in the inventory.
func (e *Engine) confirm(ctx context.Context, r *run) Phase {
	location := r.location
	record, err := e.inventory.Check(ctx, r.request.Query(r.policy.ConfirmTries))
	if err != nil {
		if Classify(err) == Fatal {
			return r.fail(fmt.Errorf("failed to confirm instance creation: %w", err))
		}
		r.log.Warn("Failed to confirm instance creation, retrying", "location", location, "error", err)
		return PhaseBackingOff
	}

	e.publish(EventInventoryChecked{Reason: "confirmation", Record: record})
	if record == nil {
		r.log.Warn("Accepted instance never showed up, retrying", "location", location, "tries", r.policy.ConfirmTries)
		return PhaseBackingOff
	}

	r.log.Info("Instance successfully created", "location", location, "instance", record.ID, "state", record.State)
	return r.succeed(OutcomeCreated, record)
}

// resolveConflict turns a resource limit error into success when the
// limit is reached by the very instance we want.
func (e *Engine) resolveConflict(ctx context.Context, r *run) Phase {
	conflict := r.conflict
	record, err := e.inventory.Check(ctx, r.request.Query(r.policy.ConfirmTries))
	if err != nil {
		return r.fail(fmt.Errorf("failed to check existing instances after '%s': %w", conflict, err))
	}

	e.publish(EventInventoryChecked{Reason: "conflict", Record: record})
	if record == nil {
		r.log.Error("Resource limit reached but no matching instance exists", "error", conflict)
		return r.fail(conflict)
	}

	r.log.Info("Resource limit reached by an existing matching instance", "instance", record.ID, "state", record.State)
	return r.succeed(OutcomeAlreadySatisfied, record)
}

func (e *Engine) rotate(r *run) Phase {
	from := r.rotor.Current()
	wrapped := r.rotor.Advance()
	to := r.rotor.Current()

	if from != to {
		r.log.Info("Switching location", "from", from, "to", to)
		e.publish(EventLocationSwitched{From: from, To: to})
	}
	if wrapped {
		r.log.Info("All locations tried, starting a new cycle", "cycle", r.rotor.Cycles(), "locations", r.rotor.Len())
		e.publish(EventCycleCompleted{Cycle: r.rotor.Cycles(), Locations: r.rotor.Len()})
	}

	return PhaseBackingOff
}

func (e *Engine) backOff(ctx context.Context, r *run) Phase {
	wait := r.policy.WaitInterval
	if remaining := r.budget.Remaining(); remaining >= 0 && remaining < wait {
		wait = remaining
	}

	e.publish(EventBackoff{Wait: wait})
	if err := e.clock.Sleep(ctx, wait); err != nil {
		return r.fail(fmt.Errorf("interrupted: %w", err))
	}

	return PhaseAttempting
}

func (e *Engine) finish(ctx context.Context, r *run) {
	outcome := r.outcome
	elapsed := r.budget.Elapsed()
	e.publish(EventOutcome{Outcome: outcome, Elapsed: elapsed})

	var notification Notification
	switch outcome.Kind {
	case OutcomeCreated:
		r.log.Info("Instance acquired", "instance", outcome.Record.ID, "location", outcome.Record.Location, "attempts", r.attempts, "elapsed", elapsed)
		notification = Notification{
			Kind:   NotificationCreated,
			Text:   fmt.Sprintf("Instance '%s' created in '%s' after %d attempts", outcome.Record.DisplayName, outcome.Record.Location, r.attempts),
			Record: outcome.Record,
		}

	case OutcomeAlreadySatisfied:
		r.log.Info("Instance already present", "instance", outcome.Record.ID, "location", outcome.Record.Location, "elapsed", elapsed)
		notification = Notification{
			Kind:   NotificationCreated,
			Text:   fmt.Sprintf("Instance '%s' already exists in '%s' (%s)", outcome.Record.DisplayName, outcome.Record.Location, outcome.Record.State),
			Record: outcome.Record,
		}

	case OutcomeTimedOut:
		r.log.Info("Max runtime reached without capacity, exiting so the scheduler can try again later", "max-runtime", r.budget.Max(), "attempts", r.attempts)
		notification = Notification{
			Kind: NotificationNoCapacityTimeout,
			Text: fmt.Sprintf("No capacity yet: max runtime (%s) reached after %d attempts, will try again later", r.budget.Max(), r.attempts),
		}

	default:
		r.log.Error("Instance acquisition failed", "error", outcome.Err, "attempts", r.attempts, "elapsed", elapsed)
		notification = Notification{
			Kind: NotificationFailed,
			Text: fmt.Sprintf("Instance acquisition failed: %s", outcome.Err),
		}
	}

	e.notify(ctx, notification)
}

// notify delivers a notification, logging and swallowing any failure.
func (e *Engine) notify(ctx context.Context, notification Notification) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.NotifyTimeout)
	defer cancel()

	if err := e.notifier.Notify(ctx, notification); err != nil {
		e.log.Warn("Failed to deliver notification", "kind", notification.Kind, "error", err)
	}
}

func (e *Engine) publish(event Event) {
	for _, listener := range e.listeners {
		listener(event)
	}
}

func (r *run) succeed(kind OutcomeKind, record *Record) Phase {
	r.outcome = Outcome{Kind: kind, Record: record}
	return lo.Ternary(kind == OutcomeCreated, PhaseCreated, PhaseAlreadySatisfied)
}

func (r *run) timeOut() Phase {
	r.outcome = Outcome{Kind: OutcomeTimedOut}
	return PhaseTimedOut
}

func (r *run) fail(err error) Phase {
	r.outcome = Outcome{Kind: OutcomeFailed, Err: err}
	return PhaseFailed
}
