package acquirer

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// --- Fake clock ---

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.slept = append(c.slept, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

// --- Scripted provider ---

type fakeProvider struct {
	locations   []string
	locationErr error
	// listFunc returns the instances for the n-th listing (0-based)
	listFunc func(call int) ([]Record, error)
	// createFunc returns the result of the n-th create call (0-based)
	createFunc func(call int, details LaunchDetails) (Record, error)

	listCalls int
	creates   []LaunchDetails
}

var _ Provider = (*fakeProvider)(nil)

func newFakeProvider(locations ...string) *fakeProvider {
	return &fakeProvider{locations: locations}
}

func (p *fakeProvider) ListLocations(context.Context, string) ([]string, error) {
	return p.locations, p.locationErr
}

func (p *fakeProvider) ListInstances(context.Context, string) ([]Record, error) {
	call := p.listCalls
	p.listCalls += 1
	if p.listFunc == nil {
		return nil, nil
	}
	return p.listFunc(call)
}

func (p *fakeProvider) CreateInstance(_ context.Context, details LaunchDetails) (Record, error) {
	call := len(p.creates)
	p.creates = append(p.creates, details)
	if p.createFunc == nil {
		return Record{ID: "ocid1.instance.test", Location: details.Location, Shape: details.Shape, State: StateProvisioning}, nil
	}
	return p.createFunc(call, details)
}

func (p *fakeProvider) createdIn() []string {
	locations := make([]string, 0, len(p.creates))
	for _, details := range p.creates {
		locations = append(locations, details.Location)
	}
	return locations
}

// --- Recording notifier ---

type recordingNotifier struct {
	notifications []Notification
	err           error
}

func (n *recordingNotifier) Notify(_ context.Context, notification Notification) error {
	n.notifications = append(n.notifications, notification)
	return n.err
}

func (n *recordingNotifier) kinds() []NotificationKind {
	kinds := make([]NotificationKind, 0, len(n.notifications))
	for _, notification := range n.notifications {
		kinds = append(kinds, notification.Kind)
	}
	return kinds
}

// --- Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestEngine(provider Provider, clock *fakeClock, notifier Notifier) *Engine {
	return New(provider, Config{
		Logger:         newTestLogger(),
		Notifier:       notifier,
		Clock:          clock,
		InventoryDelay: time.Minute,
	})
}

func newTestRequest() Request {
	return Request{
		Shape:       "VM.Standard.A1.Flex",
		DisplayName: "free-arm",
		Scope:       "ocid1.tenancy.test",
		Cardinality: Singleton,
	}
}

func newTestPolicy() RetryPolicy {
	return RetryPolicy{
		WaitInterval: 30 * time.Second,
		ConfirmTries: 3,
	}
}

func armInstance(id, location string, state State) Record {
	return Record{ID: id, DisplayName: "free-arm", Location: location, Shape: "VM.Standard.A1.Flex", State: state}
}

func capacityError() error {
	return &ProviderError{Status: 500, Code: "InternalError", Message: "Out of host capacity."}
}

func collectEvents(engine *Engine) *[]Event {
	events := &[]Event{}
	engine.Subscribe(func(event Event) {
		*events = append(*events, event)
	})
	return events
}

func eventsOfType[T Event](events []Event) []T {
	var typed []T
	for _, event := range events {
		if e, ok := event.(T); ok {
			typed = append(typed, e)
		}
	}
	return typed
}
