package acquirer

import "context"

type NotificationKind string

const (
	NotificationStarted           NotificationKind = "started"
	NotificationCreated           NotificationKind = "created"
	NotificationNoCapacityTimeout NotificationKind = "no-capacity-timeout"
	NotificationFailed            NotificationKind = "failed"
)

type Notification struct {
	Kind NotificationKind
	Text string
	// Set for created notifications
	Record *Record
}

// Notifier delivers notifications. Delivery failures never affect a run.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, notification Notification) error

func (f NotifierFunc) Notify(ctx context.Context, notification Notification) error {
	return f(ctx, notification)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) error {
	return nil
}
