package notifier

import (
	"context"

	"github.com/gammadia/freetier/acquirer"
	"go.uber.org/multierr"
)

// Multi delivers every notification to all its notifiers, even when some of
// them fail.
type Multi []acquirer.Notifier

var _ acquirer.Notifier = Multi(nil)

func (m Multi) Notify(ctx context.Context, notification acquirer.Notification) error {
	var errs error
	for _, notifier := range m {
		errs = multierr.Append(errs, notifier.Notify(ctx, notification))
	}
	return errs
}
