package acquirer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

// Query describes which existing instance satisfies a request.
type Query struct {
	Scope          string
	Shape          string
	States         []State
	Cardinality    Cardinality
	SecondInstance bool
	// Number of listings before reporting "not found"
	Tries int
}

func (r Request) Query(tries int) Query {
	return Query{
		Scope:          r.Scope,
		Shape:          r.Shape,
		States:         DefaultStates,
		Cardinality:    r.Cardinality,
		SecondInstance: r.SecondInstance,
		Tries:          tries,
	}
}

// Inventory looks for an existing instance satisfying a Query, tolerating
// the provider's eventually consistent listings by polling.
type Inventory struct {
	provider Provider
	clock    Clock
	delay    time.Duration
	log      *slog.Logger
}

func NewInventory(provider Provider, clock Clock, delay time.Duration, logger *slog.Logger) *Inventory {
	return &Inventory{
		provider: provider,
		clock:    clock,
		delay:    delay,
		log:      logger,
	}
}

// Check returns the satisfying instance, or nil when none was found after
// all tries.
func (i *Inventory) Check(ctx context.Context, query Query) (*Record, error) {
	tries := max(query.Tries, 1)

	for try := 1; try <= tries; try++ {
		records, err := i.provider.ListInstances(ctx, query.Scope)
		if err != nil {
			return nil, fmt.Errorf("failed to list instances: %w", err)
		}

		if record, ok := Satisfying(records, query); ok {
			i.log.Debug("Found satisfying instance", "instance", record.ID, "state", record.State, "try", try)
			return &record, nil
		}

		if try < tries {
			i.log.Debug("No satisfying instance yet", "try", try, "tries", tries, "wait", i.delay)
			if err := i.clock.Sleep(ctx, i.delay); err != nil {
				return nil, err
			}
		}
	}

	return nil, nil
}

// Satisfying applies the selection policy of a Query to a listing.
//
// A singleton shape is satisfied by the first match. A dual shape asking for
// its second instance needs at least two matches and reports the last one;
// otherwise it needs exactly one match.
func Satisfying(records []Record, query Query) (Record, bool) {
	states := lo.Ternary(len(query.States) > 0, query.States, DefaultStates)
	matches := lo.Filter(records, func(record Record, _ int) bool {
		return record.Shape == query.Shape && record.In(states)
	})

	switch query.Cardinality {
	case Dual:
		if query.SecondInstance && len(matches) > 1 {
			return matches[len(matches)-1], true
		}
		if !query.SecondInstance && len(matches) == 1 {
			return matches[0], true
		}
		return Record{}, false

	default:
		return lo.First(matches)
	}
}
