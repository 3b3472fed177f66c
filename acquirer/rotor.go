package acquirer

import (
	"strings"

	"github.com/samber/lo"
)

// Rotor cycles over candidate locations and counts attempts per location.
// It is owned by a single engine run and is not safe for concurrent use.
type Rotor struct {
	locations []string
	index     int
	attempts  map[string]int
	cycles    int
}

func NewRotor(locations []string) (*Rotor, error) {
	locations = lo.Uniq(lo.Compact(locations))
	if len(locations) == 0 {
		return nil, &ConfigurationError{Err: ErrNoLocations}
	}

	return &Rotor{
		locations: locations,
		attempts:  make(map[string]int, len(locations)),
	}, nil
}

func (r *Rotor) Current() string {
	return r.locations[r.index]
}

// Attempt records an attempt in the current location and returns it along
// with its attempt count.
func (r *Rotor) Attempt() (string, int) {
	location := r.Current()
	r.attempts[location] += 1
	return location, r.attempts[location]
}

// Advance moves to the next location. It returns true when it wrapped back
// to the first location, completing a full cycle.
func (r *Rotor) Advance() bool {
	r.index += 1
	if r.index >= len(r.locations) {
		r.index = 0
		r.cycles += 1
		return true
	}
	return false
}

func (r *Rotor) Attempts(location string) int {
	return r.attempts[location]
}

// Cycles returns how many times the rotor wrapped.
func (r *Rotor) Cycles() int {
	return r.cycles
}

func (r *Rotor) Locations() []string {
	return append([]string(nil), r.locations...)
}

func (r *Rotor) Len() int {
	return len(r.locations)
}

// FilterLocations keeps the available locations ending with one of the
// requested suffixes, in provider order. No suffix means every location.
func FilterLocations(available, suffixes []string) []string {
	suffixes = lo.Compact(lo.Map(suffixes, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
	if len(suffixes) == 0 {
		return lo.Uniq(lo.Compact(available))
	}

	return lo.Uniq(lo.Filter(available, func(location string, _ int) bool {
		return location != "" && lo.SomeBy(suffixes, func(suffix string) bool {
			return strings.HasSuffix(location, suffix)
		})
	}))
}
