package namegen

import (
	"fmt"

	vendor "github.com/anandvarma/namegen"
)

var gen = vendor.New()

type ID string

func Get() ID {
	return ID(gen.Get())
}

// Prefixed returns a fresh name under the given prefix, e.g. "freetier-brave-otter".
func Prefixed(prefix string) ID {
	return ID(fmt.Sprintf("%s-%s", prefix, Get()))
}

func (id ID) String() string {
	return string(id)
}
