package acquirer

import (
	"errors"
	"net/http"
	"strings"
)

// Classification is the engine's decision about a failed provider call.
type Classification int

const (
	classificationUnknown Classification = iota
	// Transient failures are retried in the same location.
	Transient
	// Capacity failures are retried in the next location.
	Capacity
	// IdempotentConflict means the resource limit is already met.
	IdempotentConflict
	// Fatal failures stop the engine.
	Fatal
)

func (c Classification) String() string {
	switch c {
	case Transient:
		return "transient"
	case Capacity:
		return "capacity"
	case IdempotentConflict:
		return "idempotent-conflict"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type rule struct {
	name           string
	classification Classification
	match          func(*ProviderError) bool
}

// Rules are evaluated in order, first match wins. Message rules only apply to
// errors whose code carries no meaning of its own.
var rules = []rule{
	{"limit-exceeded", IdempotentConflict, func(e *ProviderError) bool {
		return codeIs(e, "LimitExceeded")
	}},
	{"out-of-capacity-code", Capacity, func(e *ProviderError) bool {
		return codeIs(e, "OutOfCapacity", "Out of host capacity.", "Out of host capacity")
	}},
	{"too-many-requests", Transient, func(e *ProviderError) bool {
		return codeIs(e, "TooManyRequests") || e.Status == http.StatusTooManyRequests
	}},
	{"bad-gateway", Transient, func(e *ProviderError) bool {
		return codeIs(e, "BadGateway") || e.Status == http.StatusBadGateway
	}},
	{"capacity-message", Capacity, func(e *ProviderError) bool {
		return genericCode(e) && messageContains(e, "capacity")
	}},
	{"transient-message", Transient, func(e *ProviderError) bool {
		return genericCode(e) && messageContains(e, "bad gateway", "too many requests")
	}},
	{"internal-error", Transient, func(e *ProviderError) bool {
		return codeIs(e, "InternalError") || (e.Code == "" && e.Status == http.StatusInternalServerError)
	}},
	{"empty-payload", Transient, func(e *ProviderError) bool {
		return e.Status == 0 && e.Code == "" && strings.TrimSpace(e.Message) == ""
	}},
}

// Classify maps any error to exactly one Classification. Errors that are not
// provider errors, or that no rule recognizes, are Fatal.
func Classify(err error) Classification {
	classification, _ := Explain(err)
	return classification
}

// Explain is Classify, also returning the name of the rule that decided.
func Explain(err error) (Classification, string) {
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) || providerErr == nil {
		return Fatal, "not-a-provider-error"
	}

	for _, r := range rules {
		if r.match(providerErr) {
			return r.classification, r.name
		}
	}

	return Fatal, "unrecognized"
}

func codeIs(e *ProviderError, codes ...string) bool {
	for _, code := range codes {
		if strings.EqualFold(e.Code, code) {
			return true
		}
	}
	return false
}

func genericCode(e *ProviderError) bool {
	return e.Code == "" || codeIs(e, "InternalError")
}

func messageContains(e *ProviderError, needles ...string) bool {
	message := strings.ToLower(e.Message)
	for _, needle := range needles {
		if strings.Contains(message, needle) {
			return true
		}
	}
	return false
}
