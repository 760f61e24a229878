package vault

import (
	"errors"
	"time"
)

// Operation outcomes reported to an Observer.
const (
	OutcomeOK         = "ok"
	OutcomeAbsent     = "absent"
	OutcomeUnreadable = "unreadable"
	OutcomeInvalid    = "invalid"
	OutcomeError      = "error"
)

// Observer receives one call per vault operation. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string, time.Duration) {}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrAbsent):
		return OutcomeAbsent
	case errors.Is(err, ErrUnreadable):
		return OutcomeUnreadable
	case errors.Is(err, ErrInvalidField), errors.Is(err, ErrInvalidUser):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
