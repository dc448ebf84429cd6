package models

import (
	"errors"
	"fmt"
)

// ErrProviderUnavailable marks a soft feed failure. The gatherer logs it,
// substitutes neutral values and continues the cycle.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrUnknownAttack is returned for an attack type the simulator does not know.
var ErrUnknownAttack = errors.New("unknown attack type")

// InvalidTransitionError rejects a position state change that would violate
// the at-most-one-OPEN invariant or reopen a closed trade. The store is left
// untouched.
type InvalidTransitionError struct {
	SessionKey string
	Symbol     string
	Op         string // "open" or "close"
	Reason     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid position transition %s for %s:%s: %s", e.Op, e.SessionKey, e.Symbol, e.Reason)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}
