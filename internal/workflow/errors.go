package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies workflow failures for the HTTP layer.
type Kind int

const (
	// KindUnexpected is a server side failure.
	KindUnexpected Kind = iota
	// KindConfiguration means the workflow is not set up for this event.
	// The delivery is acknowledged so GitHub does not redeliver it.
	KindConfiguration
	// KindMissingData means the event lacks something the workflow needs.
	KindMissingData
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindMissingData:
		return "missing_data"
	default:
		return "unexpected"
	}
}

// ErrStepLimitExceeded is wrapped into the error returned when an execution
// runs more steps than the engine allows.
var ErrStepLimitExceeded = errors.New("step limit exceeded")

// Error is a classified workflow failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " workflow error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Configuration wraps err as a configuration failure.
func Configuration(err error) error { return &Error{Kind: KindConfiguration, Err: err} }

// MissingData wraps err as a missing data failure.
func MissingData(err error) error { return &Error{Kind: KindMissingData, Err: err} }

// Unexpected wraps err as an unexpected failure.
func Unexpected(err error) error { return &Error{Kind: KindUnexpected, Err: err} }

// KindOf returns the kind of err. Errors that are not a *Error are unexpected.
func KindOf(err error) Kind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}
	return KindUnexpected
}

// Missing is a shorthand for a MissingData error about a value absent from
// the state bag.
func Missing(what string) error {
	return MissingData(fmt.Errorf("failed to get %s from state", what))
}
