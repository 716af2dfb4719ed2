package audio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidState is returned when an operation is called outside its allowed states
	ErrInvalidState = errors.New("invalid recording state")

	// ErrConfiguration is returned when the device rejects the codec parameters
	ErrConfiguration = errors.New("unsupported codec configuration")

	// ErrIO is returned when the output file cannot be used
	ErrIO = errors.New("output file unusable")

	// ErrDevice is returned when the recording hardware fails
	ErrDevice = errors.New("recording device failure")
)

// StateError describes an operation invoked in the wrong state
type StateError struct {
	Op      string
	State   State
	Allowed []State
	Reason  string
}

func (e *StateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s in state %s", e.Op, ErrInvalidState, e.State)
	if len(e.Allowed) > 0 {
		names := make([]string, len(e.Allowed))
		for i, s := range e.Allowed {
			names[i] = string(s)
		}
		fmt.Fprintf(&b, " (allowed: %s)", strings.Join(names, ", "))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// classify prefixes a device error with the operation and makes sure it
// matches one of the taxonomy sentinels, using fallback when it matches none.
func classify(op string, err error, fallback error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrConfiguration, ErrIO, ErrDevice, ErrInvalidState} {
		if errors.Is(err, kind) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %w", op, fallback, err)
}
