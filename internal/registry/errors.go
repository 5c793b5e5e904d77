package registry

import (
	"errors"
	"fmt"
)

// startupError signals that the default or a preload tokenizer could not be
// built; the service must not start.
type startupError struct {
	model   string
	preload bool
	err     error
}

func (e startupError) Error() string {
	role := "default"
	if e.preload {
		role = "preload"
	}
	return fmt.Sprintf("%s tokenizer %q unavailable: %v", role, e.model, e.err)
}

func (e startupError) Unwrap() error { return e.err }

// IsStartupFailure reports whether err came from building the default or a
// preload tokenizer in New.
func IsStartupFailure(err error) bool {
	var se startupError
	return errors.As(err, &se)
}

// loadFailedError is returned by RegisterSync for a name whose construction
// already failed. Failures are never retried.
type loadFailedError struct {
	model string
	cause string
}

func (e loadFailedError) Error() string {
	return fmt.Sprintf("tokenizer %q failed earlier: %s", e.model, e.cause)
}

// IsLoadFailed reports whether err indicates a permanently failed name.
func IsLoadFailed(err error) bool {
	var le loadFailedError
	return errors.As(err, &le)
}

// loadInProgressError is returned by RegisterSync when a background load owns
// the name.
type loadInProgressError struct{ model string }

func (e loadInProgressError) Error() string { return "tokenizer load in progress: " + e.model }

// IsLoadInProgress reports whether err indicates an outstanding background load.
func IsLoadInProgress(err error) bool {
	var le loadInProgressError
	return errors.As(err, &le)
}

var errNoProviders = errors.New("registry: no tokenizer providers configured")
