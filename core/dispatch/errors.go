package dispatch

import (
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrOrchestratorFault wraps every error SubmitRound returns. Per-target
	// failures never surface as errors; they are reported as outcomes.
	ErrOrchestratorFault = errors.New("dispatch orchestrator fault")
	// ErrInvalidRequest is returned when the request fails validation.
	ErrInvalidRequest = errors.New("invalid dispatch request")
	// ErrDuplicateTarget is returned when a round lists the same target twice.
	ErrDuplicateTarget = errors.New("duplicate target in round")
	// ErrNoTransport is returned when an orchestrator is built without a transport.
	ErrNoTransport = errors.New("no transport configured")
	// ErrTransportPanic is the failure recorded when a transport panics.
	ErrTransportPanic = errors.New("transport panicked")
)

func fault(err error) error {
	return fmt.Errorf("%w: %w", ErrOrchestratorFault, err)
}

// Permanent marks a transport error as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
