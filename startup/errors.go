package startup

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyStarted is returned by a second Bootstrap on the same coordinator.
	ErrAlreadyStarted = errors.New("node already bootstrapped")

	// ErrReadyTimeout is returned when the node does not signal readiness in time.
	ErrReadyTimeout = errors.New("timed out waiting for node to become ready")

	// ErrProducerDropped is returned when initialization ended without a signal.
	ErrProducerDropped = errors.New("node initialization ended without signalling readiness")

	// ErrShutdownTimeout is returned when the node did not stop in time.
	ErrShutdownTimeout = errors.New("timed out waiting for node to shut down")
)

// Startup steps reported by StartupError.
const (
	StepStart   = "start"
	StepMigrate = "migrate"
)

// StartupError reports a failed initialization step.
type StartupError struct {
	Step string
	Err  error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.Step, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}
