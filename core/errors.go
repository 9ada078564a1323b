package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an operation is attempted from a state
	// that forbids it (starting a started meeting, recording after the end).
	ErrInvalidState = errors.New("invalid meeting state")

	// ErrUnknownParticipant is returned when no (human) participant carries
	// the given name.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrUnknownSession is returned when a meeting id is not registered.
	ErrUnknownSession = errors.New("unknown meeting")

	// ErrUpstreamModel marks failures of a model client call.
	ErrUpstreamModel = errors.New("upstream model error")

	// ErrConfiguration is returned for unrecognized modes, empty rosters and
	// similar setup mistakes.
	ErrConfiguration = errors.New("invalid configuration")
)

// UpstreamError wraps a model client failure with the participant it hit.
// errors.Is(err, ErrUpstreamModel) holds for every UpstreamError.
type UpstreamError struct {
	Participant string
	Err         error
}

// NewUpstreamError constructs an UpstreamError.
func NewUpstreamError(participant string, err error) *UpstreamError {
	return &UpstreamError{Participant: participant, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrUpstreamModel, e.Participant, e.Err)
}

// Unwrap returns the underlying client error.
func (e *UpstreamError) Unwrap() error { return e.Err }

// Is reports ErrUpstreamModel as a match.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamModel }
