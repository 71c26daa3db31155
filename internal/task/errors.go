package task

import (
	"errors"
	"fmt"

	"github.com/iambrandonn/actuator/internal/protocol"
)

var (
	ErrInvalidTransition = errors.New("invalid task state transition")
	ErrUnknownTask       = errors.New("unknown task")
)

// InvalidTransitionError is returned when a requested state change is not in
// the transition table. The task is left unchanged.
type InvalidTransitionError struct {
	TaskID string
	From   protocol.TaskState
	To     protocol.TaskState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for task %s", e.From, e.To, e.TaskID)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// UnknownTaskError is returned for an id the engine does not hold
type UnknownTaskError struct {
	TaskID string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q", e.TaskID)
}

func (e *UnknownTaskError) Is(target error) bool {
	return target == ErrUnknownTask
}
