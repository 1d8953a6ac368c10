package service

import "fmt"

// ValidationError represents malformed or incomplete user input. It is
// reported synchronously and nothing is written.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NotFoundError represents an unknown campaign or user
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// TransportError represents a failed webhook call to the automation engine.
// Store state written before the call is left as-is; the campaign may be
// visibly stuck until remediated.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("engine handoff failed during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// EngineOfflineError is returned when the health prober reports the engine
// down. The operation fails fast, before any network call is attempted.
type EngineOfflineError struct {
	Op string
}

func (e *EngineOfflineError) Error() string {
	return fmt.Sprintf("automation engine is offline, cannot %s", e.Op)
}
