package services

import "fmt"

// NotFoundError marks a missing resource: unknown session id, absent
// container or recording file, or an unresolvable viewer executable.
// Maps to HTTP 404.
type NotFoundError struct {
	Detail string
}

func (e *NotFoundError) Error() string {
	return e.Detail
}

// ConflictError marks a session whose viewer is still running when
// replacement was not requested. Maps to HTTP 409.
type ConflictError struct {
	Detail string
}

func (e *ConflictError) Error() string {
	return e.Detail
}

// ValidationError marks a request missing a required target. Maps to
// HTTP 400.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// StartupError marks a viewer process that exited within the grace
// window after spawn. The attempted command line is included so the
// caller can diagnose the invocation. Maps to HTTP 500.
type StartupError struct {
	Command string
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("viewer exited before the session could start. Command: %s", e.Command)
}
