package worker

import (
	"errors"
	"net/http"

	"cloneforge/internal/artifact"
	"cloneforge/internal/integrity"
	"cloneforge/internal/llmbackend"
)

// ValidationError wraps an integrity.ValidationResult failure.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return "worker: validation failed"
	}
	return "worker: validation failed: " + e.Reasons[0]
}

// SimulationViolationError is raised when an LLM response fails the
// execution-marker check.
type SimulationViolationError struct{ Cause error }

func (e *SimulationViolationError) Error() string { return "worker: " + e.Cause.Error() }
func (e *SimulationViolationError) Unwrap() error { return e.Cause }

// UnknownCloneError is raised by the coordinator registry.
type UnknownCloneError struct{ Role string }

func (e *UnknownCloneError) Error() string { return "worker: unknown clone: " + e.Role }

// statusFor maps the error taxonomy to an HTTP status.
func statusFor(err error) int {
	var (
		validationErr *ValidationError
		simViolation  *SimulationViolationError
		unknownClone  *UnknownCloneError
		ioErr         *artifact.IOError
		backendErr    *llmbackend.BackendError
		cfgErr        *llmbackend.ConfigurationError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &simViolation):
		return http.StatusInternalServerError
	case errors.Is(err, artifact.ErrChecksumMismatch):
		return http.StatusInternalServerError
	case errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &unknownClone):
		return http.StatusBadRequest
	case errors.As(err, &backendErr):
		return http.StatusBadGateway
	case errors.As(err, &ioErr):
		return http.StatusInternalServerError
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// validationErrorFrom converts an integrity.ValidationResult into an error,
// or nil when the result is valid.
func validationErrorFrom(result integrity.ValidationResult) error {
	if result.Valid {
		return nil
	}
	return &ValidationError{Reasons: result.Errors}
}
