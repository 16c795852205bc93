// Package integrity implements the checksum and validation contracts shared
// by every worker: content hashing, request-shape validation, and the
// "execution marker" rule that every real LLM-backed result carries.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is returned when an operation is given a nil/empty value
// that cannot be meaningfully checksummed or compared.
var ErrInvalidInput = errors.New("integrity: invalid input")

// SimulationViolationError is returned when an execution marker is missing
// or not exactly "real".
type SimulationViolationError struct {
	Marker string
}

func (e *SimulationViolationError) Error() string {
	if e.Marker == "" {
		return "integrity: execution marker missing"
	}
	return fmt.Sprintf("integrity: execution marker %q is not \"real\"", e.Marker)
}

// Checksum returns the 64-char lowercase hex SHA-256 digest of content.
// A nil slice is rejected; an empty-but-non-nil slice is valid input and
// hashes to the digest of the empty string.
func Checksum(content []byte) (string, error) {
	if content == nil {
		return "", fmt.Errorf("%w: content is nil", ErrInvalidInput)
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChecksum reports whether content hashes to expected.
func VerifyChecksum(content []byte, expected string) (bool, error) {
	if strings.TrimSpace(expected) == "" {
		return false, fmt.Errorf("%w: expected checksum is empty", ErrInvalidInput)
	}
	got, err := Checksum(content)
	if err != nil {
		return false, err
	}
	return got == strings.ToLower(strings.TrimSpace(expected)), nil
}

// Request is the minimal shape VerifyRequest validates. Callers copy the
// prompt out of their concrete task-request type into it.
type Request struct {
	Prompt string
}

// ValidationResult reports whether a request is well-formed.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// VerifyRequest checks the one mandatory invariant: a non-whitespace prompt.
func VerifyRequest(req Request) ValidationResult {
	if strings.TrimSpace(req.Prompt) == "" {
		return ValidationResult{Valid: false, Errors: []string{"prompt must not be empty or whitespace-only"}}
	}
	return ValidationResult{Valid: true}
}

// RealExecutionResponse is the minimal shape VerifyRealExecution checks.
type RealExecutionResponse struct {
	Execution string
}

// VerifyRealExecution enforces the project's central invariant: a response
// reaching a caller must carry execution == "real". Anything else,
// including an empty marker, is a SimulationViolationError.
func VerifyRealExecution(resp RealExecutionResponse) error {
	if resp.Execution != "real" {
		return &SimulationViolationError{Marker: resp.Execution}
	}
	return nil
}
