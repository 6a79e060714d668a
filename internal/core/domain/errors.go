// Package domain defines the core domain models for chunkmeta.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes have the form CM-<AREA>-<NNNN>; the last four digits mirror
// the closest HTTP status so the admin API can map them directly.
type DomainError struct {
	Code    string // Error code (e.g., "CM-CP-4220")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true // Only check if it's a DomainError
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates a caller-contract violation (e.g. empty log name).
	ErrInvalidArgument = NewDomainError("CM-ARG-4000", "invalid argument")

	// ErrNotFound indicates a namespace lookup failed.
	ErrNotFound = NewDomainError("CM-ARG-4040", "not found")

	// ErrExists indicates a namespace entry already exists.
	ErrExists = NewDomainError("CM-ARG-4090", "already exists")
)

// ============================================================================
// Checkpoint Errors (CP)
// ============================================================================

var (
	// ErrSequenceReused indicates a checkpoint was requested for a log sequence
	// number that is not strictly greater than the last published one.
	ErrSequenceReused = NewDomainError("CM-CP-4090", "checkpoint sequence already used")

	// ErrCheckpointInProgress indicates another checkpoint write is in flight.
	ErrCheckpointInProgress = NewDomainError("CM-CP-4091", "checkpoint already in progress")

	// ErrCheckpointThrottled indicates a checkpoint was requested before the
	// configured minimum gap since the previous one elapsed.
	ErrCheckpointThrottled = NewDomainError("CM-CP-4290", "checkpoint rate limited")

	// ErrNoCheckpoint indicates no usable checkpoint exists.
	ErrNoCheckpoint = NewDomainError("CM-CP-4040", "no checkpoint available")

	// ErrChecksumMismatch indicates the trailer digest does not match the body.
	ErrChecksumMismatch = NewDomainError("CM-CP-4220", "checkpoint checksum mismatch")

	// ErrUnsupportedVersion indicates the checkpoint format version is unknown.
	ErrUnsupportedVersion = NewDomainError("CM-CP-4221", "unsupported checkpoint version")

	// ErrMalformed indicates a structural error in a checkpoint or log record.
	ErrMalformed = NewDomainError("CM-CP-4222", "malformed record")

	// ErrCheckpointIO indicates an operating system I/O failure.
	ErrCheckpointIO = NewDomainError("CM-CP-5000", "checkpoint i/o error")

	// ErrCollaborator indicates a tree leaf or section contributor failed to serialize.
	ErrCollaborator = NewDomainError("CM-CP-5001", "checkpoint contributor failed")
)

// ============================================================================
// Log Errors (LOG)
// ============================================================================

var (
	// ErrLogChecksum indicates the replayed error checksum diverged from the
	// value recorded by the log writer.
	ErrLogChecksum = NewDomainError("CM-LOG-4220", "log error checksum mismatch")

	// ErrLogGap indicates a missing sequence number during replay.
	ErrLogGap = NewDomainError("CM-LOG-4221", "log sequence gap")

	// ErrLogClosed indicates the log writer has been closed.
	ErrLogClosed = NewDomainError("CM-LOG-5030", "log closed")
)

// IsIntegrity reports whether err is fatal for a specific checkpoint file
// only, so a caller may fall back to an older one.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrUnsupportedVersion) ||
		errors.Is(err, ErrMalformed)
}
