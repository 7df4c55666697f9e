package apperrors

import (
	"errors"
	"fmt"
)

// RetryableError indicates an error that might be resolved by retrying.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryable wraps the given error as a RetryableError, adding a message.
func NewRetryable(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &RetryableError{Err: fmt.Errorf(format, allArgs...)}
}

// FatalError indicates an error that is unlikely to be resolved by retrying.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal wraps the given error as a FatalError, adding a message.
func NewFatal(err error, message string, args ...interface{}) error {
	format := message + ": %w"
	allArgs := append(args, err)
	return &FatalError{Err: fmt.Errorf(format, allArgs...)}
}

// --- Standard Error Definitions ---

// Sentinel errors for the command-processing pipeline. Checked with
// errors.Is, optionally wrapped by RetryableError or FatalError.
var (
	// ErrMalformedPayload indicates a channel webhook payload missing required fields.
	ErrMalformedPayload = errors.New("malformed channel payload")
	// ErrUnknownSender indicates the sender could not be resolved to a tenant.
	// Not a failure: it short-circuits to the onboarding prompt.
	ErrUnknownSender = errors.New("unknown sender")
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation indicates a business-rule violation (rejected command).
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a re-delivered webhook event caught by the dedupe window.
	ErrDuplicate = errors.New("duplicate delivery")
	// ErrUnavailable indicates the fallback backend is unreachable (network-level failure).
	ErrUnavailable = errors.New("backend unavailable")
	// ErrBadResponse indicates the fallback backend answered with an error status
	// or a body that does not satisfy its contract.
	ErrBadResponse = errors.New("bad backend response")
	// ErrCapacity indicates the processing pool refused a submission because
	// it is saturated.
	ErrCapacity = errors.New("processing at capacity")
	// ErrDatabase indicates a general database interaction error.
	ErrDatabase = errors.New("database error")
	// ErrTimeout indicates an operation exceeded its processing deadline.
	ErrTimeout = errors.New("operation timeout")
	// ErrDelivery indicates an outbound channel send failure. Logged, never propagated.
	ErrDelivery = errors.New("delivery failed")
)

// IsRetryable checks if the error is a RetryableError or wraps one.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// IsFatal checks if the error is a FatalError or wraps one.
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}

// IsMalformedPayload checks if the error is or wraps ErrMalformedPayload.
func IsMalformedPayload(err error) bool {
	return errors.Is(err, ErrMalformedPayload)
}

// IsUnknownSender checks if the error is or wraps ErrUnknownSender.
func IsUnknownSender(err error) bool {
	return errors.Is(err, ErrUnknownSender)
}

// IsNotFound checks if the error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is or wraps ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDuplicate checks if the error is or wraps ErrDuplicate.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsUnavailable checks if the error is or wraps ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsBadResponse checks if the error is or wraps ErrBadResponse.
func IsBadResponse(err error) bool {
	return errors.Is(err, ErrBadResponse)
}

// IsCapacity checks if the error is or wraps ErrCapacity.
func IsCapacity(err error) bool {
	return errors.Is(err, ErrCapacity)
}

// IsDatabase checks if the error is or wraps ErrDatabase.
func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsTimeout checks if the error is or wraps ErrTimeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
