// Package errors provides structured error types for the redispool library.
// All errors the pool surfaces to callers are rooted here so that callers
// can branch on failure classes with errors.Is/As without caring which
// internal layer produced the failure.
//
// This package provides:
//   - Sentinel errors for the pool lifecycle and the backing-store transport
//   - A structured CommandError for commands the store rejected
//   - Error wrapping with context preservation
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrConnection indicates the backing-store transport failed to
	// establish or maintain a connection (network failure, auth rejection).
	// The pool never retries these itself; retry policy belongs to the caller.
	ErrConnection = errors.New("connection error")

	// ErrConcurrentInit indicates a second initialization attempt was
	// observed while one was already in flight for the same pool. It is
	// fatal to that attempt, not to the pool.
	ErrConcurrentInit = errors.New("initialization already in progress")

	// ErrPoolClosed indicates an operation was attempted after the pool
	// was drained and cleared. Never retried.
	ErrPoolClosed = errors.New("pool is closed")

	// ErrPoolExhausted indicates the pool could not provide a connection
	// within the configured acquire timeout.
	ErrPoolExhausted = errors.New("pool exhausted")

	// ErrNotOpen indicates the pool has not completed initialization.
	ErrNotOpen = errors.New("pool not open")

	// ErrNil indicates the store returned a nil reply, typically a read
	// of a key that does not exist.
	ErrNil = errors.New("nil reply")

	// ErrConfiguration indicates an invalid configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Store-specific errors.
var (
	// ErrStoreUnreachable indicates the store address could not be reached.
	ErrStoreUnreachable = fmt.Errorf("store: %w", ErrConnection)

	// ErrAuthRejected indicates the store rejected the session credentials.
	ErrAuthRejected = fmt.Errorf("store: auth rejected: %w", ErrConnection)
)

// Registry-specific errors.
var (
	// ErrRegistryShutdown indicates the registry has been shut down.
	ErrRegistryShutdown = fmt.Errorf("registry: %w", ErrPoolClosed)
)

// CommandError is returned when the backing store rejects or errors on a
// specific command (bad arguments, wrong-type operation). The connection
// that carried the command is released back to the pool normally, so a
// CommandError never costs pool capacity.
type CommandError struct {
	// Command is the command name as it was sent to the store.
	Command string
	// Err is the error the store reported.
	Err error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s: %v", e.Command, e.Err)
}

// Unwrap returns the store's error for errors.Is/As.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps a store reply error with the command that caused it.
func NewCommandError(command string, err error) *CommandError {
	if err != nil {
		log.WithField("command", command).WithError(err).Debug("store rejected command")
	}
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// IsCommand returns true if the error is a CommandError from the store.
func IsCommand(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

// IsConnection returns true if the error indicates a transport failure.
func IsConnection(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsPoolClosed returns true if the error indicates the pool is closed.
func IsPoolClosed(err error) bool {
	return errors.Is(err, ErrPoolClosed)
}

// IsPoolExhausted returns true if the error indicates acquisition timed out.
func IsPoolExhausted(err error) bool {
	return errors.Is(err, ErrPoolExhausted)
}

// IsConcurrentInit returns true if the error indicates a racing initialization.
func IsConcurrentInit(err error) bool {
	return errors.Is(err, ErrConcurrentInit)
}

// IsNil returns true if the error indicates a nil reply (missing key).
func IsNil(err error) bool {
	return errors.Is(err, ErrNil)
}

// IsNotOpen returns true if the error indicates the pool was never opened.
func IsNotOpen(err error) bool {
	return errors.Is(err, ErrNotOpen)
}

// Join combines multiple errors into a single error.
// Returns nil if all errors are nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target,
// and if so, sets target to that error value and returns true.
func As(err error, target any) bool {
	return errors.As(err, target)
}
