package waddrmgr

import (
	"errors"
	"fmt"
)

var (
	// errWatchingOnly is the common error description used for the
	// ErrWatchingOnly error code.
	errWatchingOnly = "operation not permitted on view-only wallet"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific ManagerError.
const (
	// ErrInvalidKey indicates that key material handed to the manager is
	// empty or malformed.
	ErrInvalidKey ErrorCode = iota

	// ErrWatchingOnly indicates that the manager holds no spending
	// authority and the requested operation needs it.
	ErrWatchingOnly

	// ErrAuthorityMismatch indicates that a spending key does not derive
	// the viewing key the manager is bound to.
	ErrAuthorityMismatch

	// ErrSpendingKeyLoaded indicates an attempt to load a spending key
	// into a manager that already holds one.
	ErrSpendingKeyLoaded

	// ErrDiversifierRegression indicates an attempt to move the
	// diversifier index backwards.
	ErrDiversifierRegression
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidKey:            "ErrInvalidKey",
	ErrWatchingOnly:          "ErrWatchingOnly",
	ErrAuthorityMismatch:     "ErrAuthorityMismatch",
	ErrSpendingKeyLoaded:     "ErrSpendingKeyLoaded",
	ErrDiversifierRegression: "ErrDiversifierRegression",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ManagerError provides a single type for errors that can happen during
// address manager operation.  It is used to indicate several types of
// failures including invalid key material and operations that require a
// spending key on a view-only manager.
//
// The caller can use type assertions to determine if an error is a
// ManagerError and access the ErrorCode field to ascertain the specific
// reason for the failure.
type ManagerError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e ManagerError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e ManagerError) Unwrap() error {
	return e.Err
}

// managerError creates a ManagerError given a set of arguments.
func managerError(c ErrorCode, desc string, err error) ManagerError {
	return ManagerError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a ManagerError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	var e ManagerError
	return errors.As(err, &e) && e.ErrorCode == code
}
