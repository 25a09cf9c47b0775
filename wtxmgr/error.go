package wtxmgr

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a category of error.
type ErrorCode uint8

// These constants are used to identify a specific Error.
const (
	// ErrData describes an error where data held by the store is
	// inconsistent or could not be decoded.
	ErrData ErrorCode = iota

	// ErrInput describes an error where the variables passed into this
	// function by the caller are obviously incorrect.  Examples include
	// an empty transaction id or a note without a nullifier.
	ErrInput

	// ErrAlreadyExists describes an error where creating the item
	// failed because it already exists.
	ErrAlreadyExists

	// ErrUnknownTransaction describes an error where a pending
	// transaction was referenced that the store holds no record of.
	ErrUnknownTransaction
)

var errStrs = [...]string{
	ErrData:               "ErrData",
	ErrInput:              "ErrInput",
	ErrAlreadyExists:      "ErrAlreadyExists",
	ErrUnknownTransaction: "ErrUnknownTransaction",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if int(e) < len(errStrs) {
		return errStrs[e]
	}
	return fmt.Sprintf("ErrorCode(%d)", e)
}

// Error provides a single type for errors that can happen during Store
// operation.
type Error struct {
	Code ErrorCode // Describes the kind of error
	Desc string    // Human readable description of the issue
	Err  error     // Underlying error, optional
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Desc + ": " + e.Err.Error()
	}
	return e.Desc
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

func storeError(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// IsError returns whether the error is an Error with a matching error code.
func IsError(err error, code ErrorCode) bool {
	var e Error
	return errors.As(err, &e) && e.Code == code
}
