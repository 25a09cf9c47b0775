package legacyrpc

import (
	"errors"

	"github.com/abesuite/abec/abejson"
)

// Error types to simplify the reporting of specific categories of
// errors, and their *abejson.RPCError creation.
type (
	// DeserializationError describes a failed deserializaion due to bad
	// user input.  It corresponds to abejson.ErrRPCDeserialization.
	DeserializationError struct {
		error
	}

	// InvalidParameterError describes an invalid parameter passed by
	// the user.  It corresponds to abejson.ErrRPCInvalidParameter.
	InvalidParameterError struct {
		error
	}

	// ParseError describes a failed parse due to bad user input.  It
	// corresponds to abejson.ErrRPCParse.
	ParseError struct {
		error
	}
)

// Errors variables that are defined once here to avoid duplication below.
var (
	ErrNeedPositiveAmount = InvalidParameterError{
		errors.New("amount must be positive"),
	}

	ErrNeedTxID = InvalidParameterError{
		errors.New("transaction id must not be empty"),
	}

	ErrNullifierNotFound = abejson.RPCError{
		Code:    abejson.ErrRPCWallet,
		Message: "nullifier does not belong to the wallet",
	}

	ErrMethodNotFound = &abejson.RPCError{
		Code:    -32601,
		Message: "Method not found",
	}

	ErrNoSnapshotDB = abejson.RPCError{
		Code:    abejson.ErrRPCWallet,
		Message: "wallet database is not open",
	}
)
