// Package txrules provides transaction rules that should be followed by
// transaction authors: the fee a transaction pays for its size and the
// kind of change output it may carry.
package txrules

import (
	"errors"
	"strings"
)

// FeePerByte is the fee paid for every byte of an estimated transaction,
// in the smallest currency unit.
const FeePerByte = 1000

// Worst case serialize sizes, in bytes, of the parts of a transaction.
const (
	// TransparentInputSize is the size of a transparent input redeeming
	// a pay-to-pubkey-hash output.
	TransparentInputSize = 150

	// TransparentOutputSize is the size of a pay-to-pubkey-hash output.
	TransparentOutputSize = 34

	// SaplingInputSize is the size of a shielded spend description.
	SaplingInputSize = 384

	// SaplingOutputSize is the size of a shielded output description.
	SaplingOutputSize = 948

	// TxOffsetSize is the fixed size of every transaction.
	TxOffsetSize = 85
)

// ErrChangeTypeMismatch is returned when the change destination does not
// match the kind of inputs a transaction spends.
var ErrChangeTypeMismatch = errors.New("change must have the same type " +
	"of input used")

// TxShape counts the inputs and outputs of a transaction by kind.
type TxShape struct {
	TransparentInputs  int `json:"transparentinputs"`
	TransparentOutputs int `json:"transparentoutputs"`
	SaplingInputs      int `json:"saplinginputs"`
	SaplingOutputs     int `json:"saplingoutputs"`
}

// EstimateSize returns the worst case serialize size of a transaction with
// the given shape.
func EstimateSize(shape TxShape) int {
	return shape.TransparentInputs*TransparentInputSize +
		shape.TransparentOutputs*TransparentOutputSize +
		shape.SaplingInputs*SaplingInputSize +
		shape.SaplingOutputs*SaplingOutputSize +
		TxOffsetSize
}

// EstimateFee returns the fee a transaction with the given shape pays.
func EstimateFee(shape TxShape) uint64 {
	return uint64(EstimateSize(shape)) * FeePerByte
}

// CheckChangeType validates the change destination of a transaction.  A
// transaction spending shielded notes returns change to a fresh shielded
// address and must not name a transparent one, while a transaction spending
// transparent outputs needs a transparent change address.
func CheckChangeType(useShieldInputs bool, transparentChangeAddr string) error {
	if useShieldInputs == (transparentChangeAddr == "") {
		return nil
	}
	return ErrChangeTypeMismatch
}

// Human readable prefixes of encoded shielded payment addresses.
const (
	MainNetSaplingHRP = "ps"
	TestNetSaplingHRP = "ptestsapling"
)

// IsShieldedAddress returns whether addr is a shielded payment address of
// the selected network.
func IsShieldedAddress(addr string, testnet bool) bool {
	hrp := MainNetSaplingHRP
	if testnet {
		hrp = TestNetSaplingHRP
	}
	return strings.HasPrefix(addr, hrp)
}

// PaymentShape returns the output counts used for fee estimation of a
// payment to addr.  Two shielded outputs are always accounted for since the
// builder pads shielded bundles, and a transparent recipient adds one
// transparent output.
func PaymentShape(addr string, testnet bool) TxShape {
	shape := TxShape{SaplingOutputs: 2}
	if !IsShieldedAddress(addr, testnet) {
		shape.TransparentOutputs = 1
	}
	return shape
}
