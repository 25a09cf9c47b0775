package txauthor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PIVX-Labs/pivx-shield/wallet/txrules"
)

// InputSourceError describes the failure to provide enough input value from
// unspent notes or outputs to meet a target amount.  A typed error is used
// so input sources can provide their own implementations describing the
// reason for the error, for example, due to notes reserved by pending
// transactions rather than the wallet not having enough available value.
type InputSourceError interface {
	error
	InputSourceError()
}

// Default implementation of InputSourceError.
type insufficientFundsError struct{}

func (insufficientFundsError) InputSourceError() {}
func (insufficientFundsError) Error() string {
	return "insufficient funds available to construct transaction"
}

// IsInsufficientFunds returns whether err reports a lack of input value.
func IsInsufficientFunds(err error) bool {
	_, ok := err.(InputSourceError)
	return ok
}

// Inputs describes the value available to fund a transaction.  Only one of
// the two kinds is spent by a single transaction.
type Inputs struct {
	// Values are the amounts of the candidate inputs, in the order they
	// will be consumed.
	Values []uint64

	// Shielded is set when Values are notes rather than transparent
	// outputs.
	Shielded bool
}

// SelectInputs consumes inputs in order until they cover amount plus the
// fee of a transaction spending them and creating the outputs counted in
// outputs.  When every input together covers amount but not the fee, the
// fee is taken out of the amount instead, provided the amount exceeds it.  The number of
// inputs used, the amount actually sent and the fee are returned.
func SelectInputs(in Inputs, amount uint64,
	outputs txrules.TxShape) (int, uint64, uint64, error) {

	var (
		total uint64
		fee   uint64
		used  int
	)
	for _, v := range in.Values {
		used++
		shape := txrules.TxShape{
			TransparentOutputs: outputs.TransparentOutputs,
			SaplingOutputs:     outputs.SaplingOutputs,
		}
		if in.Shielded {
			shape.SaplingInputs = used
		} else {
			shape.TransparentInputs = used
		}
		fee = txrules.EstimateFee(shape)
		if amount > math.MaxUint64-fee {
			return 0, 0, 0, insufficientFundsError{}
		}
		total += v
		if total >= amount+fee {
			return used, amount, fee, nil
		}
	}

	if total >= amount && amount > fee {
		return used, amount - fee, fee, nil
	}
	return 0, 0, 0, insufficientFundsError{}
}

// OutPoint identifies a transparent output spent by a transaction.
type OutPoint struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// String returns the outpoint in the "txid,vout" form used by the engine.
func (op OutPoint) String() string {
	return op.TxID + "," + strconv.FormatUint(uint64(op.Vout), 10)
}

// ParseOutPoint parses an outpoint in the "txid,vout" form.
func ParseOutPoint(s string) (OutPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 || parts[0] == "" {
		return OutPoint{}, fmt.Errorf("malformed outpoint %q", s)
	}
	vout, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return OutPoint{}, fmt.Errorf("malformed outpoint index %q: %w",
			parts[1], err)
	}
	return OutPoint{TxID: parts[0], Vout: uint32(vout)}, nil
}

// ParseOutPoints parses every outpoint in ss.
func ParseOutPoints(ss []string) ([]OutPoint, error) {
	ops := make([]OutPoint, 0, len(ss))
	for _, s := range ss {
		op, err := ParseOutPoint(s)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// AuthoredTx holds a newly-created transaction ready to be broadcast.
type AuthoredTx struct {
	TxID string `json:"txid"`
	Hex  string `json:"hex"`

	// SpentUTXOs lists the transparent outputs spent by the transaction.
	// It is empty when the transaction spends notes.
	SpentUTXOs []OutPoint `json:"spentUTXOs"`

	// Fee is the fee the transaction was estimated to pay.
	Fee uint64 `json:"fee"`
}
