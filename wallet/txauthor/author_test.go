package txauthor

import (
	"math"
	"testing"

	"github.com/PIVX-Labs/pivx-shield/wallet/txrules"
	"github.com/stretchr/testify/require"
)

func TestSelectInputs(t *testing.T) {
	shielded := txrules.TxShape{SaplingOutputs: 2}
	oneInputFee := txrules.EstimateFee(txrules.TxShape{
		SaplingInputs:  1,
		SaplingOutputs: 2,
	})
	twoInputFee := txrules.EstimateFee(txrules.TxShape{
		SaplingInputs:  2,
		SaplingOutputs: 2,
	})

	tests := []struct {
		name   string
		values []uint64
		amount uint64
		used   int
		sent   uint64
		fee    uint64
		err    bool
	}{
		{
			name:   "single input",
			values: []uint64{10000000, 1},
			amount: 5000000,
			used:   1,
			sent:   5000000,
			fee:    oneInputFee,
		},
		{
			name:   "two inputs",
			values: []uint64{3000000, 3000000},
			amount: 2000000,
			used:   2,
			sent:   2000000,
			fee:    twoInputFee,
		},
		{
			name:   "fee taken from amount",
			values: []uint64{5000000},
			amount: 4000000,
			used:   1,
			sent:   4000000 - oneInputFee,
			fee:    oneInputFee,
		},
		{
			name:   "insufficient",
			values: []uint64{1000},
			amount: 5000,
			err:    true,
		},
		{
			name:   "amount below fee",
			values: []uint64{1000000},
			amount: 1000000,
			err:    true,
		},
		{
			name:   "amount plus fee overflows",
			values: []uint64{math.MaxUint64},
			amount: math.MaxUint64 - 1000,
			err:    true,
		},
		{
			name:   "no inputs",
			amount: 1,
			err:    true,
		},
	}

	for _, test := range tests {
		used, sent, fee, err := SelectInputs(Inputs{
			Values:   test.values,
			Shielded: true,
		}, test.amount, shielded)
		if test.err {
			require.True(t, IsInsufficientFunds(err), test.name)
			continue
		}
		require.NoError(t, err, test.name)
		require.Equal(t, test.used, used, test.name)
		require.Equal(t, test.sent, sent, test.name)
		require.Equal(t, test.fee, fee, test.name)
	}
}

func TestParseOutPoint(t *testing.T) {
	op, err := ParseOutPoint("ab01,3")
	require.NoError(t, err)
	require.Equal(t, OutPoint{TxID: "ab01", Vout: 3}, op)
	require.Equal(t, "ab01,3", op.String())

	for _, s := range []string{"", "ab01", "ab01,", ",1", "ab01,x",
		"ab01,1,2", "ab01,-1"} {

		_, err := ParseOutPoint(s)
		require.Error(t, err, s)
	}

	ops, err := ParseOutPoints([]string{"aa,0", "bb,1"})
	require.NoError(t, err)
	require.Len(t, ops, 2)

	_, err = ParseOutPoints([]string{"aa,0", "bad"})
	require.Error(t, err)
}
