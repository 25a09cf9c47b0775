package txrules

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateFee(t *testing.T) {
	tests := []struct {
		name  string
		shape TxShape
		fee   uint64
	}{
		{"empty", TxShape{}, 85000},
		{"shielded payment", TxShape{SaplingInputs: 1, SaplingOutputs: 2}, 2365000},
		{"transparent payment", TxShape{
			TransparentInputs:  2,
			TransparentOutputs: 1,
			SaplingOutputs:     2,
		}, 2315000},
	}
	for _, test := range tests {
		require.Equal(t, test.fee, EstimateFee(test.shape), test.name)
	}
}

func TestCheckChangeType(t *testing.T) {
	require.NoError(t, CheckChangeType(true, ""))
	require.NoError(t, CheckChangeType(false, "yChange"))
	require.ErrorIs(t, CheckChangeType(true, "yChange"), ErrChangeTypeMismatch)
	require.ErrorIs(t, CheckChangeType(false, ""), ErrChangeTypeMismatch)
}

func TestPaymentShape(t *testing.T) {
	require.Equal(t, TxShape{SaplingOutputs: 2},
		PaymentShape("ps1abc", false))
	require.Equal(t, TxShape{SaplingOutputs: 2, TransparentOutputs: 1},
		PaymentShape("DTransparent", false))
	require.Equal(t, TxShape{SaplingOutputs: 2},
		PaymentShape("ptestsapling1abc", true))
	require.Equal(t, TxShape{SaplingOutputs: 2, TransparentOutputs: 1},
		PaymentShape("ps1abc", true))
}
