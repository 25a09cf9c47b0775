package wtxmgr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalize(t *testing.T) {
	s := New()
	s.Restore([]SpendableNote{spendable("n1", 10), spendable("n2", 6)}, nil)
	require.NoError(t, s.AddPending("tx1", []string{"n1"}, []Note{{Value: 3}}))
	require.Contains(t, s.PendingSpent(), "n1")

	require.NoError(t, s.Finalize("tx1"))
	require.EqualValues(t, 6, s.Balance())
	require.NotContains(t, s.PendingSpent(), "n1")

	// The change is still expected until the transaction is mined.
	require.EqualValues(t, 3, s.PendingBalance())
	require.True(t, s.HasPending("tx1"))

	// The outgoing half is gone, so a second finalize fails.
	err := s.Finalize("tx1")
	require.True(t, IsError(err, ErrUnknownTransaction))
	require.EqualValues(t, 6, s.Balance())
	require.EqualValues(t, 3, s.PendingBalance())
}

func TestFinalizeUnknown(t *testing.T) {
	s := New()
	s.Restore([]SpendableNote{spendable("n1", 10)}, nil)

	err := s.Finalize("missing")
	require.True(t, IsError(err, ErrUnknownTransaction))
	require.EqualValues(t, 10, s.Balance())
}

func TestDiscard(t *testing.T) {
	s := New()
	s.Restore([]SpendableNote{spendable("n1", 10)}, nil)
	require.NoError(t, s.AddPending("tx1", []string{"n1"}, []Note{{Value: 3}}))

	s.Discard("tx1")
	require.EqualValues(t, 10, s.Balance())
	require.Zero(t, s.PendingBalance())
	require.Empty(t, s.PendingSpent())

	// Discarding twice is harmless.
	s.Discard("tx1")
	s.Discard("never-seen")
	require.Empty(t, s.PendingTxIDs())
}

func TestAddPending(t *testing.T) {
	tests := []struct {
		name     string
		txid     string
		spent    []string
		incoming []Note
		code     ErrorCode
	}{
		{
			name:  "empty txid",
			txid:  "",
			spent: []string{"n1"},
			code:  ErrInput,
		},
		{
			name:  "duplicate",
			txid:  "tx1",
			spent: []string{"n2"},
			code:  ErrAlreadyExists,
		},
	}

	s := New()
	require.NoError(t, s.AddPending("tx1", []string{"n1"}, nil))
	for _, test := range tests {
		err := s.AddPending(test.txid, test.spent, test.incoming)
		require.Truef(t, IsError(err, test.code), "%s: got %v", test.name, err)
	}
	require.Equal(t, []string{"tx1"}, s.PendingTxIDs())

	// A transaction with transparent inputs and no change back to the
	// wallet is still known to the overlay.
	require.NoError(t, s.AddPending("tx2", nil, nil))
	require.Equal(t, []string{"tx1", "tx2"}, s.PendingTxIDs())

	// Once finalized with nothing coming back it leaves the overlay.
	require.NoError(t, s.Finalize("tx2"))
	require.Equal(t, []string{"tx1"}, s.PendingTxIDs())
	require.True(t, IsError(s.Finalize("tx2"), ErrUnknownTransaction))
}
