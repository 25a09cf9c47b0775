package wallet

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/PIVX-Labs/pivx-shield/chain"
	"github.com/PIVX-Labs/pivx-shield/waddrmgr"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	w := testWallet(t, e, false)

	e.addNote("aa", "nf1", 700)
	e.addNote("bb", "nf2", 300)
	_, err := w.HandleBlocks(ctx, []chain.Block{block(101, "aa"),
		block(102, "bb")})
	require.NoError(t, err)
	_, err = w.NewAddress(ctx)
	require.NoError(t, err)
	require.NoError(t, w.TxStore.AddPending("tx1", []string{"nf1"}, nil))

	data, err := w.Save()
	require.NoError(t, err)

	loaded, current, err := Load(e, data)
	require.NoError(t, err)
	defer loaded.Stop()

	require.True(t, current)
	require.True(t, loaded.IsViewOnly())
	require.True(t, loaded.IsTestnet())
	require.Equal(t, w.Balance(), loaded.Balance())
	require.Equal(t, w.LastSyncedHeight(), loaded.LastSyncedHeight())
	require.Equal(t, w.CommitmentTree(), loaded.CommitmentTree())
	require.Equal(t, w.Manager.DiversifierIndex(),
		loaded.Manager.DiversifierIndex())
	require.Equal(t, w.UnspentNotes(), loaded.UnspentNotes())
	require.True(t, loaded.IsOwnNullifier("nf2"))

	// Pending transactions are not part of a snapshot.
	require.Empty(t, loaded.TxStore.PendingTxIDs())
}

func TestSaveFormat(t *testing.T) {
	w := testWallet(t, newFakeEngine(), true)

	data, err := w.Save()
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, name := range []string{"version", "extfvk",
		"lastProcessedBlock", "commitmentTree", "diversifierIndex",
		"unspentNotes", "isTestnet", "mapNullifierNote"} {

		require.Contains(t, fields, name)
	}
	require.JSONEq(t, "1", string(fields["version"]))
	require.JSONEq(t, "[0,0,0,0,0,0,0,0,0,0,0]",
		string(fields["diversifierIndex"]))
}

func TestLoadSnapshotAuthorityMismatch(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	w := testWallet(t, e, true)

	e.addNote("aa", "nf1", 700)
	_, err := w.HandleBlocks(ctx, []chain.Block{block(101, "aa")})
	require.NoError(t, err)

	other := []byte(`{"version":1,"extfvk":"pxviews1other",
		"lastProcessedBlock":5,"commitmentTree":"t",
		"diversifierIndex":[0,0,0,0,0,0,0,0,0,0,0],"unspentNotes":[],
		"isTestnet":true,"mapNullifierNote":{}}`)

	_, err = w.LoadSnapshot(other)
	require.True(t, waddrmgr.IsError(err, waddrmgr.ErrAuthorityMismatch))
	require.Equal(t, uint64(700), w.Balance())
	require.Equal(t, int32(101), w.LastSyncedHeight())
	require.True(t, w.IsOwnNullifier("nf1"))
}

func TestLoadSnapshotSameWallet(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	w := testWallet(t, e, false)

	data, err := w.Save()
	require.NoError(t, err)

	e.addNote("aa", "nf1", 700)
	_, err = w.HandleBlocks(ctx, []chain.Block{block(101, "aa")})
	require.NoError(t, err)

	current, err := w.LoadSnapshot(data)
	require.NoError(t, err)
	require.True(t, current)
	require.Zero(t, w.Balance())
	require.Equal(t, int32(100), w.LastSyncedHeight())
	require.False(t, w.IsOwnNullifier("nf1"))

	// The spending key survives the load.
	require.False(t, w.IsViewOnly())
}

func TestLoadVersion0(t *testing.T) {
	e := newFakeEngine()
	data := []byte(`{"extfvk":"pxviews1test","lastProcessedBlock":90,
		"commitmentTree":"tree90",
		"diversifierIndex":[4,0,0,0,0,0,0,0,0,0,0],
		"unspentNotes":[{"note":{"value":5,"recipient":[1],"rseed":[2]},
			"witness":"w","nullifier":"nf1"}],
		"isTestnet":false}`)

	w, current, err := Load(e, data)
	require.NoError(t, err)
	defer w.Stop()

	require.False(t, current)
	require.Equal(t, int32(90), w.LastSyncedHeight())
	require.Equal(t, "tree90", w.CommitmentTree())
	require.Equal(t, byte(4), w.Manager.DiversifierIndex()[0])
	require.False(t, w.IsTestnet())
	require.Zero(t, w.Balance())
	require.Empty(t, w.TxStore.History())
}

func TestLoadRejects(t *testing.T) {
	e := newFakeEngine()

	tests := []struct {
		name string
		data string
		err  error
	}{
		{"malformed", `{"version":`, nil},
		{"missing viewing key", `{"version":1}`, nil},
		{"newer version", `{"version":2,"extfvk":"pxviews1test"}`,
			ErrUnknownVersion},
	}
	for _, test := range tests {
		_, _, err := Load(e, []byte(test.data))
		require.Error(t, err, test.name)
		if test.err != nil {
			require.ErrorIs(t, err, test.err, test.name)
		}
	}
}
