package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/PIVX-Labs/pivx-shield/chain"
	"github.com/PIVX-Labs/pivx-shield/waddrmgr"
	"github.com/PIVX-Labs/pivx-shield/wtxmgr"
	"github.com/stretchr/testify/require"
)

// recordingCaller captures the JSON encoding of the last call and answers
// with a canned result.
type recordingCaller struct {
	name   string
	args   string
	result string
	err    error
}

func (r *recordingCaller) Call(_ context.Context, name string,
	result interface{}, args ...interface{}) error {

	r.name = name
	b, err := json.Marshal(args)
	if err != nil {
		return err
	}
	r.args = string(b)
	if r.err != nil {
		return r.err
	}
	if result == nil || r.result == "" {
		return nil
	}
	return json.Unmarshal([]byte(r.result), result)
}

func TestGenerateSpendingKey(t *testing.T) {
	rc := &recordingCaller{result: `"p-secret-spending-key-test1"`}
	c := NewClient(rc)

	extsk, err := c.GenerateSpendingKey(context.Background(), []byte{1, 2}, 1, 0)
	require.NoError(t, err)
	require.Equal(t, "p-secret-spending-key-test1", extsk)
	require.Equal(t, opGenerateSpendingKey, rc.name)
	require.JSONEq(t, `[{"seed":[1,2],"coin_type":1,"account_index":0}]`, rc.args)
}

func TestClosestCheckpoint(t *testing.T) {
	rc := &recordingCaller{result: `[1125777, "018c32"]`}
	c := NewClient(rc)

	state, err := c.ClosestCheckpoint(context.Background(), 1200000, true)
	require.NoError(t, err)
	require.Equal(t, waddrmgr.SyncState{Height: 1125777, CommitmentTree: "018c32"}, *state)
	require.JSONEq(t, `[1200000, true]`, rc.args)

	rc.result = `[1]`
	_, err = c.ClosestCheckpoint(context.Background(), 5, true)
	require.Error(t, err)
}

func TestHandleBlocks(t *testing.T) {
	rc := &recordingCaller{result: `{
		"decrypted_notes": [],
		"decrypted_new_notes": [{
			"note": {"value": 5, "recipient": [9], "rseed": [1]},
			"witness": "ww",
			"nullifier": "aa"
		}],
		"nullifiers": ["bb"],
		"commitment_tree": "tree2",
		"wallet_transactions": ["00ff"]
	}`}
	c := NewClient(rc)

	res, err := c.HandleBlocks(context.Background(), &HandleBlocksRequest{
		CommitmentTree: "tree1",
		Blocks: []chain.Block{{
			Height: 7,
			Txs:    []chain.Tx{{Hex: "00ff", TxID: "t1"}},
		}},
		ViewingKey: "fvk",
		IsTestnet:  true,
	})
	require.NoError(t, err)
	require.Equal(t, opHandleBlocks, rc.name)
	require.JSONEq(t,
		`["tree1", [{"height": 7, "txs": ["00ff"]}], "fvk", true, []]`,
		rc.args)

	require.Len(t, res.DecryptedNewNotes, 1)
	require.EqualValues(t, 5, res.DecryptedNewNotes[0].Note.Value)
	require.Equal(t, wtxmgr.ByteSeq{9}, res.DecryptedNewNotes[0].Note.Recipient)
	require.Equal(t, "tree2", res.CommitmentTree)
	require.Equal(t, []string{"bb"}, res.Nullifiers)
	require.Equal(t, []string{"00ff"}, res.WalletTransactions)
}

func TestCreateTransactionRequest(t *testing.T) {
	rc := &recordingCaller{result: `{"txid":"t","txhex":"00","nullifiers":["a,1"]}`}
	c := NewClient(rc)

	res, err := c.CreateTransaction(context.Background(), &CreateTxRequest{
		UTXOs: []UTXO{{
			TxID: "a", Vout: 1, Amount: 10,
			PrivateKey: wtxmgr.ByteSeq{1}, Script: wtxmgr.ByteSeq{2},
		}},
		SpendingKey:   "sk",
		ToAddress:     "ps1",
		ChangeAddress: "D1",
		Amount:        5,
		BlockHeight:   100,
	})
	require.NoError(t, err)
	require.Equal(t, "t", res.TxID)
	require.JSONEq(t, `[{
		"notes": null,
		"utxos": [{"txid":"a","vout":1,"amount":10,"private_key":[1],"script":[2]}],
		"extsk": "sk",
		"to_address": "ps1",
		"change_address": "D1",
		"amount": 5,
		"block_height": 100,
		"is_testnet": false
	}]`, rc.args)
}

func TestNextAddress(t *testing.T) {
	rc := &recordingCaller{
		result: `{"address":"ps1x","diversifier_index":[2,0,0,0,0,0,0,0,0,0,0]}`,
	}
	c := NewClient(rc)

	var from waddrmgr.DiversifierIndex
	from[0] = 1
	addr, err := c.NextAddress(context.Background(), "fvk", from, false)
	require.NoError(t, err)
	require.Equal(t, "ps1x", addr.Address)
	require.EqualValues(t, 2, addr.Diversifier[0])
	require.JSONEq(t, `["fvk", [1,0,0,0,0,0,0,0,0,0,0], false]`, rc.args)
}

func TestEngineErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	c := NewClient(&recordingCaller{err: boom})

	_, err := c.TxProgress(context.Background())
	require.ErrorIs(t, err, boom)

	_, err = c.HandleBlocks(context.Background(), &HandleBlocksRequest{})
	require.ErrorIs(t, err, boom)
}
