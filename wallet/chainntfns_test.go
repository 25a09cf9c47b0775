package wallet

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/PIVX-Labs/pivx-shield/chain"
	"github.com/PIVX-Labs/pivx-shield/wtxmgr"
	"github.com/stretchr/testify/require"
)

func TestHandleBlocksReceiveAndSpend(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	w := testWallet(t, e, true)

	e.addNote("aa", "nf1", 1000)
	txs, err := w.HandleBlocks(ctx, []chain.Block{block(101, "aa", "bb")})
	require.NoError(t, err)
	require.Equal(t, []string{"aa"}, txs)

	require.Equal(t, uint64(1000), w.Balance())
	require.Equal(t, int32(101), w.LastSyncedHeight())
	require.Equal(t, "tree101", w.CommitmentTree())
	require.True(t, w.IsOwnNullifier("nf1"))

	note, ok := w.NoteFromNullifier("nf1")
	require.True(t, ok)
	require.Equal(t, wtxmgr.SimplifiedNote{
		Recipient: "ptestsapling1" + "0102",
		Value:     1000,
	}, note)

	e.addSpend("cc", "nf1")
	_, err = w.HandleBlock(ctx, &chain.Block{Height: 102,
		Txs: []chain.Tx{{Hex: "cc", TxID: "id-cc"}}})
	require.NoError(t, err)

	require.Zero(t, w.Balance())
	require.Equal(t, int32(102), w.LastSyncedHeight())
	require.True(t, w.IsOwnNullifier("nf1"))
}

func TestHandleBlocksReadersSeeCommittedState(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	w := testWallet(t, e, true)

	const numBlocks = 500
	for i := 1; i <= numBlocks; i++ {
		e.addNote(fmt.Sprintf("tx%d", i), fmt.Sprintf("nf%d", i), 1000)
	}

	// Every block pays one note of 1000, so the balance always equals
	// 1000 for each block above the checkpoint.
	var (
		torn int
		wg   sync.WaitGroup
		quit = make(chan struct{})
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-quit:
				return
			default:
			}

			balance := w.Balance()
			height := w.LastSyncedHeight()
			if balance > uint64(height-100)*1000 {
				torn++
			}

			status := w.Status()
			if status.Balance != uint64(status.Height-100)*1000 ||
				status.CommitmentTree != fmt.Sprintf("tree%d",
					status.Height) {

				torn++
			}
		}
	}()

	for i := 1; i <= numBlocks; i++ {
		_, err := w.HandleBlock(ctx, &chain.Block{
			Height: int32(100 + i),
			Txs: []chain.Tx{{
				Hex:  fmt.Sprintf("tx%d", i),
				TxID: fmt.Sprintf("id%d", i),
			}},
		})
		require.NoError(t, err)
	}
	require.NoError(t, w.ReloadFromCheckpoint(ctx, 150))

	close(quit)
	wg.Wait()

	require.Zero(t, torn)
	require.Equal(t, Status{
		Height:         100,
		CommitmentTree: "tree100",
	}, w.Status())
}

func TestHandleBlocksEmpty(t *testing.T) {
	e := newFakeEngine()
	w := testWallet(t, e, true)

	txs, err := w.HandleBlocks(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, txs)
	require.NotNil(t, txs)
	require.Zero(t, e.scanCount())
	require.Equal(t, int32(100), w.LastSyncedHeight())
}

func TestHandleBlocksOrdering(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	w := testWallet(t, e, true)

	e.addNote("aa", "nf1", 1000)
	_, err := w.HandleBlocks(ctx, []chain.Block{block(101, "aa")})
	require.NoError(t, err)

	tests := []struct {
		name    string
		heights []int32
	}{
		{"already processed", []int32{101}},
		{"below synced height", []int32{90, 102}},
		{"duplicate height", []int32{102, 102}},
		{"decreasing", []int32{103, 102}},
	}
	for _, test := range tests {
		blocks := make([]chain.Block, 0, len(test.heights))
		for _, h := range test.heights {
			blocks = append(blocks, block(h, "aa"))
		}

		_, err := w.HandleBlocks(ctx, blocks)
		require.ErrorIs(t, err, ErrOrdering, test.name)
	}

	require.Equal(t, 1, e.scanCount())
	require.Equal(t, uint64(1000), w.Balance())
	require.Equal(t, int32(101), w.LastSyncedHeight())
	require.Equal(t, "tree101", w.CommitmentTree())
}

func TestHandleBlocksEngineFailure(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	w := testWallet(t, e, true)

	e.addNote("aa", "nf1", 1000)
	e.scanErr = errEngine

	_, err := w.HandleBlocks(ctx, []chain.Block{block(101, "aa")})
	require.ErrorIs(t, err, errEngine)
	require.Zero(t, w.Balance())
	require.Equal(t, int32(100), w.LastSyncedHeight())
	require.Equal(t, "tree100", w.CommitmentTree())
	require.False(t, w.IsOwnNullifier("nf1"))
}

func TestHandleBlocksGapAllowed(t *testing.T) {
	w := testWallet(t, newFakeEngine(), true)

	_, err := w.HandleBlocks(context.Background(),
		[]chain.Block{block(105), block(110)})
	require.NoError(t, err)
	require.Equal(t, int32(110), w.LastSyncedHeight())
}

func TestHandleBlocksCachesAddresses(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	w := testWallet(t, e, true)

	e.addNote("aa", "nf1", 10)
	e.addNote("bb", "nf2", 20)
	_, err := w.HandleBlocks(ctx, []chain.Block{block(101, "aa"),
		block(102, "bb")})
	require.NoError(t, err)

	require.Equal(t, uint64(30), w.Balance())
	require.Equal(t, 1, e.encodes)
}

func TestSyncToTip(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	w := testWallet(t, e, true)

	client := newMockChainClient()
	for h := int32(101); h <= 110; h++ {
		client.addBlock(h)
	}
	e.addNote("aa", "nf1", 500)
	client.addBlock(111, "aa")

	require.NoError(t, w.SyncToTip(ctx, client, 4))
	require.Equal(t, int32(111), w.LastSyncedHeight())
	require.Equal(t, uint64(500), w.Balance())
	require.Equal(t, 3, e.scanCount())

	// Nothing to do once synced.
	require.NoError(t, w.SyncToTip(ctx, client, 4))
	require.Equal(t, 3, e.scanCount())
}

func TestSyncToTipMissingBlock(t *testing.T) {
	ctx := context.Background()
	w := testWallet(t, newFakeEngine(), true)

	client := newMockChainClient()
	client.addBlock(101)
	client.addBlock(103)

	err := w.SyncToTip(ctx, client, 10)
	require.Error(t, err)
	require.Equal(t, int32(100), w.LastSyncedHeight())
}

func TestChainNotifications(t *testing.T) {
	e := newFakeEngine()
	w := testWallet(t, e, true)
	w.Start()

	client := newMockChainClient()
	client.addBlock(101)
	client.addBlock(102)
	require.NoError(t, w.SynchronizeRPC(client))
	require.Equal(t, client, w.ChainClient())

	client.notifications <- chain.ClientConnected{}
	require.Eventually(t, func() bool {
		return w.LastSyncedHeight() == 102
	}, 5*time.Second, 10*time.Millisecond)

	// A block announced ahead of the wallet pulls the gap first.
	client.addBlock(103)
	e.addNote("dd", "nf4", 42)
	b := client.addBlock(104, "dd")
	client.notifications <- chain.BlockConnected(*b)

	require.Eventually(t, func() bool {
		return w.LastSyncedHeight() == 104
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return w.Balance() == 42
	}, 5*time.Second, 10*time.Millisecond)

	// Stopping the wallet shuts the chain client down.
	w.Stop()
	require.True(t, client.isShutdown())
	require.Nil(t, w.ChainClient())
}
