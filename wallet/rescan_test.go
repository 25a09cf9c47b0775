package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/PIVX-Labs/pivx-shield/chain"
	"github.com/PIVX-Labs/pivx-shield/waddrmgr"
	"github.com/stretchr/testify/require"
)

func TestReloadFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	e.checkpoints[40] = waddrmgr.SyncState{Height: 40, CommitmentTree: "tree40"}
	w := testWallet(t, e, false)

	e.addNote("aa", "nf1", 3000000)
	_, err := w.HandleBlocks(ctx, []chain.Block{block(101, "aa")})
	require.NoError(t, err)
	require.NoError(t, w.TxStore.AddPending("tx1", []string{"nf1"}, nil))

	require.NoError(t, w.ReloadFromCheckpoint(ctx, 50))
	require.Equal(t, int32(40), w.LastSyncedHeight())
	require.Equal(t, "tree40", w.CommitmentTree())
	require.Zero(t, w.Balance())
	require.Empty(t, w.UnspentNotes())
	require.False(t, w.IsOwnNullifier("nf1"))
	require.Empty(t, w.TxStore.PendingTxIDs())
	require.Zero(t, w.PendingBalance())

	// The notes come back once the wallet is synced again.
	_, err = w.HandleBlocks(ctx, []chain.Block{block(101, "aa")})
	require.NoError(t, err)
	require.Equal(t, uint64(3000000), w.Balance())
}

func TestReloadFromCheckpointEngineFailure(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	w := testWallet(t, e, true)

	e.addNote("aa", "nf1", 10)
	_, err := w.HandleBlocks(ctx, []chain.Block{block(101, "aa")})
	require.NoError(t, err)

	e.checkpoints = nil
	e.checkpointErr = errEngine
	require.ErrorIs(t, w.ReloadFromCheckpoint(ctx, 50), errEngine)
	require.Equal(t, uint64(10), w.Balance())
	require.Equal(t, int32(101), w.LastSyncedHeight())
}

func TestSubmitRescan(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	e.checkpoints[40] = waddrmgr.SyncState{Height: 40, CommitmentTree: "tree40"}
	w := testWallet(t, e, true)
	w.Start()

	client := newMockChainClient()
	for h := int32(41); h <= 105; h++ {
		client.addBlock(h)
	}
	e.addNote("aa", "nf1", 64)
	client.addBlock(106, "aa")

	_, err := w.HandleBlocks(ctx, []chain.Block{block(101)})
	require.NoError(t, err)

	// Without a chain client the rescan only rewinds.
	err = waitRescan(t, w.SubmitRescan(&RescanJob{Height: 50}))
	require.NoError(t, err)
	require.Equal(t, int32(40), w.LastSyncedHeight())

	w.chainClientLock.Lock()
	w.chainClient = client
	w.chainClientLock.Unlock()

	err = waitRescan(t, w.SubmitRescan(&RescanJob{Height: 60}))
	require.NoError(t, err)
	require.Equal(t, int32(106), w.LastSyncedHeight())
	require.Equal(t, uint64(64), w.Balance())
}

func TestRescan(t *testing.T) {
	ctx := context.Background()
	e := newFakeEngine()
	w := testWallet(t, e, true)

	e.addNote("aa", "nf1", 10)
	_, err := w.HandleBlocks(ctx, []chain.Block{block(101, "aa")})
	require.NoError(t, err)

	require.ErrorIs(t, w.Rescan(ctx, 150), ErrWalletNotStarted)
	require.Equal(t, int32(101), w.LastSyncedHeight())

	w.Start()
	require.NoError(t, w.Rescan(ctx, 150))
	require.Equal(t, int32(100), w.LastSyncedHeight())
	require.Zero(t, w.Balance())

	e.mu.Lock()
	e.checkpointErr = errEngine
	e.mu.Unlock()
	require.ErrorIs(t, w.Rescan(ctx, 150), errEngine)
}

func TestSubmitRescanAfterStop(t *testing.T) {
	w := testWallet(t, newFakeEngine(), true)
	w.Start()
	w.Stop()

	err := waitRescan(t, w.SubmitRescan(&RescanJob{Height: 50}))
	require.ErrorIs(t, err, ErrWalletShuttingDown)
}

func TestRescanBatchMerge(t *testing.T) {
	job1 := &RescanJob{Height: 80, err: make(chan error, 1)}
	job2 := &RescanJob{Height: 30, err: make(chan error, 1)}
	job3 := &RescanJob{Height: 60, err: make(chan error, 1)}

	b := job1.batch()
	b.merge(job2)
	b.merge(job3)
	require.Equal(t, int32(30), b.height)
	require.Len(t, b.errChans, 3)

	b.done(errEngine)
	for _, job := range []*RescanJob{job1, job2, job3} {
		require.ErrorIs(t, <-job.err, errEngine)
	}
}

func waitRescan(t *testing.T, errChan <-chan error) error {
	t.Helper()

	select {
	case err := <-errChan:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("rescan did not finish")
		return nil
	}
}
