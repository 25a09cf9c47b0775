package wallet

import (
	"context"
	"fmt"

	"github.com/PIVX-Labs/pivx-shield/chain"
	"github.com/PIVX-Labs/pivx-shield/engine"
	"github.com/PIVX-Labs/pivx-shield/waddrmgr"
	"github.com/PIVX-Labs/pivx-shield/wtxmgr"
)

// DefaultCatchUpBatch is the number of blocks handed to the engine at once
// while catching up with the chain.
const DefaultCatchUpBatch = 100

// checkOrdering verifies that blocks start above syncedHeight and strictly
// increase.
func checkOrdering(syncedHeight int32, blocks []chain.Block) error {
	prev := syncedHeight
	for i := range blocks {
		if blocks[i].Height <= prev {
			return fmt.Errorf("%w: block %d follows height %d",
				ErrOrdering, blocks[i].Height, prev)
		}
		prev = blocks[i].Height
	}
	return nil
}

// HandleBlocks ingests an ordered batch of blocks.  Every new note found in
// the batch joins the unspent set and the nullifier history, notes whose
// nullifier is revealed leave the unspent set, pending transactions
// included in the batch are dropped and the sync state advances to the
// last block.  Nothing changes if the batch is out of order or the engine
// fails.  The raw transactions relevant to the wallet are returned.
func (w *Wallet) HandleBlocks(ctx context.Context, blocks []chain.Block) ([]string, error) {
	if len(blocks) == 0 {
		return []string{}, nil
	}

	w.opMtx.Lock()
	defer w.opMtx.Unlock()

	synced := w.Manager.SyncedTo()
	if err := checkOrdering(synced.Height, blocks); err != nil {
		return nil, err
	}

	res, err := w.engine.HandleBlocks(ctx, &engine.HandleBlocksRequest{
		CommitmentTree: synced.CommitmentTree,
		Blocks:         blocks,
		ViewingKey:     w.Manager.ViewingKey(),
		IsTestnet:      w.Manager.IsTestnet(),
		Notes:          w.TxStore.UnspentNotes(),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to scan blocks %d-%d: %w",
			blocks[0].Height, blocks[len(blocks)-1].Height, err)
	}

	received := make(map[string]wtxmgr.SimplifiedNote, len(res.DecryptedNewNotes))
	for _, n := range res.DecryptedNewNotes {
		addr, err := w.encodeAddress(ctx, n.Note.Recipient)
		if err != nil {
			return nil, err
		}
		received[n.Nullifier] = wtxmgr.SimplifiedNote{
			Recipient: addr,
			Value:     n.Note.Value,
		}
	}

	unspent := make([]wtxmgr.SpendableNote, 0,
		len(res.DecryptedNotes)+len(res.DecryptedNewNotes))
	unspent = append(unspent, res.DecryptedNotes...)
	unspent = append(unspent, res.DecryptedNewNotes...)

	var confirmed []string
	for i := range blocks {
		for _, tx := range blocks[i].Txs {
			confirmed = append(confirmed, tx.TxID)
		}
	}

	last := blocks[len(blocks)-1].Height

	w.stateMtx.Lock()
	err = w.TxStore.ApplyBlocks(&wtxmgr.BlockUpdate{
		Unspent:   unspent,
		Received:  received,
		Spent:     res.Nullifiers,
		Confirmed: confirmed,
	})
	if err == nil {
		w.Manager.SetSyncedTo(waddrmgr.SyncState{
			Height:         last,
			CommitmentTree: res.CommitmentTree,
		})
	}
	w.stateMtx.Unlock()
	if err != nil {
		return nil, err
	}

	prometheusBlocksProcessed.Add(float64(len(blocks)))
	prometheusSyncedHeight.Set(float64(last))
	log.Debugf("Processed blocks %d-%d: %d new notes, %d nullifiers, "+
		"%d wallet transactions", blocks[0].Height, last,
		len(res.DecryptedNewNotes), len(res.Nullifiers),
		len(res.WalletTransactions))

	return res.WalletTransactions, nil
}

// HandleBlock ingests a single block.
func (w *Wallet) HandleBlock(ctx context.Context, block *chain.Block) ([]string, error) {
	return w.HandleBlocks(ctx, []chain.Block{*block})
}

// SynchronizeRPC associates the wallet with the consensus RPC client,
// synchronizes the wallet with the latest changes to the blockchain, and
// continuously updates the wallet through RPC notifications.
//
// This method is unstable and will be removed when all syncing logic is
// moved outside of the wallet package.
func (w *Wallet) SynchronizeRPC(chainClient chain.Interface) error {
	w.quitMu.Lock()
	select {
	case <-w.quit:
		w.quitMu.Unlock()
		return ErrWalletShuttingDown
	default:
	}
	w.quitMu.Unlock()

	w.chainClientLock.Lock()
	w.chainClient = chainClient
	w.chainClientLock.Unlock()

	if err := chainClient.Start(); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.handleChainNotifications()
	return nil
}

// ChainClient returns the optional consensus RPC client associated with the
// wallet.
func (w *Wallet) ChainClient() chain.Interface {
	w.chainClientLock.Lock()
	defer w.chainClientLock.Unlock()

	return w.chainClient
}

func (w *Wallet) requireChainClient() (chain.Interface, error) {
	chainClient := w.ChainClient()
	if chainClient == nil {
		return nil, ErrNoChainClient
	}
	return chainClient, nil
}

func (w *Wallet) handleChainNotifications() {
	defer w.wg.Done()

	chainClient, err := w.requireChainClient()
	if err != nil {
		log.Errorf("handleChainNotifications called without RPC client")
		return
	}

	ctx, cancel := w.quitContext()
	defer cancel()

	for {
		select {
		case n, ok := <-chainClient.Notifications():
			if !ok {
				return
			}

			var notificationName string
			var err error
			switch n := n.(type) {
			case chain.ClientConnected:
				// When the wallet has connected to the node it
				// needs to catch up with the chain before
				// following new blocks.
				notificationName = "client connected"
				err = w.SyncToTip(ctx, chainClient, DefaultCatchUpBatch)

			case chain.BlockConnected:
				notificationName = "block connected"
				err = w.connectBlock(ctx, chainClient, chain.Block(n))
			}
			if err != nil {
				if w.ShuttingDown() {
					return
				}
				log.Errorf("Unable to process chain backend "+
					"%v notification: %v", notificationName,
					err)
			}
		case <-w.quitChan():
			return
		}
	}
}

// connectBlock ingests a block announced by the chain backend.  Blocks the
// wallet already processed are ignored and gaps are filled from the
// backend first.
func (w *Wallet) connectBlock(ctx context.Context, client chain.Interface,
	b chain.Block) error {

	synced := w.LastSyncedHeight()
	switch {
	case b.Height <= synced:
		return nil
	case b.Height > synced+1:
		if err := w.catchUp(ctx, client, b.Height-1,
			DefaultCatchUpBatch); err != nil {

			return err
		}
	}
	_, err := w.HandleBlock(ctx, &b)
	return err
}

// SyncToTip fetches every block above the last processed one up to the
// backend's best block and ingests them in batches of batchSize.
func (w *Wallet) SyncToTip(ctx context.Context, client chain.Interface,
	batchSize int) error {

	best, err := client.GetBestBlockHeight(ctx)
	if err != nil {
		return err
	}
	return w.catchUp(ctx, client, best, batchSize)
}

func (w *Wallet) catchUp(ctx context.Context, client chain.Interface,
	endHeight int32, batchSize int) error {

	if batchSize <= 0 {
		batchSize = DefaultCatchUpBatch
	}
	if w.LastSyncedHeight() >= endHeight {
		return nil
	}

	log.Infof("Catching up blocks to height %d, this might take a while",
		endHeight)

	for {
		synced := w.LastSyncedHeight()
		if synced >= endHeight {
			break
		}

		stop := synced + int32(batchSize)
		if stop > endHeight {
			stop = endHeight
		}
		blocks := make([]chain.Block, 0, stop-synced)
		for height := synced + 1; height <= stop; height++ {
			b, err := client.GetBlock(ctx, height)
			if err != nil {
				return fmt.Errorf("unable to fetch block %d: %w",
					height, err)
			}
			blocks = append(blocks, *b)
		}

		if _, err := w.HandleBlocks(ctx, blocks); err != nil {
			return err
		}
	}

	log.Info("Done catching up blocks")
	return nil
}
