package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/PIVX-Labs/pivx-shield/chain"
	"github.com/PIVX-Labs/pivx-shield/engine"
	"github.com/PIVX-Labs/pivx-shield/wtxmgr"
)

// errProverNotLoaded is returned when the engine reports it could not load
// the proving parameters.
var errProverNotLoaded = errors.New("unable to load sapling prover")

func loadProver(ctx context.Context, e engine.Engine, url string) error {
	var (
		ok  bool
		err error
	)
	if url != "" {
		ok, err = e.LoadProverWithURL(ctx, url)
	} else {
		ok, err = e.LoadProver(ctx)
	}
	if err != nil {
		return fmt.Errorf("unable to load sapling prover: %w", err)
	}
	if !ok {
		return errProverNotLoaded
	}
	log.Infof("Sapling prover loaded")
	return nil
}

// LoadProver loads the proving parameters needed to create transactions,
// from url when it is not empty.
func (w *Wallet) LoadProver(ctx context.Context, url string) error {
	return loadProver(ctx, w.engine, url)
}

// LoadProverWithBytes loads the proving parameters from memory.
func (w *Wallet) LoadProverWithBytes(ctx context.Context, output, spend []byte) error {
	ok, err := w.engine.LoadProverWithBytes(ctx, output, spend)
	if err != nil {
		return err
	}
	if !ok {
		return errProverNotLoaded
	}
	return nil
}

// ProverIsLoaded reports whether transactions can be proven.
func (w *Wallet) ProverIsLoaded(ctx context.Context) (bool, error) {
	return w.engine.ProverIsLoaded(ctx)
}

// TxStatus returns the progress of the proof being generated, from 0 to 1.
// It does not wait for a running transaction creation.
func (w *Wallet) TxStatus(ctx context.Context) (float64, error) {
	return w.engine.TxProgress(ctx)
}

// SaplingRoot returns the root of the wallet's commitment tree.
func (w *Wallet) SaplingRoot(ctx context.Context) (string, error) {
	return w.engine.SaplingRoot(ctx, w.CommitmentTree())
}

// DecryptTransactionOutputs returns the outputs of a raw transaction that
// pay this wallet.  The wallet state is not modified.
func (w *Wallet) DecryptTransactionOutputs(ctx context.Context, txHex string) ([]wtxmgr.SimplifiedNote, error) {
	notes, err := w.decryptTransaction(ctx, txHex)
	if err != nil {
		return nil, err
	}

	simplified := make([]wtxmgr.SimplifiedNote, 0, len(notes))
	for _, n := range notes {
		addr, err := w.encodeAddress(ctx, n.Note.Recipient)
		if err != nil {
			return nil, err
		}
		simplified = append(simplified, wtxmgr.SimplifiedNote{
			Recipient: addr,
			Value:     n.Note.Value,
		})
	}
	return simplified, nil
}

// decryptTransaction scans a single transaction against the current tree
// with an empty note set and returns the notes it pays to the wallet.
func (w *Wallet) decryptTransaction(ctx context.Context, txHex string) ([]wtxmgr.SpendableNote, error) {
	synced := w.Manager.SyncedTo()
	res, err := w.engine.HandleBlocks(ctx, &engine.HandleBlocksRequest{
		CommitmentTree: synced.CommitmentTree,
		Blocks: []chain.Block{{
			Height: synced.Height + 1,
			Txs:    []chain.Tx{{Hex: txHex}},
		}},
		ViewingKey: w.Manager.ViewingKey(),
		IsTestnet:  w.Manager.IsTestnet(),
	})
	if err != nil {
		return nil, err
	}
	return res.DecryptedNewNotes, nil
}
