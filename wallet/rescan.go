package wallet

import (
	"context"
	"fmt"
)

// ReloadFromCheckpoint rewinds the wallet to the closest checkpoint below
// height.  The unspent set, the nullifier history and the pending overlay
// are cleared, so the wallet must be synced again before it can spend.
func (w *Wallet) ReloadFromCheckpoint(ctx context.Context, height int32) error {
	w.opMtx.Lock()
	defer w.opMtx.Unlock()

	checkpoint, err := w.engine.ClosestCheckpoint(ctx, height,
		w.Manager.IsTestnet())
	if err != nil {
		return fmt.Errorf("unable to fetch checkpoint: %w", err)
	}

	w.stateMtx.Lock()
	w.TxStore.Reset()
	w.Manager.SetSyncedTo(*checkpoint)
	w.stateMtx.Unlock()

	prometheusReloads.Inc()
	prometheusSyncedHeight.Set(float64(checkpoint.Height))
	log.Infof("Reloaded wallet from checkpoint at height %d",
		checkpoint.Height)
	return nil
}

// RescanJob is a job to be processed by the rescan handlers.  The job
// rewinds the wallet to the checkpoint below Height and, when a chain
// client is attached, syncs it back to the tip.  After the rescan
// completes, its error result is sent on the err channel.
type RescanJob struct {
	Height int32
	err    chan error
}

// rescanBatch is a collection of one or more RescanJobs that were merged
// together before a rescan is performed.
type rescanBatch struct {
	height   int32
	errChans []chan error
}

// SubmitRescan submits a RescanJob to the rescan handlers.  A channel is
// returned with the final error of the rescan.  The channel is buffered
// and does not need to be read to prevent a deadlock.
func (w *Wallet) SubmitRescan(job *RescanJob) <-chan error {
	errChan := make(chan error, 1)
	job.err = errChan
	select {
	case w.rescanAddJob <- job:
	case <-w.quitChan():
		errChan <- ErrWalletShuttingDown
	}
	return errChan
}

// Rescan rewinds the wallet to the checkpoint below height through the
// rescan handlers and waits for the result.  Requests made while another
// rescan runs are merged into the next one.  The wallet must be started.
func (w *Wallet) Rescan(ctx context.Context, height int32) error {
	w.quitMu.Lock()
	started := w.started
	w.quitMu.Unlock()
	if !started {
		return ErrWalletNotStarted
	}

	select {
	case err := <-w.SubmitRescan(&RescanJob{Height: height}):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// batch creates the rescanBatch for a single rescan job.
func (job *RescanJob) batch() *rescanBatch {
	return &rescanBatch{
		height:   job.Height,
		errChans: []chan error{job.err},
	}
}

// merge merges the work from job into b, setting the rewind height to the
// minimum of the two.
func (b *rescanBatch) merge(job *RescanJob) {
	if job.Height < b.height {
		b.height = job.Height
	}
	b.errChans = append(b.errChans, job.err)
}

// done iterates through all error channels, duplicating sending the error
// to inform callers that the rescan finished (or could not complete due
// to an error).
func (b *rescanBatch) done(err error) {
	for _, c := range b.errChans {
		c <- err
	}
}

// rescanBatchHandler handles incoming rescan requests, serializing rescan
// submissions, and possibly batching many waiting requests together so they
// can be handled by a single rescan after the current one completes.
func (w *Wallet) rescanBatchHandler() {
	defer w.wg.Done()

	var curBatch, nextBatch *rescanBatch
	quit := w.quitChan()

	for {
		select {
		case job := <-w.rescanAddJob:
			if curBatch == nil {
				// Set current batch as this job and send
				// request.
				curBatch = job.batch()
				select {
				case w.rescanBatch <- curBatch:
				case <-quit:
					job.err <- ErrWalletShuttingDown
					return
				}
			} else {
				// Create next batch if it doesn't exist, or
				// merge the job.
				if nextBatch == nil {
					nextBatch = job.batch()
				} else {
					nextBatch.merge(job)
				}
			}

		case err := <-w.rescanFinished:
			if curBatch == nil {
				log.Warnf("Received rescan finished " +
					"notification but no rescan " +
					"currently running")
				continue
			}
			curBatch.done(err)

			curBatch, nextBatch = nextBatch, nil

			if curBatch != nil {
				select {
				case w.rescanBatch <- curBatch:
				case <-quit:
					curBatch.done(ErrWalletShuttingDown)
					return
				}
			}

		case <-quit:
			if curBatch != nil {
				curBatch.done(ErrWalletShuttingDown)
			}
			if nextBatch != nil {
				nextBatch.done(ErrWalletShuttingDown)
			}
			return
		}
	}
}

// rescanRPCHandler reads batch jobs sent by rescanBatchHandler and performs
// the rescan.  It is unable to cancel a running rescan other than through
// wallet shutdown.
func (w *Wallet) rescanRPCHandler() {
	defer w.wg.Done()

	ctx, cancel := w.quitContext()
	defer cancel()
	quit := w.quitChan()

	for {
		select {
		case batch := <-w.rescanBatch:
			log.Infof("Rescanning from checkpoint below height %d "+
				"for %d request(s)", batch.height, len(batch.errChans))

			err := w.rescan(ctx, batch.height)
			if err != nil {
				log.Errorf("Rescan from height %d failed: %v",
					batch.height, err)
			}
			select {
			case w.rescanFinished <- err:
			case <-quit:
				return
			}

		case <-quit:
			return
		}
	}
}

func (w *Wallet) rescan(ctx context.Context, height int32) error {
	if err := w.ReloadFromCheckpoint(ctx, height); err != nil {
		return err
	}
	chainClient := w.ChainClient()
	if chainClient == nil {
		return nil
	}
	return w.SyncToTip(ctx, chainClient, DefaultCatchUpBatch)
}
