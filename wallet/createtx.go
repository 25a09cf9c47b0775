package wallet

import (
	"context"
	"fmt"
	"sort"

	"github.com/PIVX-Labs/pivx-shield/engine"
	"github.com/PIVX-Labs/pivx-shield/wallet/txauthor"
	"github.com/PIVX-Labs/pivx-shield/wallet/txrules"
	"github.com/PIVX-Labs/pivx-shield/wtxmgr"
)

// TxRequest describes a payment to build.
type TxRequest struct {
	// Address is the encoded shielded or transparent recipient.
	Address string

	// Amount is the value to send.  When the inputs cover the amount but
	// not the fee, the fee is taken out of the amount.
	Amount uint64

	// BlockHeight is the height the transaction is built for, usually
	// the chain tip.
	BlockHeight int32

	// UseShieldInputs spends unspent notes.  Otherwise UTXOs are spent
	// and change goes to TransparentChangeAddress.
	UseShieldInputs          bool
	UTXOs                    []engine.UTXO
	TransparentChangeAddress string
}

// byValue defines the methods needed to satisify sort.Interface to sort
// notes by their value.
type byValue []wtxmgr.SpendableNote

func (s byValue) Len() int           { return len(s) }
func (s byValue) Less(i, j int) bool { return s[i].Note.Value < s[j].Note.Value }
func (s byValue) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// eligibleNotes returns the unspent notes not reserved by a pending
// transaction, smallest first, the order the engine spends them in.
func (w *Wallet) eligibleNotes() []wtxmgr.SpendableNote {
	reserved := w.TxStore.PendingSpent()
	unspent := w.TxStore.UnspentNotes()

	eligible := make([]wtxmgr.SpendableNote, 0, len(unspent))
	for _, n := range unspent {
		if _, ok := reserved[n.Nullifier]; ok {
			continue
		}
		eligible = append(eligible, n)
	}
	sort.Stable(byValue(eligible))
	return eligible
}

// CreateTransaction builds and proves a payment.  The transaction is tracked
// as pending: the notes it spends stay reserved and the notes it pays back
// to the wallet count towards the pending balance until it is finalized,
// discarded or seen in a block.  The transaction is not broadcast.
func (w *Wallet) CreateTransaction(ctx context.Context, req *TxRequest) (*txauthor.AuthoredTx, error) {
	w.opMtx.Lock()
	defer w.opMtx.Unlock()

	extsk, err := w.Manager.SpendingKey()
	if err != nil {
		return nil, ErrViewOnly
	}
	if err := txrules.CheckChangeType(req.UseShieldInputs,
		req.TransparentChangeAddress); err != nil {

		return nil, err
	}

	testnet := w.Manager.IsTestnet()
	engineReq := &engine.CreateTxRequest{
		SpendingKey: extsk,
		ToAddress:   req.Address,
		Amount:      req.Amount,
		BlockHeight: req.BlockHeight,
		IsTestnet:   testnet,
	}

	inputs := txauthor.Inputs{Shielded: req.UseShieldInputs}
	if req.UseShieldInputs {
		notes := w.eligibleNotes()
		for _, n := range notes {
			inputs.Values = append(inputs.Values, n.Note.Value)
		}
		engineReq.Notes = notes
	} else {
		for _, u := range req.UTXOs {
			inputs.Values = append(inputs.Values, u.Amount)
		}
		engineReq.UTXOs = req.UTXOs
		engineReq.ChangeAddress = req.TransparentChangeAddress
	}
	_, _, fee, err := txauthor.SelectInputs(inputs, req.Amount,
		txrules.PaymentShape(req.Address, testnet))
	if err != nil {
		return nil, err
	}

	if req.UseShieldInputs {
		engineReq.ChangeAddress, err = w.newAddress(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to derive change address: %w",
				err)
		}
	}

	res, err := w.engine.CreateTransaction(ctx, engineReq)
	if err != nil {
		return nil, fmt.Errorf("unable to create transaction: %w", err)
	}

	incoming, err := w.decryptTransaction(ctx, res.TxHex)
	if err != nil {
		return nil, fmt.Errorf("unable to decrypt transaction %v: %w",
			res.TxID, err)
	}
	notes := make([]wtxmgr.Note, 0, len(incoming))
	for _, n := range incoming {
		notes = append(notes, n.Note)
	}

	authored := &txauthor.AuthoredTx{
		TxID:       res.TxID,
		Hex:        res.TxHex,
		SpentUTXOs: []txauthor.OutPoint{},
		Fee:        fee,
	}
	var spent []string
	if req.UseShieldInputs {
		spent = res.Nullifiers
	} else {
		authored.SpentUTXOs, err = txauthor.ParseOutPoints(res.Nullifiers)
		if err != nil {
			return nil, err
		}
	}

	w.stateMtx.Lock()
	err = w.TxStore.AddPending(res.TxID, spent, notes)
	w.stateMtx.Unlock()
	if err != nil {
		return nil, err
	}

	prometheusTxCreated.Inc()
	log.Infof("Created transaction %v paying %d to %v (%d notes spent, "+
		"%d notes returned)", res.TxID, req.Amount, req.Address,
		len(spent), len(notes))

	return authored, nil
}

// FinalizeTransaction marks a broadcast transaction as irrevocable.  The
// notes it spends leave the unspent set right away instead of when the
// transaction is seen in a block.
func (w *Wallet) FinalizeTransaction(txid string) error {
	w.opMtx.Lock()
	defer w.opMtx.Unlock()

	w.stateMtx.Lock()
	err := w.TxStore.Finalize(txid)
	w.stateMtx.Unlock()
	if err != nil {
		return err
	}
	log.Debugf("Finalized transaction %v", txid)
	return nil
}

// DiscardTransaction forgets a transaction that failed to broadcast,
// releasing the notes it reserved.
func (w *Wallet) DiscardTransaction(txid string) {
	w.opMtx.Lock()
	defer w.opMtx.Unlock()

	w.stateMtx.Lock()
	w.TxStore.Discard(txid)
	w.stateMtx.Unlock()
	log.Debugf("Discarded transaction %v", txid)
}
