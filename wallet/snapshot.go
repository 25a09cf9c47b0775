package wallet

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PIVX-Labs/pivx-shield/engine"
	"github.com/PIVX-Labs/pivx-shield/waddrmgr"
	"github.com/PIVX-Labs/pivx-shield/wtxmgr"
)

// CurrentVersion is the snapshot version written by Save.
var CurrentVersion = getLatestVersion()

// ErrUnknownVersion is returned when a snapshot was written by a newer
// version of the wallet.
var ErrUnknownVersion = errors.New("unknown wallet snapshot version")

// snapshotRecord is the serialized form of a wallet.  It holds public data
// only: the spending key must be provided again to spend from a loaded
// wallet.  Pending transactions are never saved.
type snapshotRecord struct {
	Version            uint32                           `json:"version"`
	ViewingKey         string                           `json:"extfvk"`
	LastProcessedBlock int32                            `json:"lastProcessedBlock"`
	CommitmentTree     string                           `json:"commitmentTree"`
	DiversifierIndex   waddrmgr.DiversifierIndex        `json:"diversifierIndex"`
	UnspentNotes       []wtxmgr.SpendableNote           `json:"unspentNotes"`
	IsTestnet          bool                             `json:"isTestnet"`
	NullifierHistory   map[string]wtxmgr.SimplifiedNote `json:"mapNullifierNote"`
}

// parseSnapshot decodes a record and upgrades it to CurrentVersion.  The
// version the record was written at is returned alongside.
func parseSnapshot(data []byte) (*snapshotRecord, uint32, error) {
	var r snapshotRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, 0, fmt.Errorf("malformed wallet snapshot: %w", err)
	}
	if r.ViewingKey == "" {
		return nil, 0, errors.New("malformed wallet snapshot: missing " +
			"viewing key")
	}
	version := r.Version
	if err := upgradeSnapshot(&r); err != nil {
		return nil, 0, err
	}
	return &r, version, nil
}

func (r *snapshotRecord) syncState() waddrmgr.SyncState {
	return waddrmgr.SyncState{
		Height:         r.LastProcessedBlock,
		CommitmentTree: r.CommitmentTree,
	}
}

// Save serializes the wallet at CurrentVersion.
func (w *Wallet) Save() ([]byte, error) {
	w.stateMtx.RLock()
	synced := w.Manager.SyncedTo()
	r := &snapshotRecord{
		Version:            CurrentVersion,
		ViewingKey:         w.Manager.ViewingKey(),
		LastProcessedBlock: synced.Height,
		CommitmentTree:     synced.CommitmentTree,
		DiversifierIndex:   w.Manager.DiversifierIndex(),
		UnspentNotes:       w.TxStore.UnspentNotes(),
		IsTestnet:          w.Manager.IsTestnet(),
		NullifierHistory:   w.TxStore.History(),
	}
	w.stateMtx.RUnlock()

	return json.Marshal(r)
}

// Load creates a view-only wallet from a snapshot.  The returned flag
// reports whether the snapshot was written at CurrentVersion.  When it is
// false the wallet should be rescanned from its checkpoint.
func Load(e engine.Engine, data []byte) (*Wallet, bool, error) {
	r, version, err := parseSnapshot(data)
	if err != nil {
		return nil, false, err
	}

	mgr, err := waddrmgr.New(r.ViewingKey, r.IsTestnet, r.syncState())
	if err != nil {
		return nil, false, err
	}
	mgr.Restore(r.syncState(), r.DiversifierIndex)

	store := wtxmgr.New()
	store.Restore(r.UnspentNotes, r.NullifierHistory)

	log.Infof("Loaded wallet snapshot version %d at height %d",
		version, r.LastProcessedBlock)

	return newWallet(e, mgr, store), version == CurrentVersion, nil
}

// LoadSnapshot replaces the state of w with a snapshot of the same wallet.
// A snapshot bound to another viewing key is rejected and w is left
// untouched.  The spending key, if any, is kept and the pending overlay is
// cleared.  The returned flag is as in Load.
func (w *Wallet) LoadSnapshot(data []byte) (bool, error) {
	r, version, err := parseSnapshot(data)
	if err != nil {
		return false, err
	}
	if err := w.Manager.CheckViewingKey(r.ViewingKey); err != nil {
		return false, err
	}

	w.opMtx.Lock()
	defer w.opMtx.Unlock()

	w.stateMtx.Lock()
	w.Manager.Restore(r.syncState(), r.DiversifierIndex)
	w.TxStore.Restore(r.UnspentNotes, r.NullifierHistory)
	w.stateMtx.Unlock()

	prometheusSyncedHeight.Set(float64(r.LastProcessedBlock))
	log.Infof("Loaded wallet snapshot version %d at height %d",
		version, r.LastProcessedBlock)

	return version == CurrentVersion, nil
}
