package waddrmgr

import "sync"

// SyncState houses the sync state of the manager: the height of the last
// block the wallet processed and the commitment tree digest after it.
type SyncState struct {
	// Height is the height of the last processed block.
	Height int32

	// CommitmentTree is the opaque hex encoded note commitment tree
	// produced by the engine.
	CommitmentTree string
}

// Manager holds the key material and synchronization progress of a single
// shielded account.  The viewing key is always present, the spending key is
// optional and a manager without one is watching-only.
type Manager struct {
	mtx sync.RWMutex

	spendingKey string
	viewingKey  string
	testnet     bool
	diversifier DiversifierIndex
	syncState   SyncState
}

// New returns a manager bound to the given viewing key.  A spending key can
// be added later with SetSpendingKey.
func New(viewingKey string, testnet bool, state SyncState) (*Manager, error) {
	if viewingKey == "" {
		return nil, managerError(ErrInvalidKey, "missing viewing key", nil)
	}
	return &Manager{
		viewingKey: viewingKey,
		testnet:    testnet,
		syncState:  state,
	}, nil
}

// WatchOnly returns true if the manager holds no spending key, and false
// otherwise.
func (m *Manager) WatchOnly() bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.watchOnly()
}

// watchOnly returns true if the manager holds no spending key.
//
// NOTE: This method requires the Manager's lock to be held.
func (m *Manager) watchOnly() bool {
	return m.spendingKey == ""
}

// SpendingKey returns the encoded extended spending key.  It fails with
// ErrWatchingOnly on a view-only manager.
func (m *Manager) SpendingKey() (string, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if m.watchOnly() {
		return "", managerError(ErrWatchingOnly, errWatchingOnly, nil)
	}
	return m.spendingKey, nil
}

// SetSpendingKey adds spending authority to a watching-only manager.
// derivedViewingKey is the viewing key derived from spendingKey and must
// match the one the manager is bound to.
func (m *Manager) SetSpendingKey(spendingKey, derivedViewingKey string) error {
	if spendingKey == "" {
		return managerError(ErrInvalidKey, "missing spending key", nil)
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	if !m.watchOnly() {
		return managerError(ErrSpendingKeyLoaded,
			"a spending key is already loaded", nil)
	}
	if derivedViewingKey != m.viewingKey {
		return managerError(ErrAuthorityMismatch,
			"spending key does not match the wallet viewing key", nil)
	}
	m.spendingKey = spendingKey

	log.Infof("Spending key loaded")
	return nil
}

// ViewingKey returns the encoded extended full viewing key.
func (m *Manager) ViewingKey() string {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.viewingKey
}

// IsTestnet returns whether the manager derives testnet addresses.
func (m *Manager) IsTestnet() bool {
	return m.testnet
}

// SyncedTo returns details about the block height and commitment tree the
// manager is synced through.
func (m *Manager) SyncedTo() SyncState {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.syncState
}

// SetSyncedTo marks the manager as being in sync with the given state.
// Moving backwards is allowed since checkpoint reloads rewind the wallet.
func (m *Manager) SetSyncedTo(state SyncState) {
	m.mtx.Lock()
	m.syncState = state
	m.mtx.Unlock()
}

// DiversifierIndex returns the index used to derive the most recent payment
// address.
func (m *Manager) DiversifierIndex() DiversifierIndex {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.diversifier
}

// SetDiversifierIndex records the index of a newly derived address.  The
// index never moves backwards.
func (m *Manager) SetDiversifierIndex(d DiversifierIndex) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if d.Cmp(m.diversifier) < 0 {
		return managerError(ErrDiversifierRegression,
			"diversifier index moved backwards", nil)
	}
	m.diversifier = d
	return nil
}

// Restore replaces the sync state and the diversifier index with values
// read back from a snapshot.  Unlike SetDiversifierIndex the index may move
// backwards.
func (m *Manager) Restore(state SyncState, d DiversifierIndex) {
	m.mtx.Lock()
	m.syncState = state
	m.diversifier = d
	m.mtx.Unlock()
}

// CheckViewingKey returns an ErrAuthorityMismatch error unless viewingKey is
// the key the manager is bound to.
func (m *Manager) CheckViewingKey(viewingKey string) error {
	if viewingKey != m.ViewingKey() {
		return managerError(ErrAuthorityMismatch,
			"viewing key does not match the wallet viewing key", nil)
	}
	return nil
}
