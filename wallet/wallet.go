package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PIVX-Labs/pivx-shield/chain"
	"github.com/PIVX-Labs/pivx-shield/engine"
	"github.com/PIVX-Labs/pivx-shield/waddrmgr"
	"github.com/PIVX-Labs/pivx-shield/wtxmgr"
	"github.com/jellydator/ttlcache/v3"
)

const (
	// MainnetCoinType is the registered coin type of the main network.
	MainnetCoinType = 119

	// TestnetCoinType is the coin type selecting the test network.
	TestnetCoinType = 1

	// addressCacheTTL is how long encoded payment addresses are kept.
	addressCacheTTL = 10 * time.Minute
)

var (
	// ErrNoKeyMaterial is returned by Create when none of seed, spending
	// key and viewing key is given.
	ErrNoKeyMaterial = errors.New("at least one among seed, spending " +
		"key and viewing key must be provided")

	// ErrSeedAndSpendingKey is returned by Create when both a seed and a
	// spending key are given.
	ErrSeedAndSpendingKey = errors.New("provide either a seed or a " +
		"spending key, not both")

	// ErrOrdering is returned when blocks are not provided in strictly
	// increasing height order starting above the last processed block.
	ErrOrdering = errors.New("blocks must be provided in monotonically " +
		"increasing order")

	// ErrViewOnly is returned when an operation needs spending authority
	// the wallet does not hold.
	ErrViewOnly = errors.New("cannot create a transaction in view-only mode")

	// ErrWalletShuttingDown is returned for work submitted to a stopped
	// wallet.
	ErrWalletShuttingDown = errors.New("wallet shutting down")

	// ErrWalletNotStarted is returned for work that needs the wallet
	// goroutines before Start was called.
	ErrWalletNotStarted = errors.New("wallet not started")

	// ErrNoChainClient is returned by operations that need a block source
	// when none is attached.
	ErrNoChainClient = errors.New("no chain client attached")
)

// Config describes a wallet to create.
type Config struct {
	// Engine performs every cryptographic operation.
	Engine engine.Engine

	// Seed, SpendingKey and ViewingKey are the key material.  At least
	// one must be set and Seed excludes SpendingKey.  A wallet created
	// from a viewing key alone is view-only.
	Seed        []byte
	SpendingKey string
	ViewingKey  string

	// BirthdayHeight is the height the wallet was created at.  Syncing
	// starts from the closest checkpoint below it.
	BirthdayHeight int32

	// CoinType selects the network, TestnetCoinType being testnet.
	CoinType uint32

	// AccountIndex selects the account derived from Seed.
	AccountIndex uint32

	// LoadProver loads the proving parameters during creation, from
	// ProverURL when set.
	LoadProver bool
	ProverURL  string
}

// Wallet is the state engine of a single shielded account.  Mutating
// operations are serialized while balance and history queries proceed
// concurrently.
type Wallet struct {
	Manager *waddrmgr.Manager
	TxStore *wtxmgr.Store

	engine engine.Engine

	// opMtx serializes HandleBlocks, transaction creation, Finalize,
	// Discard, checkpoint reloads, address derivation and snapshot
	// loads.  It is held across engine calls.
	opMtx sync.Mutex

	// stateMtx is held for writing while a commit spans the manager and
	// the store, and for reading by every public reader.
	stateMtx sync.RWMutex

	addrCache *ttlcache.Cache[string, string]

	chainClient     chain.Interface
	chainClientLock sync.Mutex

	rescanAddJob   chan *RescanJob
	rescanBatch    chan *rescanBatch
	rescanFinished chan error

	started bool
	quit    chan struct{}
	quitMu  sync.Mutex
	wg      sync.WaitGroup
}

func newWallet(e engine.Engine, mgr *waddrmgr.Manager, store *wtxmgr.Store) *Wallet {
	initPrometheusMetrics()

	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](addressCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()

	return &Wallet{
		Manager:        mgr,
		TxStore:        store,
		engine:         e,
		addrCache:      cache,
		rescanAddJob:   make(chan *RescanJob),
		rescanBatch:    make(chan *rescanBatch),
		rescanFinished: make(chan error),
		quit:           make(chan struct{}),
	}
}

// Create derives the wallet keys from the configured key material and
// positions the wallet at the closest checkpoint below its birthday.
func Create(ctx context.Context, cfg *Config) (*Wallet, error) {
	if len(cfg.Seed) == 0 && cfg.SpendingKey == "" && cfg.ViewingKey == "" {
		return nil, ErrNoKeyMaterial
	}
	if len(cfg.Seed) != 0 && cfg.SpendingKey != "" {
		return nil, ErrSeedAndSpendingKey
	}
	testnet := cfg.CoinType == TestnetCoinType

	if cfg.LoadProver {
		if err := loadProver(ctx, cfg.Engine, cfg.ProverURL); err != nil {
			return nil, err
		}
	}

	extsk := cfg.SpendingKey
	if len(cfg.Seed) != 0 {
		var err error
		extsk, err = cfg.Engine.GenerateSpendingKey(ctx, cfg.Seed,
			cfg.CoinType, cfg.AccountIndex)
		if err != nil {
			return nil, fmt.Errorf("unable to derive spending key: %w", err)
		}
	}

	extfvk := cfg.ViewingKey
	var derived string
	if extsk != "" {
		var err error
		derived, err = cfg.Engine.GenerateViewingKey(ctx, extsk, testnet)
		if err != nil {
			return nil, fmt.Errorf("unable to derive viewing key: %w", err)
		}
		if extfvk == "" {
			extfvk = derived
		}
	}

	mgr, err := waddrmgr.New(extfvk, testnet, waddrmgr.SyncState{})
	if err != nil {
		return nil, err
	}
	if extsk != "" {
		if err := mgr.SetSpendingKey(extsk, derived); err != nil {
			return nil, err
		}
	}

	checkpoint, err := cfg.Engine.ClosestCheckpoint(ctx, cfg.BirthdayHeight,
		testnet)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch checkpoint: %w", err)
	}
	mgr.SetSyncedTo(*checkpoint)

	log.Infof("Created wallet at checkpoint height %d (testnet=%v, "+
		"view-only=%v)", checkpoint.Height, testnet, extsk == "")

	return newWallet(cfg.Engine, mgr, wtxmgr.New()), nil
}

// LoadSpendingKey adds spending authority to a view-only wallet.  The key
// must derive the wallet's viewing key.
func (w *Wallet) LoadSpendingKey(ctx context.Context, extsk string) error {
	w.opMtx.Lock()
	defer w.opMtx.Unlock()

	derived, err := w.engine.GenerateViewingKey(ctx, extsk,
		w.Manager.IsTestnet())
	if err != nil {
		return err
	}
	return w.Manager.SetSpendingKey(extsk, derived)
}

// LoadSeed derives the spending key of the given account from seed and
// loads it with LoadSpendingKey.
func (w *Wallet) LoadSeed(ctx context.Context, seed []byte, coinType,
	accountIndex uint32) error {

	extsk, err := w.engine.GenerateSpendingKey(ctx, seed, coinType,
		accountIndex)
	if err != nil {
		return err
	}
	return w.LoadSpendingKey(ctx, extsk)
}

// Start starts the goroutines necessary to manage a wallet.
func (w *Wallet) Start() {
	w.quitMu.Lock()
	defer w.quitMu.Unlock()

	if w.started {
		return
	}
	w.started = true

	w.wg.Add(2)
	go w.rescanBatchHandler()
	go w.rescanRPCHandler()
}

// Stop signals all wallet goroutines to shutdown and waits for them.
func (w *Wallet) Stop() {
	w.quitMu.Lock()
	select {
	case <-w.quit:
	default:
		close(w.quit)
		w.addrCache.Stop()
	}
	w.quitMu.Unlock()

	w.chainClientLock.Lock()
	chainClient := w.chainClient
	w.chainClient = nil
	w.chainClientLock.Unlock()
	if chainClient != nil {
		chainClient.Stop()
		chainClient.WaitForShutdown()
	}

	w.wg.Wait()
}

// ShuttingDown returns whether the wallet is currently in the process of
// shutting down or not.
func (w *Wallet) ShuttingDown() bool {
	select {
	case <-w.quitChan():
		return true
	default:
		return false
	}
}

func (w *Wallet) quitChan() <-chan struct{} {
	w.quitMu.Lock()
	c := w.quit
	w.quitMu.Unlock()
	return c
}

// quitContext returns a context that is cancelled once the wallet shuts
// down.
func (w *Wallet) quitContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	quit := w.quitChan()
	go func() {
		select {
		case <-quit:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Status is a consistent view of the synced state of the wallet.
type Status struct {
	Height         int32
	CommitmentTree string
	Balance        uint64
	PendingBalance uint64
	PendingTxs     int
}

// Status returns the sync state, balances and pending transaction count
// as of the same committed update.
func (w *Wallet) Status() Status {
	w.stateMtx.RLock()
	defer w.stateMtx.RUnlock()

	synced := w.Manager.SyncedTo()
	return Status{
		Height:         synced.Height,
		CommitmentTree: synced.CommitmentTree,
		Balance:        w.TxStore.Balance(),
		PendingBalance: w.TxStore.PendingBalance(),
		PendingTxs:     len(w.TxStore.PendingTxIDs()),
	}
}

// Balance returns the total value of the unspent notes.
func (w *Wallet) Balance() uint64 {
	w.stateMtx.RLock()
	defer w.stateMtx.RUnlock()

	return w.TxStore.Balance()
}

// PendingBalance returns the total value of the notes expected from
// transactions that were created but not yet seen in a block.
func (w *Wallet) PendingBalance() uint64 {
	w.stateMtx.RLock()
	defer w.stateMtx.RUnlock()

	return w.TxStore.PendingBalance()
}

// LastSyncedHeight returns the height of the last processed block.
func (w *Wallet) LastSyncedHeight() int32 {
	w.stateMtx.RLock()
	defer w.stateMtx.RUnlock()

	return w.Manager.SyncedTo().Height
}

// CommitmentTree returns the current commitment tree digest.
func (w *Wallet) CommitmentTree() string {
	w.stateMtx.RLock()
	defer w.stateMtx.RUnlock()

	return w.Manager.SyncedTo().CommitmentTree
}

// IsOwnNullifier returns whether the nullifier belongs to a note this wallet
// ever received.
func (w *Wallet) IsOwnNullifier(nullifier string) bool {
	w.stateMtx.RLock()
	defer w.stateMtx.RUnlock()

	return w.TxStore.IsOwnNullifier(nullifier)
}

// NoteFromNullifier returns the history record of a nullifier.
func (w *Wallet) NoteFromNullifier(nullifier string) (wtxmgr.SimplifiedNote, bool) {
	w.stateMtx.RLock()
	defer w.stateMtx.RUnlock()

	return w.TxStore.NoteFromNullifier(nullifier)
}

// UnspentNotes returns the unspent notes.
func (w *Wallet) UnspentNotes() []wtxmgr.SpendableNote {
	w.stateMtx.RLock()
	defer w.stateMtx.RUnlock()

	return w.TxStore.UnspentNotes()
}

// IsViewOnly returns whether the wallet lacks spending authority.
func (w *Wallet) IsViewOnly() bool {
	return w.Manager.WatchOnly()
}

// IsTestnet returns whether the wallet runs on the test network.
func (w *Wallet) IsTestnet() bool {
	return w.Manager.IsTestnet()
}

// ViewingKey returns the encoded extended full viewing key.
func (w *Wallet) ViewingKey() string {
	return w.Manager.ViewingKey()
}
