package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/PIVX-Labs/pivx-shield/chain"
	"github.com/PIVX-Labs/pivx-shield/engine"
	"github.com/PIVX-Labs/pivx-shield/waddrmgr"
	"github.com/PIVX-Labs/pivx-shield/wtxmgr"
	"github.com/stretchr/testify/require"
)

const (
	testSpendingKey = "secret-extended-key-test1"
	testViewingKey  = "pxviews1test"
)

var errEngine = errors.New("engine rejected the call")

// fakeEngine is an in-memory engine.  Block scans find the notes and
// nullifiers registered for the scanned transaction hexes.
type fakeEngine struct {
	mu sync.Mutex

	viewingKeys   map[string]string
	checkpoints   map[int32]waddrmgr.SyncState
	checkpointErr error

	txNotes      map[string][]wtxmgr.SpendableNote
	txNullifiers map[string][]string
	walletTxs    map[string]bool

	scanErr  error
	scans    []*engine.HandleBlocksRequest
	createFn func(*engine.CreateTxRequest) (*engine.CreateTxResult, error)
	creates  []*engine.CreateTxRequest
	encodes  int

	proverLoaded bool
}

var _ engine.Engine = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		viewingKeys: map[string]string{
			testSpendingKey: testViewingKey,
		},
		checkpoints: map[int32]waddrmgr.SyncState{
			100: {Height: 100, CommitmentTree: "tree100"},
		},
		txNotes:      make(map[string][]wtxmgr.SpendableNote),
		txNullifiers: make(map[string][]string),
		walletTxs:    make(map[string]bool),
	}
}

func (e *fakeEngine) GenerateSpendingKey(_ context.Context, seed []byte,
	coinType, accountIndex uint32) (string, error) {

	if len(seed) != 32 {
		return "", errEngine
	}
	return testSpendingKey, nil
}

func (e *fakeEngine) GenerateViewingKey(_ context.Context, spendingKey string,
	_ bool) (string, error) {

	e.mu.Lock()
	defer e.mu.Unlock()

	fvk, ok := e.viewingKeys[spendingKey]
	if !ok {
		return "", errEngine
	}
	return fvk, nil
}

// ClosestCheckpoint returns the highest registered checkpoint not above
// height.
func (e *fakeEngine) ClosestCheckpoint(_ context.Context, height int32,
	_ bool) (*waddrmgr.SyncState, error) {

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.checkpointErr != nil {
		return nil, e.checkpointErr
	}
	var best *waddrmgr.SyncState
	for h, cp := range e.checkpoints {
		cp := cp
		if h <= height && (best == nil || h > best.Height) {
			best = &cp
		}
	}
	if best == nil {
		return &waddrmgr.SyncState{}, nil
	}
	return best, nil
}

func (e *fakeEngine) HandleBlocks(_ context.Context,
	req *engine.HandleBlocksRequest) (*engine.HandleBlocksResult, error) {

	e.mu.Lock()
	defer e.mu.Unlock()

	e.scans = append(e.scans, req)
	if e.scanErr != nil {
		return nil, e.scanErr
	}

	res := &engine.HandleBlocksResult{
		DecryptedNotes:     append([]wtxmgr.SpendableNote{}, req.Notes...),
		DecryptedNewNotes:  []wtxmgr.SpendableNote{},
		Nullifiers:         []string{},
		WalletTransactions: []string{},
		CommitmentTree:     req.CommitmentTree,
	}
	for _, b := range req.Blocks {
		for _, tx := range b.Txs {
			res.DecryptedNewNotes = append(res.DecryptedNewNotes,
				e.txNotes[tx.Hex]...)
			res.Nullifiers = append(res.Nullifiers,
				e.txNullifiers[tx.Hex]...)
			if e.walletTxs[tx.Hex] {
				res.WalletTransactions = append(
					res.WalletTransactions, tx.Hex)
			}
		}
		res.CommitmentTree = fmt.Sprintf("tree%d", b.Height)
	}
	return res, nil
}

func (e *fakeEngine) RemoveSpentNotes(_ context.Context,
	notes []wtxmgr.SpendableNote, nullifiers []string, _ string,
	_ bool) ([]wtxmgr.SpendableNote, error) {

	spent := make(map[string]bool)
	for _, n := range nullifiers {
		spent[n] = true
	}
	var unspent []wtxmgr.SpendableNote
	for _, n := range notes {
		if !spent[n.Nullifier] {
			unspent = append(unspent, n)
		}
	}
	return unspent, nil
}

func (e *fakeEngine) CreateTransaction(_ context.Context,
	req *engine.CreateTxRequest) (*engine.CreateTxResult, error) {

	e.mu.Lock()
	e.creates = append(e.creates, req)
	fn := e.createFn
	e.mu.Unlock()

	if fn == nil {
		return nil, errEngine
	}
	return fn(req)
}

// NextAddress increments the first byte of the diversifier index.
func (e *fakeEngine) NextAddress(_ context.Context, _ string,
	from waddrmgr.DiversifierIndex, _ bool) (*waddrmgr.ManagedAddress, error) {

	next := from
	next[0]++
	return &waddrmgr.ManagedAddress{
		Address:     fmt.Sprintf("ptestsapling1addr%d", next[0]),
		Diversifier: next,
	}, nil
}

func (e *fakeEngine) NullifierFromNote(_ context.Context,
	note *wtxmgr.SpendableNote, _ string, _ bool) (string, error) {

	return note.Nullifier, nil
}

func (e *fakeEngine) EncodePaymentAddress(_ context.Context, _ bool,
	recipient []byte) (string, error) {

	e.mu.Lock()
	e.encodes++
	e.mu.Unlock()

	return "ptestsapling1" + hex.EncodeToString(recipient), nil
}

func (e *fakeEngine) LoadProver(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.proverLoaded = true
	return true, nil
}

func (e *fakeEngine) LoadProverWithURL(_ context.Context, url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	return e.LoadProver(context.Background())
}

func (e *fakeEngine) LoadProverWithBytes(_ context.Context, output,
	spend []byte) (bool, error) {

	if len(output) == 0 || len(spend) == 0 {
		return false, nil
	}
	return e.LoadProver(context.Background())
}

func (e *fakeEngine) ProverIsLoaded(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.proverLoaded, nil
}

func (e *fakeEngine) TxProgress(context.Context) (float64, error) {
	return 0.5, nil
}

func (e *fakeEngine) SaplingRoot(_ context.Context, tree string) (string, error) {
	return "root-" + tree, nil
}

func (e *fakeEngine) scanCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.scans)
}

// addNote registers a note paid to the wallet by the transaction txHex.
func (e *fakeEngine) addNote(txHex, nullifier string, value uint64) wtxmgr.SpendableNote {
	note := wtxmgr.SpendableNote{
		Note: wtxmgr.Note{
			Value:     value,
			Recipient: wtxmgr.ByteSeq{0x01, 0x02},
			Rseed:     wtxmgr.ByteSeq{0x03},
		},
		Witness:   "witness-" + nullifier,
		Nullifier: nullifier,
	}

	e.mu.Lock()
	e.txNotes[txHex] = append(e.txNotes[txHex], note)
	e.walletTxs[txHex] = true
	e.mu.Unlock()

	return note
}

// addSpend registers nullifier as revealed by the transaction txHex.
func (e *fakeEngine) addSpend(txHex, nullifier string) {
	e.mu.Lock()
	e.txNullifiers[txHex] = append(e.txNullifiers[txHex], nullifier)
	e.mu.Unlock()
}

// mockChainClient serves blocks from memory.
type mockChainClient struct {
	mu     sync.Mutex
	blocks map[int32]*chain.Block
	best   int32

	stopped bool
	waited  bool

	notifications chan interface{}
}

var _ chain.Interface = (*mockChainClient)(nil)

func newMockChainClient() *mockChainClient {
	return &mockChainClient{
		blocks:        make(map[int32]*chain.Block),
		notifications: make(chan interface{}, 10),
	}
}

func (m *mockChainClient) Start() error {
	return nil
}

func (m *mockChainClient) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

func (m *mockChainClient) WaitForShutdown() {
	m.mu.Lock()
	m.waited = m.stopped
	m.mu.Unlock()
}

func (m *mockChainClient) isShutdown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stopped && m.waited
}

func (m *mockChainClient) GetBestBlockHeight(context.Context) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.best, nil
}

func (m *mockChainClient) GetBlock(_ context.Context, height int32) (*chain.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[height]
	if !ok {
		return nil, fmt.Errorf("block %d not found", height)
	}
	return b, nil
}

func (m *mockChainClient) Notifications() <-chan interface{} {
	return m.notifications
}

// addBlock appends a block holding the given transaction hexes, the txid of
// each being "id-" followed by its hex.
func (m *mockChainClient) addBlock(height int32, txHexes ...string) *chain.Block {
	b := &chain.Block{Height: height}
	for _, h := range txHexes {
		b.Txs = append(b.Txs, chain.Tx{Hex: h, TxID: "id-" + h})
	}

	m.mu.Lock()
	m.blocks[height] = b
	if height > m.best {
		m.best = height
	}
	m.mu.Unlock()

	return b
}

func block(height int32, txHexes ...string) chain.Block {
	b := chain.Block{Height: height}
	for _, h := range txHexes {
		b.Txs = append(b.Txs, chain.Tx{Hex: h, TxID: "id-" + h})
	}
	return b
}

// testWallet creates a wallet synced to height 100.  It holds the spending
// key unless viewOnly is set.
func testWallet(t *testing.T, e *fakeEngine, viewOnly bool) *Wallet {
	t.Helper()

	cfg := &Config{
		Engine:         e,
		BirthdayHeight: 150,
		CoinType:       TestnetCoinType,
	}
	if viewOnly {
		cfg.ViewingKey = testViewingKey
	} else {
		cfg.SpendingKey = testSpendingKey
	}

	w, err := Create(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	require.Equal(t, int32(100), w.LastSyncedHeight())
	return w
}
