// Package engine provides typed access to the cryptographic engine that
// performs every shielded operation on behalf of the wallet: key derivation,
// note decryption, commitment tree updates, nullifier derivation and proof
// generation.  Calls travel through a correlating bridge and may be issued
// concurrently.
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PIVX-Labs/pivx-shield/chain"
	"github.com/PIVX-Labs/pivx-shield/waddrmgr"
	"github.com/PIVX-Labs/pivx-shield/wtxmgr"
)

// Names of the engine operations as they appear on the wire.
const (
	opGenerateSpendingKey  = "generate_extended_spending_key_from_seed"
	opGenerateViewingKey   = "generate_extended_full_viewing_key"
	opClosestCheckpoint    = "get_closest_checkpoint"
	opHandleBlocks         = "handle_blocks"
	opRemoveSpentNotes     = "remove_spent_notes"
	opCreateTransaction    = "create_transaction"
	opNextAddress          = "generate_next_shielding_payment_address"
	opNullifierFromNote    = "get_nullifier_from_note"
	opEncodePaymentAddress = "encode_payment_address"
	opLoadProver           = "load_prover"
	opLoadProverWithURL    = "load_prover_with_url"
	opLoadProverWithBytes  = "load_prover_with_bytes"
	opProverIsLoaded       = "prover_is_loaded"
	opTxProgress           = "read_tx_progress"
	opSaplingRoot          = "get_sapling_root"
)

// Caller issues a single named call.  *bridge.Bridge satisfies it.
type Caller interface {
	Call(ctx context.Context, name string, result interface{},
		args ...interface{}) error
}

// Engine is the set of operations the wallet delegates to the engine.
type Engine interface {
	GenerateSpendingKey(ctx context.Context, seed []byte, coinType,
		accountIndex uint32) (string, error)
	GenerateViewingKey(ctx context.Context, spendingKey string,
		isTestnet bool) (string, error)
	ClosestCheckpoint(ctx context.Context, height int32,
		isTestnet bool) (*waddrmgr.SyncState, error)
	HandleBlocks(ctx context.Context, req *HandleBlocksRequest) (*HandleBlocksResult, error)
	RemoveSpentNotes(ctx context.Context, notes []wtxmgr.SpendableNote,
		nullifiers []string, viewingKey string,
		isTestnet bool) ([]wtxmgr.SpendableNote, error)
	CreateTransaction(ctx context.Context, req *CreateTxRequest) (*CreateTxResult, error)
	NextAddress(ctx context.Context, viewingKey string,
		from waddrmgr.DiversifierIndex, isTestnet bool) (*waddrmgr.ManagedAddress, error)
	NullifierFromNote(ctx context.Context, note *wtxmgr.SpendableNote,
		viewingKey string, isTestnet bool) (string, error)
	EncodePaymentAddress(ctx context.Context, isTestnet bool,
		recipient []byte) (string, error)
	LoadProver(ctx context.Context) (bool, error)
	LoadProverWithURL(ctx context.Context, url string) (bool, error)
	LoadProverWithBytes(ctx context.Context, output, spend []byte) (bool, error)
	ProverIsLoaded(ctx context.Context) (bool, error)
	TxProgress(ctx context.Context) (float64, error)
	SaplingRoot(ctx context.Context, commitmentTree string) (string, error)
}

// HandleBlocksRequest is the input of a block scan.
type HandleBlocksRequest struct {
	CommitmentTree string
	Blocks         []chain.Block
	ViewingKey     string
	IsTestnet      bool

	// Notes is the current unspent set.  The engine refreshes the
	// witness of every note as the tree grows.
	Notes []wtxmgr.SpendableNote
}

// HandleBlocksResult is what a block scan produced.
type HandleBlocksResult struct {
	// DecryptedNotes are the notes passed in, with updated witnesses.
	DecryptedNotes []wtxmgr.SpendableNote `json:"decrypted_notes"`

	// DecryptedNewNotes are the notes discovered in the scanned blocks.
	DecryptedNewNotes []wtxmgr.SpendableNote `json:"decrypted_new_notes"`

	// Nullifiers are every nullifier revealed in the scanned blocks.
	Nullifiers []string `json:"nullifiers"`

	// CommitmentTree is the tree after the last scanned block.
	CommitmentTree string `json:"commitment_tree"`

	// WalletTransactions are the raw transactions relevant to the
	// wallet.
	WalletTransactions []string `json:"wallet_transactions"`
}

// UTXO is a transparent output spent by a transaction with transparent
// inputs.
type UTXO struct {
	TxID       string         `json:"txid"`
	Vout       uint32         `json:"vout"`
	Amount     uint64         `json:"amount"`
	PrivateKey wtxmgr.ByteSeq `json:"private_key"`
	Script     wtxmgr.ByteSeq `json:"script"`
}

// CreateTxRequest describes a transaction to build.  Exactly one of Notes
// and UTXOs is set.
type CreateTxRequest struct {
	Notes         []wtxmgr.SpendableNote `json:"notes"`
	UTXOs         []UTXO                 `json:"utxos"`
	SpendingKey   string                 `json:"extsk"`
	ToAddress     string                 `json:"to_address"`
	ChangeAddress string                 `json:"change_address"`
	Amount        uint64                 `json:"amount"`
	BlockHeight   int32                  `json:"block_height"`
	IsTestnet     bool                   `json:"is_testnet"`
}

// CreateTxResult is a built and proven transaction.  For shielded inputs
// Nullifiers lists the nullifiers of the spent notes, for transparent
// inputs it lists the spent outpoints as "txid,vout".
type CreateTxResult struct {
	TxID       string   `json:"txid"`
	TxHex      string   `json:"txhex"`
	Nullifiers []string `json:"nullifiers"`
}

type seedData struct {
	Seed         wtxmgr.ByteSeq `json:"seed"`
	CoinType     uint32         `json:"coin_type"`
	AccountIndex uint32         `json:"account_index"`
}

type blockData struct {
	Height int32    `json:"height"`
	Txs    []string `json:"txs"`
}

type addressData struct {
	Address     string                    `json:"address"`
	Diversifier waddrmgr.DiversifierIndex `json:"diversifier_index"`
}

// Client implements Engine on top of a Caller.
type Client struct {
	caller Caller
}

// A compile-time assertion to ensure that Client implements the Engine
// interface.
var _ Engine = (*Client)(nil)

// NewClient returns an engine client issuing its calls through c.
func NewClient(c Caller) *Client {
	return &Client{caller: c}
}

// GenerateSpendingKey derives the encoded extended spending key of the given
// account from a seed.  Coin type 1 selects testnet.
func (c *Client) GenerateSpendingKey(ctx context.Context, seed []byte,
	coinType, accountIndex uint32) (string, error) {

	var extsk string
	err := c.caller.Call(ctx, opGenerateSpendingKey, &extsk, &seedData{
		Seed:         seed,
		CoinType:     coinType,
		AccountIndex: accountIndex,
	})
	return extsk, err
}

// GenerateViewingKey derives the encoded extended full viewing key of a
// spending key.
func (c *Client) GenerateViewingKey(ctx context.Context, spendingKey string,
	isTestnet bool) (string, error) {

	var extfvk string
	err := c.caller.Call(ctx, opGenerateViewingKey, &extfvk, spendingKey,
		isTestnet)
	return extfvk, err
}

// ClosestCheckpoint returns the highest checkpoint strictly below height.
func (c *Client) ClosestCheckpoint(ctx context.Context, height int32,
	isTestnet bool) (*waddrmgr.SyncState, error) {

	var tuple []json.RawMessage
	err := c.caller.Call(ctx, opClosestCheckpoint, &tuple, height, isTestnet)
	if err != nil {
		return nil, err
	}
	if len(tuple) != 2 {
		return nil, fmt.Errorf("checkpoint has %d fields, want 2", len(tuple))
	}

	var state waddrmgr.SyncState
	if err := json.Unmarshal(tuple[0], &state.Height); err != nil {
		return nil, fmt.Errorf("invalid checkpoint height: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &state.CommitmentTree); err != nil {
		return nil, fmt.Errorf("invalid checkpoint tree: %w", err)
	}
	return &state, nil
}

// HandleBlocks scans blocks for notes belonging to the viewing key,
// advancing the commitment tree and the witnesses of the given notes.
func (c *Client) HandleBlocks(ctx context.Context,
	req *HandleBlocksRequest) (*HandleBlocksResult, error) {

	blocks := make([]blockData, len(req.Blocks))
	for i := range req.Blocks {
		blocks[i] = blockData{
			Height: req.Blocks[i].Height,
			Txs:    req.Blocks[i].TxHexes(),
		}
	}
	notes := req.Notes
	if notes == nil {
		notes = []wtxmgr.SpendableNote{}
	}

	res := new(HandleBlocksResult)
	err := c.caller.Call(ctx, opHandleBlocks, res, req.CommitmentTree,
		blocks, req.ViewingKey, req.IsTestnet, notes)
	if err != nil {
		return nil, err
	}
	log.Tracef("Scanned %d blocks: %d known notes, %d new notes, "+
		"%d nullifiers", len(blocks), len(res.DecryptedNotes),
		len(res.DecryptedNewNotes), len(res.Nullifiers))
	return res, nil
}

// RemoveSpentNotes returns the notes whose nullifier is not listed.
func (c *Client) RemoveSpentNotes(ctx context.Context,
	notes []wtxmgr.SpendableNote, nullifiers []string, viewingKey string,
	isTestnet bool) ([]wtxmgr.SpendableNote, error) {

	var unspent []wtxmgr.SpendableNote
	err := c.caller.Call(ctx, opRemoveSpentNotes, &unspent, notes,
		nullifiers, viewingKey, isTestnet)
	return unspent, err
}

// CreateTransaction builds and proves a transaction.
func (c *Client) CreateTransaction(ctx context.Context,
	req *CreateTxRequest) (*CreateTxResult, error) {

	res := new(CreateTxResult)
	if err := c.caller.Call(ctx, opCreateTransaction, res, req); err != nil {
		return nil, err
	}
	return res, nil
}

// NextAddress derives the first valid payment address after the given
// diversifier index.
func (c *Client) NextAddress(ctx context.Context, viewingKey string,
	from waddrmgr.DiversifierIndex, isTestnet bool) (*waddrmgr.ManagedAddress, error) {

	var res addressData
	err := c.caller.Call(ctx, opNextAddress, &res, viewingKey, from,
		isTestnet)
	if err != nil {
		return nil, err
	}
	return &waddrmgr.ManagedAddress{
		Address:     res.Address,
		Diversifier: res.Diversifier,
	}, nil
}

// NullifierFromNote derives the nullifier of a note from its witness.
func (c *Client) NullifierFromNote(ctx context.Context,
	note *wtxmgr.SpendableNote, viewingKey string,
	isTestnet bool) (string, error) {

	var nullifier string
	err := c.caller.Call(ctx, opNullifierFromNote, &nullifier, note,
		viewingKey, isTestnet)
	return nullifier, err
}

// EncodePaymentAddress encodes a raw note recipient as a payment address.
func (c *Client) EncodePaymentAddress(ctx context.Context, isTestnet bool,
	recipient []byte) (string, error) {

	var addr string
	err := c.caller.Call(ctx, opEncodePaymentAddress, &addr, isTestnet,
		wtxmgr.ByteSeq(recipient))
	return addr, err
}

// LoadProver loads the proving parameters from the engine's default
// location.
func (c *Client) LoadProver(ctx context.Context) (bool, error) {
	var ok bool
	err := c.caller.Call(ctx, opLoadProver, &ok)
	return ok, err
}

// LoadProverWithURL loads the proving parameters from url.
func (c *Client) LoadProverWithURL(ctx context.Context, url string) (bool, error) {
	var ok bool
	err := c.caller.Call(ctx, opLoadProverWithURL, &ok, url)
	return ok, err
}

// LoadProverWithBytes loads the proving parameters from memory.
func (c *Client) LoadProverWithBytes(ctx context.Context, output,
	spend []byte) (bool, error) {

	var ok bool
	err := c.caller.Call(ctx, opLoadProverWithBytes, &ok,
		wtxmgr.ByteSeq(output), wtxmgr.ByteSeq(spend))
	return ok, err
}

// ProverIsLoaded reports whether proving parameters are loaded.
func (c *Client) ProverIsLoaded(ctx context.Context) (bool, error) {
	var ok bool
	err := c.caller.Call(ctx, opProverIsLoaded, &ok)
	return ok, err
}

// TxProgress returns the progress of the proof currently being generated,
// from 0 to 1.
func (c *Client) TxProgress(ctx context.Context) (float64, error) {
	var progress float64
	err := c.caller.Call(ctx, opTxProgress, &progress)
	return progress, err
}

// SaplingRoot returns the root of the commitment tree.
func (c *Client) SaplingRoot(ctx context.Context, commitmentTree string) (string, error) {
	var root string
	err := c.caller.Call(ctx, opSaplingRoot, &root, commitmentTree)
	return root, err
}
