package chain

import "context"

// Tx is a raw transaction as delivered by the block source.
type Tx struct {
	// Hex is the serialized transaction in hex.
	Hex string `json:"hex"`

	// TxID is the transaction id in the byte order the node displays.
	TxID string `json:"txid"`
}

// Block is the minimal block shape the wallet needs: its height and the
// raw transactions it contains.
type Block struct {
	Height int32 `json:"height"`
	Txs    []Tx  `json:"txs"`
}

// TxHexes returns the serialized transactions of the block in order.
func (b *Block) TxHexes() []string {
	hexes := make([]string, len(b.Txs))
	for i := range b.Txs {
		hexes[i] = b.Txs[i].Hex
	}
	return hexes
}

// Interface allows more than one backing blockchain source, such as a node
// RPC server or a block explorer, as long as we write a driver for it.
type Interface interface {
	Start() error
	Stop()
	WaitForShutdown()
	GetBestBlockHeight(ctx context.Context) (int32, error)      // request the best block height
	GetBlock(ctx context.Context, height int32) (*Block, error) // request the block at the given height
	Notifications() <-chan interface{}                          // receive the notification from block chain
}

// Notification types.  These are defined here and processed from reading
// a notification channel to avoid handling these notifications directly in
// client callbacks, which doesn't allow blocking client calls.
type (
	// ClientConnected is a notification for when a client connection is
	// opened or reestablished to the chain server.
	ClientConnected struct{}

	// BlockConnected is a notification for a newly-attached block to the
	// best chain.
	BlockConnected Block
)
