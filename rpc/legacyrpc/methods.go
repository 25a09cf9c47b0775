package legacyrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PIVX-Labs/pivx-shield/chain"
	"github.com/PIVX-Labs/pivx-shield/engine"
	"github.com/PIVX-Labs/pivx-shield/waddrmgr"
	"github.com/PIVX-Labs/pivx-shield/wallet"
	"github.com/PIVX-Labs/pivx-shield/wallet/txrules"
	"github.com/PIVX-Labs/pivx-shield/walletdb"
	"github.com/PIVX-Labs/pivx-shield/wtxmgr"
	"github.com/abesuite/abec/abejson"
)

// requestHandler is a handler function to handle an unmarshaled and parsed
// request into a marshalable response.  If the error is a *abejson.RPCError
// or any of the above special error classes, the server will respond with
// the JSON-RPC appropiate error code.  All other errors use the wallet
// catch-all error code, abejson.ErrRPCWallet.
type requestHandler func(context.Context, []json.RawMessage, *wallet.Wallet) (interface{}, error)

// requestHandlerDBRequired is a requestHandler that also takes the wallet
// database.
type requestHandlerDBRequired func(context.Context, []json.RawMessage, *wallet.Wallet, *walletdb.DB) (interface{}, error)

var rpcHandlers = map[string]struct {
	handler       requestHandler
	handlerWithDB requestHandlerDBRequired
}{
	"createtransaction":    {handler: createTransaction},
	"decrypttransaction":   {handler: decryptTransaction},
	"discardtransaction":   {handler: discardTransaction},
	"estimatefee":          {handler: estimateFee},
	"finalizetransaction":  {handler: finalizeTransaction},
	"getbalance":           {handler: getBalance},
	"getblockcount":        {handler: getBlockCount},
	"getinfo":              {handler: getInfo},
	"getnewaddress":        {handler: getNewAddress},
	"getnotefromnullifier": {handler: getNoteFromNullifier},
	"getpendingbalance":    {handler: getPendingBalance},
	"getsaplingroot":       {handler: getSaplingRoot},
	"gettxstatus":          {handler: getTxStatus},
	"handleblocks":         {handler: handleBlocks},
	"help":                 {handler: help},
	"isownnullifier":       {handler: isOwnNullifier},
	"loadspendingkey":      {handler: loadSpendingKey},
	"reloadfromcheckpoint": {handler: reloadFromCheckpoint},
	"savewallet":           {handlerWithDB: saveWallet},
}

// lazyHandler is a closure over a requestHandler with the RPC server's
// wallet and database as part of the closure context.
type lazyHandler func(context.Context) (interface{}, *abejson.RPCError)

// lazyApplyHandler looks up the request handler func for the method,
// returning a closure that will execute it with the wallet and the
// (optional) database.
func lazyApplyHandler(request *abejson.Request, w *wallet.Wallet, db *walletdb.DB) lazyHandler {
	handlerData, ok := rpcHandlers[request.Method]
	switch {
	case ok && handlerData.handlerWithDB != nil:
		return func(ctx context.Context) (interface{}, *abejson.RPCError) {
			if db == nil {
				return nil, &ErrNoSnapshotDB
			}
			resp, err := handlerData.handlerWithDB(ctx,
				request.Params, w, db)
			if err != nil {
				return nil, jsonError(err)
			}
			return resp, nil
		}

	case ok && handlerData.handler != nil:
		return func(ctx context.Context) (interface{}, *abejson.RPCError) {
			resp, err := handlerData.handler(ctx, request.Params, w)
			if err != nil {
				return nil, jsonError(err)
			}
			return resp, nil
		}
	}

	return func(context.Context) (interface{}, *abejson.RPCError) {
		return nil, ErrMethodNotFound
	}
}

// idPointer returns a pointer to the passed ID, or nil if the interface is
// nil.  Interface pointers are usually a red flag of doing something
// incorrectly, but this is only implemented here to work around an oddity
// with abejson, which uses empty interface pointers for response IDs.
func idPointer(id interface{}) (p *interface{}) {
	if id != nil {
		p = &id
	}
	return
}

// makeResponse makes the JSON-RPC response struct for the result and error
// returned by a requestHandler.
func makeResponse(id, result interface{}, rpcErr *abejson.RPCError) abejson.Response {
	idPtr := idPointer(id)
	if rpcErr != nil {
		return abejson.Response{
			ID:    idPtr,
			Error: rpcErr,
		}
	}
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return abejson.Response{
			ID: idPtr,
			Error: &abejson.RPCError{
				Code:    abejson.ErrRPCInternal.Code,
				Message: "Unexpected error marshalling result",
			},
		}
	}
	return abejson.Response{
		ID:     idPtr,
		Result: json.RawMessage(resultBytes),
	}
}

// jsonError creates a JSON-RPC error from the Go error.
func jsonError(err error) *abejson.RPCError {
	if err == nil {
		return nil
	}

	code := abejson.ErrRPCWallet
	switch e := err.(type) {
	case abejson.RPCError:
		return &e
	case *abejson.RPCError:
		return e
	case DeserializationError:
		code = abejson.ErrRPCDeserialization
	case InvalidParameterError:
		code = abejson.ErrRPCInvalidParameter
	case ParseError:
		code = abejson.ErrRPCParse.Code
	default:
		var (
			mgrErr   waddrmgr.ManagerError
			storeErr wtxmgr.Error
		)
		switch {
		case errors.As(err, &mgrErr):
			switch mgrErr.ErrorCode {
			case waddrmgr.ErrAuthorityMismatch, waddrmgr.ErrInvalidKey:
				code = abejson.ErrRPCInvalidAddressOrKey
			case waddrmgr.ErrWatchingOnly:
				code = abejson.ErrRPCWalletUnlockNeeded
			}

		case errors.As(err, &storeErr):
			switch storeErr.Code {
			case wtxmgr.ErrUnknownTransaction:
				code = abejson.ErrRPCNoTxInfo
			case wtxmgr.ErrInput:
				code = abejson.ErrRPCInvalidParameter
			}

		case errors.Is(err, wallet.ErrViewOnly):
			code = abejson.ErrRPCWalletUnlockNeeded

		case errors.Is(err, wallet.ErrOrdering),
			errors.Is(err, txrules.ErrChangeTypeMismatch):

			code = abejson.ErrRPCInvalidParameter
		}
	}
	return &abejson.RPCError{
		Code:    code,
		Message: err.Error(),
	}
}

// parseParams unmarshals the positional parameters of a request into dst.
// The first required parameters must be present, the others keep the value
// dst points to when omitted.
func parseParams(params []json.RawMessage, required int, dst ...interface{}) error {
	if len(params) < required || len(params) > len(dst) {
		return InvalidParameterError{fmt.Errorf("wrong number of "+
			"params (expected %d to %d, received %d)", required,
			len(dst), len(params))}
	}
	for i, p := range params {
		if err := json.Unmarshal(p, dst[i]); err != nil {
			return DeserializationError{fmt.Errorf("parameter #%d: %w",
				i+1, err)}
		}
	}
	return nil
}

// getBalance handles a getbalance request by returning the total value of
// the unspent notes.
func getBalance(_ context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	if err := parseParams(params, 0); err != nil {
		return nil, err
	}
	return w.Balance(), nil
}

// getPendingBalance handles a getpendingbalance request by returning the
// value expected back from transactions not yet seen in a block.
func getPendingBalance(_ context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	if err := parseParams(params, 0); err != nil {
		return nil, err
	}
	return w.PendingBalance(), nil
}

// getBlockCount handles a getblockcount request by returning the height of
// the last processed block.
func getBlockCount(_ context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	if err := parseParams(params, 0); err != nil {
		return nil, err
	}
	return w.LastSyncedHeight(), nil
}

// infoResult is the result of a getinfo request.
type infoResult struct {
	Blocks         int32  `json:"blocks"`
	Balance        uint64 `json:"balance"`
	PendingBalance uint64 `json:"pendingbalance"`
	Pending        int    `json:"pendingtransactions"`
	ViewOnly       bool   `json:"viewonly"`
	TestNet        bool   `json:"testnet"`
	ProverLoaded   bool   `json:"proverloaded"`
}

// getInfo handles a getinfo request by returning a summary of the wallet.
func getInfo(ctx context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	if err := parseParams(params, 0); err != nil {
		return nil, err
	}
	loaded, err := w.ProverIsLoaded(ctx)
	if err != nil {
		return nil, err
	}
	status := w.Status()
	return &infoResult{
		Blocks:         status.Height,
		Balance:        status.Balance,
		PendingBalance: status.PendingBalance,
		Pending:        status.PendingTxs,
		ViewOnly:       w.IsViewOnly(),
		TestNet:        w.IsTestnet(),
		ProverLoaded:   loaded,
	}, nil
}

// getNewAddress handles a getnewaddress request by deriving the next
// shielded payment address.
func getNewAddress(ctx context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	if err := parseParams(params, 0); err != nil {
		return nil, err
	}
	return w.NewAddress(ctx)
}

// handleBlocks handles a handleblocks request by ingesting an ordered batch
// of blocks and returning the raw transactions relevant to the wallet.
func handleBlocks(ctx context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	var blocks []chain.Block
	if err := parseParams(params, 1, &blocks); err != nil {
		return nil, err
	}
	return w.HandleBlocks(ctx, blocks)
}

// createTransactionCmd is the single object parameter of a
// createtransaction request.
type createTransactionCmd struct {
	Address                  string        `json:"address"`
	Amount                   uint64        `json:"amount"`
	BlockHeight              *int32        `json:"blockheight"`
	UseShieldInputs          *bool         `json:"useshieldinputs"`
	UTXOs                    []engine.UTXO `json:"utxos"`
	TransparentChangeAddress string        `json:"transparentchangeaddress"`
}

// createTransaction handles a createtransaction request by building a
// payment.  Shielded inputs are used unless disabled, and the transaction
// targets the block after the last processed one unless a height is given.
func createTransaction(ctx context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	var cmd createTransactionCmd
	if err := parseParams(params, 1, &cmd); err != nil {
		return nil, err
	}
	if cmd.Amount == 0 {
		return nil, ErrNeedPositiveAmount
	}
	if cmd.Address == "" {
		return nil, InvalidParameterError{errors.New("missing address")}
	}

	req := &wallet.TxRequest{
		Address:                  cmd.Address,
		Amount:                   cmd.Amount,
		BlockHeight:              w.LastSyncedHeight() + 1,
		UseShieldInputs:          true,
		UTXOs:                    cmd.UTXOs,
		TransparentChangeAddress: cmd.TransparentChangeAddress,
	}
	if cmd.BlockHeight != nil {
		req.BlockHeight = *cmd.BlockHeight
	}
	if cmd.UseShieldInputs != nil {
		req.UseShieldInputs = *cmd.UseShieldInputs
	}
	return w.CreateTransaction(ctx, req)
}

// finalizeTransaction handles a finalizetransaction request.
func finalizeTransaction(_ context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	var txid string
	if err := parseParams(params, 1, &txid); err != nil {
		return nil, err
	}
	if txid == "" {
		return nil, ErrNeedTxID
	}
	return nil, w.FinalizeTransaction(txid)
}

// discardTransaction handles a discardtransaction request.
func discardTransaction(_ context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	var txid string
	if err := parseParams(params, 1, &txid); err != nil {
		return nil, err
	}
	if txid == "" {
		return nil, ErrNeedTxID
	}
	w.DiscardTransaction(txid)
	return nil, nil
}

// isOwnNullifier handles an isownnullifier request.
func isOwnNullifier(_ context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	var nullifier string
	if err := parseParams(params, 1, &nullifier); err != nil {
		return nil, err
	}
	return w.IsOwnNullifier(nullifier), nil
}

// getNoteFromNullifier handles a getnotefromnullifier request by returning
// the recipient and value of the note a nullifier belongs to.
func getNoteFromNullifier(_ context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	var nullifier string
	if err := parseParams(params, 1, &nullifier); err != nil {
		return nil, err
	}
	note, ok := w.NoteFromNullifier(nullifier)
	if !ok {
		return nil, ErrNullifierNotFound
	}
	return note, nil
}

// reloadFromCheckpoint handles a reloadfromcheckpoint request by rewinding
// the wallet to the closest checkpoint below the given height.
func reloadFromCheckpoint(ctx context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	var height int32
	if err := parseParams(params, 1, &height); err != nil {
		return nil, err
	}
	if err := w.Rescan(ctx, height); err != nil {
		return nil, err
	}
	return w.LastSyncedHeight(), nil
}

// getTxStatus handles a gettxstatus request by returning the progress of
// the proof being generated.
func getTxStatus(ctx context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	if err := parseParams(params, 0); err != nil {
		return nil, err
	}
	return w.TxStatus(ctx)
}

// getSaplingRoot handles a getsaplingroot request.
func getSaplingRoot(ctx context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	if err := parseParams(params, 0); err != nil {
		return nil, err
	}
	return w.SaplingRoot(ctx)
}

// loadSpendingKey handles a loadspendingkey request by adding spending
// authority to a view-only wallet.
func loadSpendingKey(ctx context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	var extsk string
	if err := parseParams(params, 1, &extsk); err != nil {
		return nil, err
	}
	if extsk == "" {
		return nil, InvalidParameterError{errors.New("missing spending key")}
	}
	return nil, w.LoadSpendingKey(ctx, extsk)
}

// saveWallet handles a savewallet request by storing a snapshot of the
// wallet in the database.  The snapshot is also returned.
func saveWallet(_ context.Context, params []json.RawMessage, w *wallet.Wallet, db *walletdb.DB) (interface{}, error) {
	if err := parseParams(params, 0); err != nil {
		return nil, err
	}
	snapshot, err := w.Save()
	if err != nil {
		return nil, err
	}
	if err := db.PutSnapshot(w.ViewingKey(), snapshot, time.Now()); err != nil {
		return nil, err
	}
	return json.RawMessage(snapshot), nil
}

// estimateFee handles an estimatefee request by returning the fee paid by a
// transaction with the given input and output counts.
func estimateFee(_ context.Context, params []json.RawMessage, _ *wallet.Wallet) (interface{}, error) {
	var shape txrules.TxShape
	if err := parseParams(params, 1, &shape); err != nil {
		return nil, err
	}
	if shape.TransparentInputs < 0 || shape.TransparentOutputs < 0 ||
		shape.SaplingInputs < 0 || shape.SaplingOutputs < 0 {

		return nil, InvalidParameterError{errors.New("counts must " +
			"not be negative")}
	}
	return txrules.EstimateFee(shape), nil
}

// decryptTransaction handles a decrypttransaction request by returning the
// outputs of a raw transaction that pay the wallet.
func decryptTransaction(ctx context.Context, params []json.RawMessage, w *wallet.Wallet) (interface{}, error) {
	var txHex string
	if err := parseParams(params, 1, &txHex); err != nil {
		return nil, err
	}
	if txHex == "" {
		return nil, InvalidParameterError{errors.New("missing transaction")}
	}
	return w.DecryptTransactionOutputs(ctx, txHex)
}

// help handles the help request by returning one line usage of all
// available methods, or full help for a specific method.
func help(_ context.Context, params []json.RawMessage, _ *wallet.Wallet) (interface{}, error) {
	var command string
	if err := parseParams(params, 0, &command); err != nil {
		return nil, err
	}
	if command == "" {
		return requestUsages(), nil
	}

	helpText, ok := helpDescs[command]
	if !ok {
		return nil, &abejson.RPCError{
			Code:    abejson.ErrRPCInvalidParameter,
			Message: fmt.Sprintf("No help for method '%s'", command),
		}
	}
	return helpText, nil
}

// requestUsages returns the single line usages of every method, sorted by
// method name and separated by newlines.
func requestUsages() string {
	methods := make([]string, 0, len(rpcHandlers))
	for method := range rpcHandlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	usages := make([]string, 0, len(methods))
	for _, method := range methods {
		usages = append(usages, methodUsages[method])
	}
	return strings.Join(usages, "\n")
}

