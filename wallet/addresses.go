package wallet

import (
	"context"
	"encoding/hex"
)

// encodeAddress encodes a note recipient as a payment address.  Results are
// cached since the same recipient shows up for every note paid to it.
func (w *Wallet) encodeAddress(ctx context.Context, recipient []byte) (string, error) {
	key := hex.EncodeToString(recipient)
	if item := w.addrCache.Get(key); item != nil {
		return item.Value(), nil
	}

	addr, err := w.engine.EncodePaymentAddress(ctx, w.Manager.IsTestnet(),
		recipient)
	if err != nil {
		return "", err
	}
	w.addrCache.Set(key, addr, addressCacheTTL)
	return addr, nil
}

// NewAddress derives the next unused shielded payment address.
func (w *Wallet) NewAddress(ctx context.Context) (string, error) {
	w.opMtx.Lock()
	defer w.opMtx.Unlock()

	return w.newAddress(ctx)
}

// newAddress advances the diversifier index and returns the address it
// derives.
//
// This function MUST be called with the operation lock held.
func (w *Wallet) newAddress(ctx context.Context) (string, error) {
	addr, err := w.engine.NextAddress(ctx, w.Manager.ViewingKey(),
		w.Manager.DiversifierIndex(), w.Manager.IsTestnet())
	if err != nil {
		return "", err
	}
	if err := w.Manager.SetDiversifierIndex(addr.Diversifier); err != nil {
		return "", err
	}
	log.Debugf("Derived new shielded address %v", addr.Address)
	return addr.Address, nil
}
