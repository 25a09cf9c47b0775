package wtxmgr

import "sort"

// AddPending records a transaction built by this wallet that has not been
// seen in a block yet.  spent lists the nullifiers of the notes the
// transaction consumes and incoming the notes it pays back to this wallet.
// Either may be empty.  The outgoing half is always recorded so the
// transaction can be finalized once.
func (s *Store) AddPending(txid string, spent []string, incoming []Note) error {
	if txid == "" {
		return storeError(ErrInput, "empty transaction id", nil)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.hasPending(txid) {
		str := "pending transaction " + txid + " already recorded"
		return storeError(ErrAlreadyExists, str, nil)
	}
	s.pendingSpent[txid] = append(make([]string, 0, len(spent)), spent...)
	if len(incoming) > 0 {
		s.pendingIncoming[txid] = append([]Note(nil), incoming...)
	}
	return nil
}

// Finalize marks a broadcast transaction as irrevocable: the notes it
// spends leave the unspent set and its outgoing half is dropped.  The
// incoming half stays until the transaction is confirmed in a block or
// discarded.  Finalizing an unknown or already finalized transaction fails
// with ErrUnknownTransaction.
func (s *Store) Finalize(txid string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.pendingSpent[txid]; !ok {
		str := "no pending transaction " + txid
		return storeError(ErrUnknownTransaction, str, nil)
	}
	s.removeSpent(s.pendingSpent[txid])
	delete(s.pendingSpent, txid)
	return nil
}

// Discard forgets both halves of a pending transaction without touching the
// unspent set.  Unknown ids are ignored.
func (s *Store) Discard(txid string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	delete(s.pendingSpent, txid)
	delete(s.pendingIncoming, txid)
}

// PendingBalance returns the total value of the notes expected from pending
// transactions.
func (s *Store) PendingBalance() uint64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var total uint64
	for _, notes := range s.pendingIncoming {
		for _, n := range notes {
			total += n.Value
		}
	}
	return total
}

// PendingSpent returns the set of nullifiers reserved by pending
// transactions.
func (s *Store) PendingSpent() map[string]struct{} {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	set := make(map[string]struct{})
	for _, nullifiers := range s.pendingSpent {
		for _, n := range nullifiers {
			set[n] = struct{}{}
		}
	}
	return set
}

// PendingTxIDs returns the sorted ids of all pending transactions.
func (s *Store) PendingTxIDs() []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	ids := make([]string, 0, len(s.pendingSpent))
	for id := range s.pendingSpent {
		ids = append(ids, id)
	}
	for id := range s.pendingIncoming {
		if _, ok := s.pendingSpent[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasPending returns whether either half of the overlay holds txid.
func (s *Store) HasPending(txid string) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.hasPending(txid)
}

// NOTE: This method requires the store lock to be held.
func (s *Store) hasPending(txid string) bool {
	if _, ok := s.pendingSpent[txid]; ok {
		return true
	}
	_, ok := s.pendingIncoming[txid]
	return ok
}
