package wtxmgr

import (
	"encoding/json"
	"fmt"
	"sync"
)

// ByteSeq is a byte string the engine exchanges as a JSON array of numbers
// rather than base64 text.
type ByteSeq []byte

// MarshalJSON encodes the bytes as an array of numbers.
func (b ByteSeq) MarshalJSON() ([]byte, error) {
	nums := make([]uint16, len(b))
	for i, c := range b {
		nums[i] = uint16(c)
	}
	return json.Marshal(nums)
}

// UnmarshalJSON decodes an array of numbers in the range [0, 255].
func (b *ByteSeq) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte %d out of range: %d", i, n)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

// Note is a shielded value assigned to a recipient.  Notes are immutable
// once created.
type Note struct {
	Value     uint64  `json:"value"`
	Recipient ByteSeq `json:"recipient"`
	Rseed     ByteSeq `json:"rseed"`
}

// SpendableNote is a note owned by the wallet together with the data needed
// to spend it.  Witness is the opaque authentication path produced by the
// engine and Nullifier is the hex encoded tag that marks the note spent
// once it appears on chain.
type SpendableNote struct {
	Note      Note   `json:"note"`
	Witness   string `json:"witness"`
	Nullifier string `json:"nullifier"`
}

// SimplifiedNote is the history record kept for every note the wallet ever
// received.
type SimplifiedNote struct {
	Recipient string `json:"recipient"`
	Value     uint64 `json:"value"`
}

// BlockUpdate holds everything an ingested batch of blocks changes in the
// store.  It is applied in one step by ApplyBlocks.
type BlockUpdate struct {
	// Unspent is the complete new unspent set: the previously owned notes
	// with refreshed witnesses followed by the newly discovered notes.
	Unspent []SpendableNote

	// Received maps the nullifier of every newly discovered note to its
	// history record.
	Received map[string]SimplifiedNote

	// Spent lists the nullifiers revealed by the batch.
	Spent []string

	// Confirmed lists the ids of all transactions contained in the batch.
	Confirmed []string
}

// Store tracks the notes owned by a single shielded account together with
// the overlay of transactions that were created but not yet seen in a block.
type Store struct {
	mtx sync.RWMutex

	// unspent is ordered and never holds two notes with the same
	// nullifier.
	unspent []SpendableNote

	// history maps every nullifier the wallet ever owned to the note it
	// belongs to.  It only grows until the store is reset.
	history map[string]SimplifiedNote

	// pendingSpent and pendingIncoming are the two halves of the pending
	// overlay, keyed by transaction id.  They are never persisted.
	pendingSpent    map[string][]string
	pendingIncoming map[string][]Note
}

// New returns an empty store.
func New() *Store {
	return &Store{
		history:         make(map[string]SimplifiedNote),
		pendingSpent:    make(map[string][]string),
		pendingIncoming: make(map[string][]Note),
	}
}

// Balance returns the sum of the values of all unspent notes.
func (s *Store) Balance() uint64 {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var total uint64
	for i := range s.unspent {
		total += s.unspent[i].Note.Value
	}
	return total
}

// UnspentNotes returns a copy of the unspent set in order.
func (s *Store) UnspentNotes() []SpendableNote {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	notes := make([]SpendableNote, len(s.unspent))
	copy(notes, s.unspent)
	return notes
}

// History returns a copy of the nullifier history.
func (s *Store) History() map[string]SimplifiedNote {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	h := make(map[string]SimplifiedNote, len(s.history))
	for k, v := range s.history {
		h[k] = v
	}
	return h
}

// IsOwnNullifier returns whether the nullifier belongs to a note this
// wallet ever received.
func (s *Store) IsOwnNullifier(nullifier string) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	_, ok := s.history[nullifier]
	return ok
}

// NoteFromNullifier looks up the history record of a nullifier.
func (s *Store) NoteFromNullifier(nullifier string) (SimplifiedNote, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	n, ok := s.history[nullifier]
	return n, ok
}

// ApplyBlocks commits the effects of an ingested batch.  The unspent set is
// replaced first, the history is extended, the revealed nullifiers are
// removed from the unspent set and finally every pending entry confirmed by
// the batch is dropped.
func (s *Store) ApplyBlocks(u *BlockUpdate) error {
	for i := range u.Unspent {
		if u.Unspent[i].Nullifier == "" {
			str := fmt.Sprintf("unspent note %d has no nullifier", i)
			return storeError(ErrInput, str, nil)
		}
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.unspent = dedupNotes(u.Unspent)
	for nullifier, note := range u.Received {
		s.history[nullifier] = note
	}
	s.removeSpent(u.Spent)

	for _, txid := range u.Confirmed {
		if s.hasPending(txid) {
			log.Debugf("Pending transaction %v confirmed", txid)
		}
		delete(s.pendingSpent, txid)
		delete(s.pendingIncoming, txid)
	}
	return nil
}

// RemoveSpent removes every unspent note whose nullifier is listed.
// Unknown nullifiers are ignored.
func (s *Store) RemoveSpent(nullifiers []string) {
	s.mtx.Lock()
	s.removeSpent(nullifiers)
	s.mtx.Unlock()
}

// removeSpent is the single removal routine shared by block ingestion and
// transaction finalization.
//
// This function MUST be called with the store lock held for writes.
func (s *Store) removeSpent(nullifiers []string) {
	if len(nullifiers) == 0 || len(s.unspent) == 0 {
		return
	}
	spent := make(map[string]struct{}, len(nullifiers))
	for _, n := range nullifiers {
		spent[n] = struct{}{}
	}

	kept := s.unspent[:0]
	for _, note := range s.unspent {
		if _, ok := spent[note.Nullifier]; ok {
			log.Tracef("Note %v spent (value %d)", note.Nullifier,
				note.Note.Value)
			continue
		}
		kept = append(kept, note)
	}
	s.unspent = kept
}

// Restore replaces the unspent set and the history with the given values.
// The pending overlay is cleared since it never outlives a snapshot.
func (s *Store) Restore(unspent []SpendableNote, history map[string]SimplifiedNote) {
	h := make(map[string]SimplifiedNote, len(history))
	for k, v := range history {
		h[k] = v
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.unspent = dedupNotes(unspent)
	s.history = h
	s.pendingSpent = make(map[string][]string)
	s.pendingIncoming = make(map[string][]Note)
}

// Reset clears the unspent set, the history and both halves of the pending
// overlay.
func (s *Store) Reset() {
	s.Restore(nil, nil)
}

// dedupNotes copies notes keeping the first occurrence of each nullifier.
func dedupNotes(notes []SpendableNote) []SpendableNote {
	seen := make(map[string]struct{}, len(notes))
	out := make([]SpendableNote, 0, len(notes))
	for _, n := range notes {
		if _, ok := seen[n.Nullifier]; ok {
			continue
		}
		seen[n.Nullifier] = struct{}{}
		out = append(out, n)
	}
	return out
}
