package waddrmgr

import (
	"encoding/json"
	"fmt"
)

// DiversifierIndexSize is the size of a diversifier index in bytes.
const DiversifierIndexSize = 11

// DiversifierIndex selects one of the many payment addresses derived from a
// single viewing key.  It is an 88 bit little-endian counter.
type DiversifierIndex [DiversifierIndexSize]byte

// Cmp compares two indexes numerically and returns -1, 0 or 1.
func (d DiversifierIndex) Cmp(o DiversifierIndex) int {
	for i := DiversifierIndexSize - 1; i >= 0; i-- {
		switch {
		case d[i] < o[i]:
			return -1
		case d[i] > o[i]:
			return 1
		}
	}
	return 0
}

// MarshalJSON encodes the index as an array of 11 numbers.
func (d DiversifierIndex) MarshalJSON() ([]byte, error) {
	nums := make([]uint16, DiversifierIndexSize)
	for i, b := range d {
		nums[i] = uint16(b)
	}
	return json.Marshal(nums)
}

// UnmarshalJSON decodes an array of exactly 11 numbers in the range
// [0, 255].
func (d *DiversifierIndex) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	if len(nums) != DiversifierIndexSize {
		return fmt.Errorf("diversifier index has %d bytes, want %d",
			len(nums), DiversifierIndexSize)
	}
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("diversifier byte %d out of range: %d", i, n)
		}
		d[i] = byte(n)
	}
	return nil
}

// ManagedAddress is a shielded payment address handed out by the wallet
// together with the diversifier index that produced it.
type ManagedAddress struct {
	Address     string
	Diversifier DiversifierIndex
}
