// Package priolist provides a fixed-capacity list of (key, value) pairs packed
// into single 256-bit words so one descending sort yields entries in ascending
// key order with ties broken by descending value. The risk engine uses it to
// walk a borrower's collateral reserves in increasing risk-tier order, largest
// balance first.
package priolist

import (
	"errors"
	"math/big"
	"sort"

	"github.com/holiman/uint256"
)

// MaxKey is the largest admissible key.
const MaxKey = uint16(0xffff)

const valueBits = 224

var (
	ErrIndexOutOfRange = errors.New("priolist: index out of range")
	ErrValueTooLarge   = errors.New("priolist: value exceeds 224 bits")
)

var maxValue = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), valueBits), big.NewInt(1))

// List is a packable priority list sized exactly to the caller's element
// count. Unwritten slots stay zero and sort to the end.
type List struct {
	entries []uint256.Int
}

// New allocates a list with capacity for n entries.
func New(n int) *List {
	return &List{entries: make([]uint256.Int, n)}
}

// Len returns the list capacity, written or not.
func (l *List) Len() int { return len(l.entries) }

// Set writes the entry at position i. The key complement occupies the high
// bits above the value so the packed words order by ascending key; a marker
// bit above both fields keeps written entries ahead of empty slots.
func (l *List) Set(i int, key uint16, value *big.Int) error {
	if i < 0 || i >= len(l.entries) {
		return ErrIndexOutOfRange
	}
	if value == nil || value.Sign() < 0 || value.Cmp(maxValue) > 0 {
		return ErrValueTooLarge
	}
	packed, overflow := uint256.FromBig(value)
	if overflow {
		return ErrValueTooLarge
	}
	complement := new(uint256.Int).SetUint64(uint64(MaxKey - key))
	complement.Lsh(complement, valueBits)
	marker := new(uint256.Int).Lsh(uint256.NewInt(1), valueBits+16)
	packed.Or(packed, complement)
	packed.Or(packed, marker)
	l.entries[i] = *packed
	return nil
}

// Sort orders the packed words descending: ascending key, ties by descending
// value, unwritten slots last.
func (l *List) Sort() {
	sort.Slice(l.entries, func(a, b int) bool {
		return l.entries[a].Cmp(&l.entries[b]) > 0
	})
}

// Get unpacks the entry at position i. ok is false for unwritten slots.
func (l *List) Get(i int) (key uint16, value *big.Int, ok bool) {
	if i < 0 || i >= len(l.entries) || l.entries[i].IsZero() {
		return 0, nil, false
	}
	word := l.entries[i]
	raw := new(uint256.Int).And(&word, lowMask(valueBits))
	complement := new(uint256.Int).Rsh(&word, valueBits)
	key = MaxKey - uint16(complement.Uint64())
	return key, raw.ToBig(), true
}

func lowMask(n uint) *uint256.Int {
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), n)
	return mask.SubUint64(mask, 1)
}
