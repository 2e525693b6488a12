// Package positions tracks, per user, which reserves are used as collateral
// and which carry outstanding debt. Two bits are kept per reserve index inside
// 256-bit words so risk computation never has to iterate unused slots.
package positions

import (
	"math/bits"

	"github.com/holiman/uint256"
)

// WordCapacity is the number of reserve slots packed into one word.
const WordCapacity = 128

const (
	borrowBit     = 0
	collateralBit = 1
)

var (
	// borrowMask selects every even bit of a word.
	borrowMask = uint256.Int{
		0x5555555555555555, 0x5555555555555555,
		0x5555555555555555, 0x5555555555555555,
	}
	// collateralMask selects every odd bit of a word.
	collateralMask = uint256.Int{
		0xaaaaaaaaaaaaaaaa, 0xaaaaaaaaaaaaaaaa,
		0xaaaaaaaaaaaaaaaa, 0xaaaaaaaaaaaaaaaa,
	}
	bothMask = uint256.Int{
		0xffffffffffffffff, 0xffffffffffffffff,
		0xffffffffffffffff, 0xffffffffffffffff,
	}
)

// Map records the collateral and borrowing flags for one user. The zero value
// is an empty map; words grow on demand and are never shared between users.
type Map struct {
	words []uint256.Int
}

// Clone returns a deep copy so snapshots never alias live state.
func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	clone := &Map{words: make([]uint256.Int, len(m.words))}
	copy(clone.words, m.words)
	return clone
}

func (m *Map) ensure(word int) {
	for len(m.words) <= word {
		m.words = append(m.words, uint256.Int{})
	}
}

func (m *Map) set(index uint16, bit uint, on bool) {
	word := int(index) / WordCapacity
	offset := uint(index%WordCapacity)*2 + bit
	if on {
		m.ensure(word)
		m.words[word][offset/64] |= 1 << (offset % 64)
		return
	}
	if word >= len(m.words) {
		return
	}
	m.words[word][offset/64] &^= 1 << (offset % 64)
}

func (m *Map) get(index uint16, bit uint) bool {
	word := int(index) / WordCapacity
	if m == nil || word >= len(m.words) {
		return false
	}
	offset := uint(index%WordCapacity)*2 + bit
	return m.words[word][offset/64]&(1<<(offset%64)) != 0
}

// SetBorrowing flips the borrowing flag for a reserve index. Idempotent.
func (m *Map) SetBorrowing(index uint16, on bool) { m.set(index, borrowBit, on) }

// SetUsingAsCollateral flips the collateral flag for a reserve index. Idempotent.
func (m *Map) SetUsingAsCollateral(index uint16, on bool) { m.set(index, collateralBit, on) }

// IsBorrowing reports whether the reserve index carries debt.
func (m *Map) IsBorrowing(index uint16) bool { return m.get(index, borrowBit) }

// IsUsingAsCollateral reports whether the reserve index is enabled as collateral.
func (m *Map) IsUsingAsCollateral(index uint16) bool { return m.get(index, collateralBit) }

// IsUsingEither reports whether the reserve index is in use at all.
func (m *Map) IsUsingEither(index uint16) bool {
	return m.get(index, borrowBit) || m.get(index, collateralBit)
}

// IsEmpty reports whether no reserve is in use.
func (m *Map) IsEmpty() bool {
	if m == nil {
		return true
	}
	for i := range m.words {
		if !m.words[i].IsZero() {
			return false
		}
	}
	return true
}

// CollateralCount returns how many collateral flags are set strictly below the
// given reserve index. Callers use it to size working arrays without a second
// iteration pass.
func (m *Map) CollateralCount(upperBound uint16) int {
	if m == nil {
		return 0
	}
	count := 0
	boundWord := int(upperBound) / WordCapacity
	for w := 0; w < len(m.words) && w <= boundWord; w++ {
		masked := new(uint256.Int).And(&m.words[w], &collateralMask)
		if w == boundWord {
			masked.And(masked, lowBitsMask(uint(upperBound%WordCapacity)*2))
		}
		for limb := 0; limb < 4; limb++ {
			count += bits.OnesCount64(masked[limb])
		}
	}
	return count
}

// Next returns the highest reserve index strictly below upperBound with either
// flag set. The boolean is false when no such index exists.
func (m *Map) Next(upperBound uint16) (uint16, bool) {
	return m.scan(upperBound, &bothMask)
}

// NextBorrowing returns the highest borrowing reserve index strictly below
// upperBound.
func (m *Map) NextBorrowing(upperBound uint16) (uint16, bool) {
	return m.scan(upperBound, &borrowMask)
}

// NextCollateral returns the highest collateral reserve index strictly below
// upperBound.
func (m *Map) NextCollateral(upperBound uint16) (uint16, bool) {
	return m.scan(upperBound, &collateralMask)
}

// scan walks words backward from the bound. Bits at or above the bound inside
// the boundary word are masked out first so stale flags past the live reserve
// count are never observed.
func (m *Map) scan(upperBound uint16, flagMask *uint256.Int) (uint16, bool) {
	if m == nil || upperBound == 0 {
		return 0, false
	}
	boundWord := int(upperBound) / WordCapacity
	start := boundWord
	if last := len(m.words) - 1; start > last {
		start = last
	}
	for w := start; w >= 0; w-- {
		masked := new(uint256.Int).And(&m.words[w], flagMask)
		if w == boundWord {
			masked.And(masked, lowBitsMask(uint(upperBound%WordCapacity)*2))
		}
		if masked.IsZero() {
			continue
		}
		top := masked.BitLen() - 1
		return uint16(w*WordCapacity + top/2), true
	}
	return 0, false
}

// Words returns a copy of the backing words, lowest reserve indices first.
// Persistence layers store these and rebuild the map with FromWords.
func (m *Map) Words() []uint256.Int {
	if m == nil {
		return nil
	}
	words := make([]uint256.Int, len(m.words))
	copy(words, m.words)
	return words
}

// FromWords rebuilds a map from stored words.
func FromWords(words []uint256.Int) *Map {
	m := &Map{words: make([]uint256.Int, len(words))}
	copy(m.words, words)
	return m
}

// lowBitsMask returns a word with the lowest n bits set.
func lowBitsMask(n uint) *uint256.Int {
	if n >= 256 {
		mask := bothMask
		return &mask
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), n)
	return mask.SubUint64(mask, 1)
}
