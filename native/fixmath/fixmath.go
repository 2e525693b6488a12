// Package fixmath implements the deterministic fixed-point arithmetic used by
// the ledger and risk engines. Two bases are supported: Wad (1e18) for price
// and collateral-factor arithmetic, and Ray (1e27) for interest index
// arithmetic. Every helper exists in a floor and a ceiling variant so call
// sites can round in the ledger's favour.
package fixmath

import (
	"errors"
	"math/big"
)

var (
	ErrNegativeInput  = errors.New("fixmath: negative input")
	ErrDivisionByZero = errors.New("fixmath: division by zero")
	ErrMulOverflow    = errors.New("fixmath: multiplication overflow")
)

var (
	// Wad is the 1e18 fixed-point base.
	Wad = mustBigInt("1000000000000000000")
	// Ray is the 1e27 fixed-point base.
	Ray = mustBigInt("1000000000000000000000000000")
	// PercentageFactor is the basis-point base (1e4 == 100%).
	PercentageFactor = big.NewInt(10_000)
	// MaxWad saturates health-factor results when a position carries no debt.
	MaxWad = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// VirtualAssets and VirtualShares pad share<->asset conversions so the
	// exchange rate resists manipulation while total shares are near zero.
	VirtualAssets = big.NewInt(1_000_000)
	VirtualShares = big.NewInt(1_000_000)

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	one        = big.NewInt(1)
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("fixmath: invalid big integer constant")
	}
	return v
}

// mulDiv computes a*b/den with the requested rounding, rejecting negative
// inputs, zero divisors and 256-bit overflow of the intermediate product.
func mulDiv(a, b, den *big.Int, roundUp bool) (*big.Int, error) {
	if a == nil || b == nil || den == nil || a.Sign() < 0 || b.Sign() < 0 || den.Sign() < 0 {
		return nil, ErrNegativeInput
	}
	if den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(a, b)
	if product.Cmp(maxUint256) > 0 {
		return nil, ErrMulOverflow
	}
	quo, rem := new(big.Int).QuoRem(product, den, new(big.Int))
	if roundUp && rem.Sign() != 0 {
		quo.Add(quo, one)
	}
	if quo.Cmp(maxUint256) > 0 {
		return nil, ErrMulOverflow
	}
	return quo, nil
}

// MulDivDown computes a*b/den, flooring. Used where the denominator is a unit
// scale rather than one of the fixed bases, such as price conversions.
func MulDivDown(a, b, den *big.Int) (*big.Int, error) { return mulDiv(a, b, den, false) }

// MulDivUp computes a*b/den, ceiling.
func MulDivUp(a, b, den *big.Int) (*big.Int, error) { return mulDiv(a, b, den, true) }

func WadMulDown(a, b *big.Int) (*big.Int, error) { return mulDiv(a, b, Wad, false) }
func WadMulUp(a, b *big.Int) (*big.Int, error)   { return mulDiv(a, b, Wad, true) }
func WadDivDown(a, b *big.Int) (*big.Int, error) { return mulDiv(a, Wad, b, false) }
func WadDivUp(a, b *big.Int) (*big.Int, error)   { return mulDiv(a, Wad, b, true) }

func RayMulDown(a, b *big.Int) (*big.Int, error) { return mulDiv(a, b, Ray, false) }
func RayMulUp(a, b *big.Int) (*big.Int, error)   { return mulDiv(a, b, Ray, true) }
func RayDivDown(a, b *big.Int) (*big.Int, error) { return mulDiv(a, Ray, b, false) }
func RayDivUp(a, b *big.Int) (*big.Int, error)   { return mulDiv(a, Ray, b, true) }

// PercentMulDown applies a basis-point percentage, flooring the result.
func PercentMulDown(a *big.Int, bps uint64) (*big.Int, error) {
	return mulDiv(a, new(big.Int).SetUint64(bps), PercentageFactor, false)
}

// PercentMulUp applies a basis-point percentage, ceiling the result.
func PercentMulUp(a *big.Int, bps uint64) (*big.Int, error) {
	return mulDiv(a, new(big.Int).SetUint64(bps), PercentageFactor, true)
}

// PercentDivDown divides by a basis-point percentage, flooring the result.
func PercentDivDown(a *big.Int, bps uint64) (*big.Int, error) {
	return mulDiv(a, PercentageFactor, new(big.Int).SetUint64(bps), false)
}

// PercentDivUp divides by a basis-point percentage, ceiling the result.
func PercentDivUp(a *big.Int, bps uint64) (*big.Int, error) {
	return mulDiv(a, PercentageFactor, new(big.Int).SetUint64(bps), true)
}

// ToSharesDown converts an asset amount to claim shares, flooring. The virtual
// offsets are added to both legs of the exchange rate.
func ToSharesDown(assets, totalAssets, totalShares *big.Int) (*big.Int, error) {
	return convert(assets, totalShares, VirtualShares, totalAssets, VirtualAssets, false)
}

// ToSharesUp converts an asset amount to claim shares, ceiling.
func ToSharesUp(assets, totalAssets, totalShares *big.Int) (*big.Int, error) {
	return convert(assets, totalShares, VirtualShares, totalAssets, VirtualAssets, true)
}

// ToAssetsDown converts claim shares to an asset amount, flooring.
func ToAssetsDown(shares, totalAssets, totalShares *big.Int) (*big.Int, error) {
	return convert(shares, totalAssets, VirtualAssets, totalShares, VirtualShares, false)
}

// ToAssetsUp converts claim shares to an asset amount, ceiling.
func ToAssetsUp(shares, totalAssets, totalShares *big.Int) (*big.Int, error) {
	return convert(shares, totalAssets, VirtualAssets, totalShares, VirtualShares, true)
}

func convert(amount, totalOut, virtualOut, totalIn, virtualIn *big.Int, roundUp bool) (*big.Int, error) {
	if amount == nil || totalOut == nil || totalIn == nil {
		return nil, ErrNegativeInput
	}
	num := new(big.Int).Add(totalOut, virtualOut)
	den := new(big.Int).Add(totalIn, virtualIn)
	return mulDiv(amount, num, den, roundUp)
}
