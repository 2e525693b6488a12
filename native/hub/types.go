package hub

import (
	"math"
	"math/big"

	"github.com/google/uuid"
)

// AssetID identifies a listed asset inside the ledger arena.
type AssetID uint16

// CapUnlimited is the sentinel for an uncapped supply or draw limit. Caps are
// denominated in whole tokens of the underlying asset.
const CapUnlimited = uint64(math.MaxUint64)

// Premium tracks the risk surcharge owed by a scope via the ghost-share,
// offset and realized triple. Accrued premium at any instant is
// ghostShares scaled by the drawn index, minus the offset, plus the realized
// amount. Rebasing a borrower only touches ghost shares and offset; realized
// accumulates amounts that have crystallised and stopped tracking the index.
type Premium struct {
	GhostShares *big.Int
	Offset      *big.Int
	Realized    *big.Int
}

func (p *Premium) ensure() {
	if p.GhostShares == nil {
		p.GhostShares = big.NewInt(0)
	}
	if p.Offset == nil {
		p.Offset = big.NewInt(0)
	}
	if p.Realized == nil {
		p.Realized = big.NewInt(0)
	}
}

// Clone returns a deep copy of the premium triple.
func (p *Premium) Clone() Premium {
	clone := Premium{}
	if p.GhostShares != nil {
		clone.GhostShares = new(big.Int).Set(p.GhostShares)
	}
	if p.Offset != nil {
		clone.Offset = new(big.Int).Set(p.Offset)
	}
	if p.Realized != nil {
		clone.Realized = new(big.Int).Set(p.Realized)
	}
	return clone
}

// PremiumDelta is a signed adjustment applied identically to the asset-level
// and sub-ledger-level premium triples.
type PremiumDelta struct {
	Shares   *big.Int
	Offset   *big.Int
	Realized *big.Int
}

func (d PremiumDelta) ensure() PremiumDelta {
	if d.Shares == nil {
		d.Shares = big.NewInt(0)
	}
	if d.Offset == nil {
		d.Offset = big.NewInt(0)
	}
	if d.Realized == nil {
		d.Realized = big.NewInt(0)
	}
	return d
}

// Asset is the ledger record for one listed asset. Amount fields are
// denominated in the smallest unit of the underlying; the drawn index and
// rate are Ray-scaled.
type Asset struct {
	// Underlying identifies the custody-level token this asset wraps.
	Underlying uuid.UUID
	// Liquidity is the pooled amount currently held by the ledger.
	Liquidity *big.Int
	// AddedShares is the total supply-share claim outstanding.
	AddedShares *big.Int
	// DrawnShares is the total drawn principal in share form.
	DrawnShares *big.Int
	// DrawnIndex converts drawn shares to owed principal. Monotone.
	DrawnIndex *big.Int
	// DrawnRate is the current Ray-scaled per-second rate.
	DrawnRate *big.Int
	// Premium is the asset-level premium-debt triple.
	Premium Premium
	// Deficit is written-off debt awaiting elimination.
	Deficit *big.Int
	// Swept is liquidity moved to the reinvestment collaborator.
	Swept *big.Int
	// FeeRateBps is the share of accrued interest minted to the fee receiver.
	FeeRateBps uint64
	// FeeReceiver is the spoke sub-ledger credited with fee shares.
	FeeReceiver uuid.UUID
	// Controller is the only identity allowed to sweep and reclaim.
	Controller uuid.UUID
	// LastUpdate is the unix second of the last accrual.
	LastUpdate int64
	// Decimals of the underlying asset.
	Decimals uint8
	Active   bool
}

func (a *Asset) ensure() {
	if a.Liquidity == nil {
		a.Liquidity = big.NewInt(0)
	}
	if a.AddedShares == nil {
		a.AddedShares = big.NewInt(0)
	}
	if a.DrawnShares == nil {
		a.DrawnShares = big.NewInt(0)
	}
	if a.DrawnIndex == nil || a.DrawnIndex.Sign() == 0 {
		a.DrawnIndex = new(big.Int).Set(ray)
	}
	if a.DrawnRate == nil {
		a.DrawnRate = big.NewInt(0)
	}
	if a.Deficit == nil {
		a.Deficit = big.NewInt(0)
	}
	if a.Swept == nil {
		a.Swept = big.NewInt(0)
	}
	a.Premium.ensure()
}

// Clone returns a deep copy of the asset record.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Liquidity = cloneInt(a.Liquidity)
	clone.AddedShares = cloneInt(a.AddedShares)
	clone.DrawnShares = cloneInt(a.DrawnShares)
	clone.DrawnIndex = cloneInt(a.DrawnIndex)
	clone.DrawnRate = cloneInt(a.DrawnRate)
	clone.Deficit = cloneInt(a.Deficit)
	clone.Swept = cloneInt(a.Swept)
	clone.Premium = a.Premium.Clone()
	return &clone
}

// SpokeSubledger scopes the asset's accounting to one registered spoke.
// Created lazily on first registration, never removed.
type SpokeSubledger struct {
	AddedShares *big.Int
	DrawnShares *big.Int
	Premium     Premium
	Deficit     *big.Int
	// AddCap and DrawCap are whole-token limits; CapUnlimited disables them.
	AddCap  uint64
	DrawCap uint64
	Active  bool
}

func (s *SpokeSubledger) ensure() {
	if s.AddedShares == nil {
		s.AddedShares = big.NewInt(0)
	}
	if s.DrawnShares == nil {
		s.DrawnShares = big.NewInt(0)
	}
	if s.Deficit == nil {
		s.Deficit = big.NewInt(0)
	}
	s.Premium.ensure()
}

// Clone returns a deep copy of the sub-ledger record.
func (s *SpokeSubledger) Clone() *SpokeSubledger {
	if s == nil {
		return nil
	}
	clone := *s
	clone.AddedShares = cloneInt(s.AddedShares)
	clone.DrawnShares = cloneInt(s.DrawnShares)
	clone.Deficit = cloneInt(s.Deficit)
	clone.Premium = s.Premium.Clone()
	return &clone
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
