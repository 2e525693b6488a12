package spoke

import (
	"math/big"

	"github.com/Tilt-github/aave-v4-sub006/native/hub"
)

// ReserveID indexes a listed reserve inside the engine arena. Reserve indices
// double as position-bitmap slots, so they are dense and never reused.
type ReserveID uint16

// DynamicReserveConfig is one immutable version of a reserve's risk
// parameters. Versions are appended under an incrementing key and retained so
// positions locked to an old key keep its parameters until refreshed.
type DynamicReserveConfig struct {
	CollateralFactorBps    uint64
	MaxLiquidationBonusBps uint64
	LiquidationFeeBps      uint64
}

// Reserve is the engine-side listing of one hub asset.
type Reserve struct {
	Asset    hub.AssetID
	Decimals uint8
	// RiskTierBps orders collateral during weighted-premium computation;
	// lower tiers are consumed first.
	RiskTierBps uint64
	Paused      bool
	Frozen      bool
	Borrowable  bool
	// ConfigKey is a ring counter over the uint16 key space. Wraparound
	// silently retires the oldest surviving version; accepted bound of
	// 2^16 updates per reserve.
	ConfigKey uint16
	Configs   map[uint16]DynamicReserveConfig
}

// Config returns the parameter version under the given key, falling back to
// the current version when the key has been retired by wraparound.
func (r *Reserve) Config(key uint16) DynamicReserveConfig {
	if cfg, ok := r.Configs[key]; ok {
		return cfg
	}
	return r.Configs[r.ConfigKey]
}

// Clone returns a deep copy of the reserve record.
func (r *Reserve) Clone() *Reserve {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Configs = make(map[uint16]DynamicReserveConfig, len(r.Configs))
	for k, v := range r.Configs {
		clone.Configs[k] = v
	}
	return &clone
}

// UserPosition scopes one user's stake in one reserve.
type UserPosition struct {
	AddedShares *big.Int
	DrawnShares *big.Int
	Premium     hub.Premium
	// ConfigKey is the dynamic-config version the position was last
	// evaluated against. Refreshed on mutating entry points only.
	ConfigKey uint16
}

func (p *UserPosition) ensure() {
	if p.AddedShares == nil {
		p.AddedShares = big.NewInt(0)
	}
	if p.DrawnShares == nil {
		p.DrawnShares = big.NewInt(0)
	}
	ensurePremium(&p.Premium)
}

// IsEmpty reports whether the position holds no stake of any kind.
func (p *UserPosition) IsEmpty() bool {
	p.ensure()
	return p.AddedShares.Sign() == 0 && p.DrawnShares.Sign() == 0 &&
		p.Premium.GhostShares.Sign() == 0 && p.Premium.Realized.Sign() == 0
}

// Clone returns a deep copy of the position.
func (p *UserPosition) Clone() *UserPosition {
	if p == nil {
		return nil
	}
	clone := *p
	if p.AddedShares != nil {
		clone.AddedShares = new(big.Int).Set(p.AddedShares)
	}
	if p.DrawnShares != nil {
		clone.DrawnShares = new(big.Int).Set(p.DrawnShares)
	}
	clone.Premium = p.Premium.Clone()
	return &clone
}

func ensurePremium(p *hub.Premium) {
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

// LiquidationConfig is the process-wide liquidation policy.
type LiquidationConfig struct {
	// TargetHealthFactor is the Wad health factor liquidation restores to.
	TargetHealthFactor *big.Int
	// MaxBonusHealthFactor is the Wad health factor at or below which the
	// liquidation bonus saturates at the reserve maximum.
	MaxBonusHealthFactor *big.Int
	// BonusFactorBps derives the minimum bonus from the reserve maximum.
	BonusFactorBps uint64
	// DustThreshold is the minimum remaining debt value, in base-currency
	// Wad, below which partial liquidation is disallowed.
	DustThreshold *big.Int
}

func (c *LiquidationConfig) ensure() {
	if c.TargetHealthFactor == nil {
		c.TargetHealthFactor = big.NewInt(0)
	}
	if c.MaxBonusHealthFactor == nil {
		c.MaxBonusHealthFactor = big.NewInt(0)
	}
	if c.DustThreshold == nil {
		c.DustThreshold = big.NewInt(0)
	}
}
