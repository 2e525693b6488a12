// Package rates provides interest-rate strategies for the asset ledger. The
// kinked model raises the borrow rate slowly while utilisation sits below the
// kink point and steeply beyond it, to encourage liquidity.
package rates

import (
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"sync"

	"github.com/Tilt-github/aave-v4-sub006/native/fixmath"
	"github.com/Tilt-github/aave-v4-sub006/native/hub"
)

var (
	ErrInvalidParams = errors.New("rates: invalid model parameters")

	secondsPerYear = big.NewInt(31_536_000)
)

// ModelParams shape how the borrow rate reacts to utilisation. Values are
// decimals, e.g. a 2% base rate is 0.02 and an 80% kink is 0.8.
type ModelParams struct {
	BaseRate float64 `json:"base_rate" toml:"base_rate"`
	Slope1   float64 `json:"slope1" toml:"slope1"`
	Slope2   float64 `json:"slope2" toml:"slope2"`
	Kink     float64 `json:"kink" toml:"kink"`
}

func (p ModelParams) validate() error {
	if p.BaseRate < 0 || p.Slope1 < 0 || p.Slope2 < 0 || p.Kink < 0 || p.Kink > 1 {
		return ErrInvalidParams
	}
	return nil
}

// DefaultParams is a reasonable starting configuration with a modest base
// rate and a kink at 80% utilisation.
var DefaultParams = ModelParams{BaseRate: 0.02, Slope1: 0.15, Slope2: 0.6, Kink: 0.8}

type model struct {
	base   *big.Rat
	slope1 *big.Rat
	slope2 *big.Rat
	kink   *big.Rat
}

func newModel(p ModelParams) *model {
	return &model{
		base:   decimalRat(p.BaseRate),
		slope1: decimalRat(p.Slope1),
		slope2: decimalRat(p.Slope2),
		kink:   decimalRat(p.Kink),
	}
}

// decimalRat parses the shortest decimal rendering of v, so a configured 0.02
// means exactly 1/50 rather than the nearest binary double.
func decimalRat(v float64) *big.Rat {
	rat, ok := new(big.Rat).SetString(strconv.FormatFloat(v, 'f', -1, 64))
	if !ok {
		return new(big.Rat)
	}
	return rat
}

// borrowAPR derives the annual borrow rate for the given utilisation.
func (m *model) borrowAPR(utilisation *big.Rat) *big.Rat {
	rate := new(big.Rat).Set(m.base)
	if utilisation.Sign() == 0 {
		return rate
	}
	if m.kink.Sign() == 0 || utilisation.Cmp(m.kink) <= 0 {
		return rate.Add(rate, new(big.Rat).Mul(m.slope1, utilisation))
	}
	rate.Add(rate, new(big.Rat).Mul(m.slope1, m.kink))
	excess := new(big.Rat).Sub(utilisation, m.kink)
	return rate.Add(rate, new(big.Rat).Mul(m.slope2, excess))
}

// KinkedModel is a per-asset kinked rate strategy implementing the ledger's
// RateStrategy interface. Parameters can be replaced at runtime through
// SetInterestRateData with JSON-encoded ModelParams.
type KinkedModel struct {
	mu       sync.RWMutex
	models   map[hub.AssetID]*model
	fallback *model
}

// NewKinkedModel constructs a strategy that applies the given parameters to
// every asset until per-asset parameters are installed.
func NewKinkedModel(params ModelParams) (*KinkedModel, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &KinkedModel{
		models:   make(map[hub.AssetID]*model),
		fallback: newModel(params),
	}, nil
}

// CalculateInterestRate returns the Ray-scaled per-second drawn rate from the
// asset's post-accrual balances. Utilisation counts drawn principal against
// everything backing supply shares.
func (k *KinkedModel) CalculateInterestRate(id hub.AssetID, liquidity, drawn, deficit, swept *big.Int) (*big.Int, error) {
	k.mu.RLock()
	m, ok := k.models[id]
	if !ok {
		m = k.fallback
	}
	k.mu.RUnlock()

	supplied := new(big.Int).Add(liquidity, drawn)
	supplied.Add(supplied, deficit)
	supplied.Add(supplied, swept)
	utilisation := new(big.Rat)
	if drawn.Sign() > 0 && supplied.Sign() > 0 {
		utilisation.SetFrac(drawn, supplied)
	}

	apr := m.borrowAPR(utilisation)
	// APR -> Ray per second, flooring.
	perSecond := new(big.Rat).Mul(apr, new(big.Rat).SetInt(fixmath.Ray))
	perSecond.Quo(perSecond, new(big.Rat).SetInt(secondsPerYear))
	return new(big.Int).Quo(perSecond.Num(), perSecond.Denom()), nil
}

// SetInterestRateData installs new JSON-encoded parameters for the asset.
func (k *KinkedModel) SetInterestRateData(id hub.AssetID, data []byte) error {
	var params ModelParams
	if err := json.Unmarshal(data, &params); err != nil {
		return err
	}
	if err := params.validate(); err != nil {
		return err
	}
	k.mu.Lock()
	k.models[id] = newModel(params)
	k.mu.Unlock()
	return nil
}

// Fixed is a constant-rate strategy used by tests and bootstrap tooling.
type Fixed struct {
	Rate *big.Int
}

func (f *Fixed) CalculateInterestRate(hub.AssetID, *big.Int, *big.Int, *big.Int, *big.Int) (*big.Int, error) {
	if f.Rate == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(f.Rate), nil
}

func (f *Fixed) SetInterestRateData(hub.AssetID, []byte) error { return nil }
