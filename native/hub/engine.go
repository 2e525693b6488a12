package hub

import (
	"log/slog"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/events"
	"github.com/Tilt-github/aave-v4-sub006/native/fixmath"
)

var (
	ray            = fixmath.Ray
	secondsPerYear = big.NewInt(31_536_000)
	two            = big.NewInt(2)
)

// RateStrategy is the pluggable interest-rate collaborator invoked by the
// ledger on every accrual-affecting mutation.
type RateStrategy interface {
	// CalculateInterestRate returns the new Ray-scaled per-second drawn rate
	// given the asset's post-accrual balances.
	CalculateInterestRate(id AssetID, liquidity, drawn, deficit, swept *big.Int) (*big.Int, error)
	// SetInterestRateData replaces the strategy's parameters for the asset.
	SetInterestRateData(id AssetID, data []byte) error
}

// Engine is the asset ledger. It owns pooled liquidity per asset and the
// share-form claims against it, scoped per registered spoke. Operations are
// serialized by the engine mutex and atomic: state mutations only land via
// Put after all validation passes, and events flush on success only.
type Engine struct {
	mu      sync.Mutex
	state   State
	emitter events.Emitter
	logger  *slog.Logger
	rates   map[AssetID]RateStrategy
	now     func() int64
	pending []events.Event
}

// NewEngine constructs a ledger engine over the given state.
func NewEngine(state State) *Engine {
	return &Engine{
		state: state,
		rates: make(map[AssetID]RateStrategy),
		now:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter wires the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) { e.emitter = emitter }

// SetLogger wires structured logging.
func (e *Engine) SetLogger(logger *slog.Logger) { e.logger = logger }

// SetTimeSource overrides the clock; tests use this to drive accrual.
func (e *Engine) SetTimeSource(now func() int64) { e.now = now }

func (e *Engine) begin() {
	e.mu.Lock()
	e.pending = e.pending[:0]
}

func (e *Engine) end() {
	e.mu.Unlock()
}

// flush delivers buffered events after the operation has fully committed.
func (e *Engine) flush() {
	if e.emitter != nil {
		for _, evt := range e.pending {
			e.emitter.Emit(evt)
		}
	}
	e.pending = e.pending[:0]
}

// ListAsset creates the ledger record for a new asset. The fee receiver is
// registered as an uncapped sub-ledger so fee shares always have a home.
func (e *Engine) ListAsset(id AssetID, underlying uuid.UUID, decimals uint8, feeRateBps uint64, feeReceiver, controller uuid.UUID, strategy RateStrategy) error {
	e.begin()
	defer e.end()
	if e.state == nil {
		return ErrNilState
	}
	if strategy == nil {
		return ErrNoRateStrategy
	}
	existing, err := e.state.GetAsset(id)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrAssetExists
	}
	asset := &Asset{
		Underlying:  underlying,
		FeeRateBps:  feeRateBps,
		FeeReceiver: feeReceiver,
		Controller:  controller,
		LastUpdate:  e.now(),
		Decimals:    decimals,
		Active:      true,
	}
	asset.ensure()
	if err := e.state.PutAsset(id, asset); err != nil {
		return err
	}
	feeSub := &SpokeSubledger{AddCap: CapUnlimited, DrawCap: 0, Active: true}
	feeSub.ensure()
	if err := e.state.PutSubledger(id, feeReceiver, feeSub); err != nil {
		return err
	}
	e.rates[id] = strategy
	e.emit(TypeAssetListed, map[string]string{
		"asset":        strconv.FormatUint(uint64(id), 10),
		"underlying":   underlying.String(),
		"decimals":     strconv.FormatUint(uint64(decimals), 10),
		"fee_rate_bps": strconv.FormatUint(feeRateBps, 10),
	})
	e.flush()
	return nil
}

// RegisterSpoke creates or updates the sub-ledger for a spoke. Sub-ledgers
// are created lazily here and never removed.
func (e *Engine) RegisterSpoke(id AssetID, spoke uuid.UUID, addCap, drawCap uint64) error {
	e.begin()
	defer e.end()
	if e.state == nil {
		return ErrNilState
	}
	asset, err := e.state.GetAsset(id)
	if err != nil {
		return err
	}
	if asset == nil {
		return ErrAssetNotListed
	}
	sub, err := e.state.GetSubledger(id, spoke)
	if err != nil {
		return err
	}
	eventType := TypeSpokeUpdated
	if sub == nil {
		sub = &SpokeSubledger{}
		eventType = TypeSpokeRegistered
	}
	sub.ensure()
	sub.AddCap = addCap
	sub.DrawCap = drawCap
	sub.Active = true
	if err := e.state.PutSubledger(id, spoke, sub); err != nil {
		return err
	}
	e.emit(eventType, map[string]string{
		"asset": strconv.FormatUint(uint64(id), 10),
		"spoke": spoke.String(),
	})
	e.flush()
	return nil
}

// SetSpokeActive toggles a spoke's access to the asset.
func (e *Engine) SetSpokeActive(id AssetID, spoke uuid.UUID, active bool) error {
	e.begin()
	defer e.end()
	_, sub, err := e.loadPair(id, spoke)
	if err != nil {
		return err
	}
	sub.Active = active
	return e.state.PutSubledger(id, spoke, sub)
}

// SetCaps updates the spoke's supply and draw limits.
func (e *Engine) SetCaps(id AssetID, spoke uuid.UUID, addCap, drawCap uint64) error {
	e.begin()
	defer e.end()
	_, sub, err := e.loadPair(id, spoke)
	if err != nil {
		return err
	}
	sub.AddCap = addCap
	sub.DrawCap = drawCap
	return e.state.PutSubledger(id, spoke, sub)
}

// SetAssetActive toggles the whole asset.
func (e *Engine) SetAssetActive(id AssetID, active bool) error {
	e.begin()
	defer e.end()
	asset, err := e.requireAsset(id)
	if err != nil {
		return err
	}
	asset.Active = active
	return e.state.PutAsset(id, asset)
}

// SetFeeRate updates the liquidity fee taken from accrued interest.
func (e *Engine) SetFeeRate(id AssetID, feeRateBps uint64) error {
	e.begin()
	defer e.end()
	asset, err := e.requireAsset(id)
	if err != nil {
		return err
	}
	fee, err := e.accrue(id, asset, uuid.Nil, nil)
	if err != nil {
		return err
	}
	asset.FeeRateBps = feeRateBps
	if err := e.persist(id, asset, nil); err != nil {
		return err
	}
	if err := fee.persist(e, id); err != nil {
		return err
	}
	e.emit(TypeAssetUpdated, map[string]string{
		"asset":        strconv.FormatUint(uint64(id), 10),
		"fee_rate_bps": strconv.FormatUint(feeRateBps, 10),
	})
	e.flush()
	return nil
}

// SetRateData forwards opaque parameters to the asset's rate strategy.
func (e *Engine) SetRateData(id AssetID, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	strategy, ok := e.rates[id]
	if !ok {
		return ErrNoRateStrategy
	}
	return strategy.SetInterestRateData(id, data)
}

// --- conversions ---

// totalAddedAssets is the asset value backing supply shares:
// liquidity + swept + deficit + drawn principal + accrued premium.
func (e *Engine) totalAddedAssets(a *Asset) (*big.Int, error) {
	drawn, err := fixmath.RayMulUp(a.DrawnShares, a.DrawnIndex)
	if err != nil {
		return nil, err
	}
	premium, err := premiumOwed(&a.Premium, a.DrawnIndex)
	if err != nil {
		return nil, err
	}
	total := new(big.Int).Add(a.Liquidity, a.Swept)
	total.Add(total, a.Deficit)
	total.Add(total, drawn)
	total.Add(total, premium)
	return total, nil
}

// premiumOwed computes the accrued premium for a scope:
// ghostShares at the drawn index, minus the offset, plus the realized amount.
func premiumOwed(p *Premium, index *big.Int) (*big.Int, error) {
	p.ensure()
	ghostAssets, err := fixmath.RayMulUp(p.GhostShares, index)
	if err != nil {
		return nil, err
	}
	owed := new(big.Int).Sub(ghostAssets, p.Offset)
	owed.Add(owed, p.Realized)
	if owed.Sign() < 0 {
		owed.SetInt64(0)
	}
	return owed, nil
}

func (e *Engine) toAddedSharesDown(a *Asset, amount *big.Int) (*big.Int, error) {
	total, err := e.totalAddedAssets(a)
	if err != nil {
		return nil, err
	}
	return fixmath.ToSharesDown(amount, total, a.AddedShares)
}

func (e *Engine) toAddedSharesUp(a *Asset, amount *big.Int) (*big.Int, error) {
	total, err := e.totalAddedAssets(a)
	if err != nil {
		return nil, err
	}
	return fixmath.ToSharesUp(amount, total, a.AddedShares)
}

func (e *Engine) toAddedAssetsDown(a *Asset, shares *big.Int) (*big.Int, error) {
	total, err := e.totalAddedAssets(a)
	if err != nil {
		return nil, err
	}
	return fixmath.ToAssetsDown(shares, total, a.AddedShares)
}

func (e *Engine) toAddedAssetsUp(a *Asset, shares *big.Int) (*big.Int, error) {
	total, err := e.totalAddedAssets(a)
	if err != nil {
		return nil, err
	}
	return fixmath.ToAssetsUp(shares, total, a.AddedShares)
}

// --- accrual ---

// pendingFee defers the fee-receiver sub-ledger write until the whole
// operation has validated, keeping accrual atomic with its trigger.
type pendingFee struct {
	spoke uuid.UUID
	sub   *SpokeSubledger
}

func (f *pendingFee) persist(e *Engine, id AssetID) error {
	if f == nil || f.sub == nil {
		return nil
	}
	return e.state.PutSubledger(id, f.spoke, f.sub)
}

// accrue advances the drawn index by simple interest over the elapsed time and
// mints fee shares from the interest delta. Idempotent within the same second.
// When the fee receiver is the calling spoke, fee shares land on callerSub so
// the two views of the record cannot diverge.
func (e *Engine) accrue(id AssetID, a *Asset, callerSpoke uuid.UUID, callerSub *SpokeSubledger) (*pendingFee, error) {
	now := e.now()
	elapsed := now - a.LastUpdate
	if elapsed <= 0 {
		return nil, nil
	}
	if a.DrawnShares.Sign() == 0 && a.Premium.GhostShares.Sign() == 0 {
		a.LastUpdate = now
		return nil, nil
	}

	newIndex, err := accruedIndex(a.DrawnIndex, a.DrawnRate, elapsed)
	if err != nil {
		return nil, err
	}
	indexDelta := new(big.Int).Sub(newIndex, a.DrawnIndex)
	if indexDelta.Sign() == 0 {
		a.LastUpdate = now
		return nil, nil
	}

	var fee *pendingFee
	if a.FeeRateBps > 0 {
		bearing := new(big.Int).Add(a.DrawnShares, a.Premium.GhostShares)
		interest, err := fixmath.RayMulDown(bearing, indexDelta)
		if err != nil {
			return nil, err
		}
		feeAmount, err := fixmath.PercentMulDown(interest, a.FeeRateBps)
		if err != nil {
			return nil, err
		}
		if feeAmount.Sign() > 0 {
			fee, err = e.mintFeeShares(id, a, newIndex, feeAmount, callerSpoke, callerSub)
			if err != nil {
				return nil, err
			}
		}
	}

	a.DrawnIndex = newIndex
	a.LastUpdate = now
	e.emit(TypeIndexUpdated, map[string]string{
		"asset": strconv.FormatUint(uint64(id), 10),
		"index": newIndex.String(),
		"rate":  a.DrawnRate.String(),
	})
	return fee, nil
}

// mintFeeShares converts the fee amount to supply shares at the post-accrual
// total minus the fee itself, so the mint never overestimates growth, and
// credits them to the fee receiver's sub-ledger.
func (e *Engine) mintFeeShares(id AssetID, a *Asset, newIndex, feeAmount *big.Int, callerSpoke uuid.UUID, callerSub *SpokeSubledger) (*pendingFee, error) {
	drawn, err := fixmath.RayMulUp(a.DrawnShares, newIndex)
	if err != nil {
		return nil, err
	}
	premium, err := premiumOwed(&a.Premium, newIndex)
	if err != nil {
		return nil, err
	}
	base := new(big.Int).Add(a.Liquidity, a.Swept)
	base.Add(base, a.Deficit)
	base.Add(base, drawn)
	base.Add(base, premium)
	base.Sub(base, feeAmount)
	feeShares, err := fixmath.ToSharesDown(feeAmount, base, a.AddedShares)
	if err != nil {
		return nil, err
	}
	if feeShares.Sign() == 0 {
		return nil, nil
	}

	var fee *pendingFee
	if callerSub != nil && callerSpoke == a.FeeReceiver {
		callerSub.AddedShares.Add(callerSub.AddedShares, feeShares)
	} else {
		feeSub, err := e.state.GetSubledger(id, a.FeeReceiver)
		if err != nil {
			return nil, err
		}
		if feeSub == nil {
			feeSub = &SpokeSubledger{AddCap: CapUnlimited, Active: true}
		}
		feeSub.ensure()
		feeSub.AddedShares.Add(feeSub.AddedShares, feeShares)
		fee = &pendingFee{spoke: a.FeeReceiver, sub: feeSub}
	}
	a.AddedShares = new(big.Int).Add(a.AddedShares, feeShares)
	e.emit(TypeFeesAccrued, map[string]string{
		"asset":      strconv.FormatUint(uint64(id), 10),
		"fee_assets": feeAmount.String(),
		"fee_shares": feeShares.String(),
	})
	return fee, nil
}

// accruedIndex applies simple linear interest to the index for the elapsed
// seconds: index * (1 + rate*elapsed) with the rate already per second.
func accruedIndex(index, ratePerSecond *big.Int, elapsed int64) (*big.Int, error) {
	if ratePerSecond.Sign() == 0 {
		return new(big.Int).Set(index), nil
	}
	growth := new(big.Int).Mul(ratePerSecond, big.NewInt(elapsed))
	factor := new(big.Int).Add(ray, growth)
	return fixmath.RayMulDown(index, factor)
}

// refreshRate asks the strategy for a new per-second rate from the asset's
// post-operation balances. Runs at the end of every mutating operation.
func (e *Engine) refreshRate(id AssetID, a *Asset) error {
	strategy, ok := e.rates[id]
	if !ok {
		return ErrNoRateStrategy
	}
	drawn, err := fixmath.RayMulUp(a.DrawnShares, a.DrawnIndex)
	if err != nil {
		return err
	}
	premium, err := premiumOwed(&a.Premium, a.DrawnIndex)
	if err != nil {
		return err
	}
	drawn.Add(drawn, premium)
	rate, err := strategy.CalculateInterestRate(id, a.Liquidity, drawn, a.Deficit, a.Swept)
	if err != nil {
		return err
	}
	a.DrawnRate = rate
	if e.logger != nil {
		e.logger.Debug("rate refreshed", "asset", uint64(id), "rate", rate.String())
	}
	return nil
}

// --- loading helpers ---

func (e *Engine) requireAsset(id AssetID) (*Asset, error) {
	if e.state == nil {
		return nil, ErrNilState
	}
	asset, err := e.state.GetAsset(id)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrAssetNotListed
	}
	asset.ensure()
	return asset, nil
}

func (e *Engine) loadPair(id AssetID, spoke uuid.UUID) (*Asset, *SpokeSubledger, error) {
	asset, err := e.requireAsset(id)
	if err != nil {
		return nil, nil, err
	}
	sub, err := e.state.GetSubledger(id, spoke)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, ErrSpokeNotRegistered
	}
	sub.ensure()
	return asset, sub, nil
}

// requireActivePair loads the asset and sub-ledger and enforces the active
// flags checked by every spoke-facing operation.
func (e *Engine) requireActivePair(id AssetID, spoke uuid.UUID) (*Asset, *SpokeSubledger, error) {
	asset, sub, err := e.loadPair(id, spoke)
	if err != nil {
		return nil, nil, err
	}
	if !asset.Active {
		return nil, nil, ErrAssetInactive
	}
	if !sub.Active {
		return nil, nil, ErrSpokeInactive
	}
	return asset, sub, nil
}

// persist refreshes the rate from post-operation balances and writes the asset
// and, when given, the caller's sub-ledger.
func (e *Engine) persist(id AssetID, asset *Asset, subWrite func() error) error {
	if err := e.refreshRate(id, asset); err != nil {
		return err
	}
	if err := e.state.PutAsset(id, asset); err != nil {
		return err
	}
	if subWrite != nil {
		return subWrite()
	}
	return nil
}

// capAssets converts a whole-token cap into smallest units.
func capAssets(cap uint64, decimals uint8) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return scale.Mul(scale, new(big.Int).SetUint64(cap))
}
