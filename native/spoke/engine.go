package spoke

import (
	"log/slog"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/events"
	"github.com/Tilt-github/aave-v4-sub006/native/fixmath"
	"github.com/Tilt-github/aave-v4-sub006/native/hub"
	"github.com/Tilt-github/aave-v4-sub006/native/positions"
)

// Ledger is the asset-ledger surface the risk engine consumes. The hub engine
// satisfies it; the engine never mutates ledger records directly, it only
// invokes these operations.
type Ledger interface {
	Add(id hub.AssetID, spoke uuid.UUID, amount *big.Int) (*big.Int, error)
	Remove(id hub.AssetID, spoke uuid.UUID, amount *big.Int) (*big.Int, error)
	Draw(id hub.AssetID, spoke uuid.UUID, amount *big.Int) (*big.Int, error)
	Restore(id hub.AssetID, spoke uuid.UUID, drawnAmount, premiumAmount *big.Int, delta hub.PremiumDelta) (*big.Int, error)
	ReportDeficit(id hub.AssetID, spoke uuid.UUID, drawnAmount, premiumAmount *big.Int, delta hub.PremiumDelta) (*big.Int, error)
	RefreshPremium(id hub.AssetID, spoke uuid.UUID, delta hub.PremiumDelta) error
	PayFeeShares(id hub.AssetID, spoke uuid.UUID, amount *big.Int) error
	GetDrawnIndex(id hub.AssetID) (*big.Int, error)
	GetUnderlying(id hub.AssetID) (uuid.UUID, uint8, error)
	PreviewRemove(id hub.AssetID, amount *big.Int) (*big.Int, error)
	PreviewAdd(id hub.AssetID, amount *big.Int) (*big.Int, error)
	PreviewRemoveByShares(id hub.AssetID, shares *big.Int) (*big.Int, error)
}

// PriceSource returns the Wad-scaled base-currency price of one whole token of
// the reserve's underlying. Implementations reject stale or invalid prices.
type PriceSource interface {
	GetPrice(id ReserveID) (*big.Int, error)
}

// Engine is the risk and liquidation engine layered over one hub sub-ledger.
// It owns per-user positions and the collateral/borrow bitmap; pooled value
// only moves through the Ledger interface.
type Engine struct {
	mu      sync.Mutex
	state   State
	ledger  Ledger
	prices  PriceSource
	spokeID uuid.UUID
	liq     LiquidationConfig
	emitter events.Emitter
	logger  *slog.Logger
	pending []events.Event
}

// NewEngine constructs a risk engine. spokeID is the identity this engine is
// registered under at the hub.
func NewEngine(state State, ledger Ledger, prices PriceSource, spokeID uuid.UUID, liq LiquidationConfig) *Engine {
	liq.ensure()
	return &Engine{
		state:   state,
		ledger:  ledger,
		prices:  prices,
		spokeID: spokeID,
		liq:     liq,
	}
}

// SetEmitter wires the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) { e.emitter = emitter }

// SetLogger wires structured logging.
func (e *Engine) SetLogger(logger *slog.Logger) { e.logger = logger }

func (e *Engine) begin() {
	e.mu.Lock()
	e.pending = e.pending[:0]
}

func (e *Engine) end() {
	e.mu.Unlock()
}

func (e *Engine) flush() {
	if e.emitter != nil {
		for _, evt := range e.pending {
			e.emitter.Emit(evt)
		}
	}
	e.pending = e.pending[:0]
}

// ListReserve appends a reserve for the given hub asset and returns its id.
// Reserve ids are dense bitmap slots and are never reused.
func (e *Engine) ListReserve(asset hub.AssetID, riskTierBps uint64, borrowable bool, cfg DynamicReserveConfig) (ReserveID, error) {
	e.begin()
	defer e.end()
	if e.ledger == nil {
		return 0, ErrNilLedger
	}
	if riskTierBps > uint64(^uint16(0)) {
		return 0, ErrRiskTierOverflow
	}
	count, err := e.state.ReserveCount()
	if err != nil {
		return 0, err
	}
	_, decimals, err := e.ledger.GetUnderlying(asset)
	if err != nil {
		return 0, err
	}
	id := ReserveID(count)
	reserve := &Reserve{
		Asset:       asset,
		Decimals:    decimals,
		RiskTierBps: riskTierBps,
		Borrowable:  borrowable,
		ConfigKey:   0,
		Configs:     map[uint16]DynamicReserveConfig{0: cfg},
	}
	if err := e.state.PutReserve(id, reserve); err != nil {
		return 0, err
	}
	if err := e.state.SetReserveCount(count + 1); err != nil {
		return 0, err
	}
	e.emitReserve(TypeReserveListed, id, reserve)
	e.flush()
	return id, nil
}

// SetDynamicConfig appends a new parameter version and advances the ring
// counter. Wraparound retires the version 2^16 updates old.
func (e *Engine) SetDynamicConfig(id ReserveID, cfg DynamicReserveConfig) error {
	e.begin()
	defer e.end()
	reserve, err := e.requireReserve(id)
	if err != nil {
		return err
	}
	reserve.ConfigKey++
	reserve.Configs[reserve.ConfigKey] = cfg
	if err := e.state.PutReserve(id, reserve); err != nil {
		return err
	}
	e.emitReserve(TypeReserveConfigured, id, reserve)
	e.flush()
	return nil
}

// SetReserveFlags updates the paused/frozen/borrowable gates.
func (e *Engine) SetReserveFlags(id ReserveID, paused, frozen, borrowable bool) error {
	e.begin()
	defer e.end()
	reserve, err := e.requireReserve(id)
	if err != nil {
		return err
	}
	reserve.Paused = paused
	reserve.Frozen = frozen
	reserve.Borrowable = borrowable
	if err := e.state.PutReserve(id, reserve); err != nil {
		return err
	}
	e.emitReserve(TypeReserveConfigured, id, reserve)
	e.flush()
	return nil
}

// Supply deposits into the reserve on the user's behalf, optionally enabling
// the deposit as collateral.
func (e *Engine) Supply(user uuid.UUID, id ReserveID, amount *big.Int, asCollateral bool) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	reserve, err := e.requireReserve(id)
	if err != nil {
		return nil, err
	}
	if reserve.Paused {
		return nil, ErrReservePaused
	}
	if reserve.Frozen {
		return nil, ErrReserveFrozen
	}
	pos, status, err := e.loadUser(user, id)
	if err != nil {
		return nil, err
	}

	shares, err := e.ledger.Add(reserve.Asset, e.spokeID, amount)
	if err != nil {
		return nil, err
	}
	pos.AddedShares = new(big.Int).Add(pos.AddedShares, shares)
	pos.ConfigKey = reserve.ConfigKey
	if asCollateral {
		status.SetUsingAsCollateral(uint16(id), true)
	}
	if err := e.putUser(user, id, pos, status); err != nil {
		return nil, err
	}
	e.emitPosition(TypeSupplied, id, user, amount, shares)
	e.flush()
	return shares, nil
}

// Withdraw removes supplied balance. Rejects when the withdrawal would drop
// the user's health factor below the liquidation threshold.
func (e *Engine) Withdraw(user uuid.UUID, id ReserveID, amount *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	reserve, err := e.requireReserve(id)
	if err != nil {
		return nil, err
	}
	if reserve.Paused {
		return nil, ErrReservePaused
	}
	pos, status, err := e.loadUser(user, id)
	if err != nil {
		return nil, err
	}

	shares, err := e.ledger.PreviewRemove(reserve.Asset, amount)
	if err != nil {
		return nil, err
	}
	if shares.Cmp(pos.AddedShares) > 0 {
		return nil, ErrInsufficientCollateral
	}
	pos.AddedShares = new(big.Int).Sub(pos.AddedShares, shares)
	pos.ConfigKey = reserve.ConfigKey
	if pos.AddedShares.Sign() == 0 {
		status.SetUsingAsCollateral(uint16(id), false)
	}

	overlay := userOverlay{id: pos}
	if err := e.requireHealthy(user, status, overlay); err != nil {
		return nil, err
	}

	burned, err := e.ledger.Remove(reserve.Asset, e.spokeID, amount)
	if err != nil {
		return nil, err
	}
	if burned.Cmp(shares) != 0 {
		// Preview and execution run at the same instant and must agree.
		return nil, ErrSharesUnderflow
	}
	if err := e.putUser(user, id, pos, status); err != nil {
		return nil, err
	}
	if err := e.propagatePremium(user, status, overlay); err != nil {
		return nil, err
	}
	e.emitPosition(TypeWithdrawn, id, user, amount, burned)
	e.flush()
	return burned, nil
}

// Borrow draws liquidity against the user's collateral.
func (e *Engine) Borrow(user uuid.UUID, id ReserveID, amount *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	reserve, err := e.requireReserve(id)
	if err != nil {
		return nil, err
	}
	if reserve.Paused {
		return nil, ErrReservePaused
	}
	if reserve.Frozen {
		return nil, ErrReserveFrozen
	}
	if !reserve.Borrowable {
		return nil, ErrNotBorrowable
	}
	pos, status, err := e.loadUser(user, id)
	if err != nil {
		return nil, err
	}

	// Validate the post-borrow health factor before touching the ledger.
	index, err := e.ledger.GetDrawnIndex(reserve.Asset)
	if err != nil {
		return nil, err
	}
	shares, err := fixmath.RayDivUp(amount, index)
	if err != nil {
		return nil, err
	}
	pos.DrawnShares = new(big.Int).Add(pos.DrawnShares, shares)
	pos.ConfigKey = reserve.ConfigKey
	status.SetBorrowing(uint16(id), true)
	overlay := userOverlay{id: pos}
	if err := e.requireHealthy(user, status, overlay); err != nil {
		return nil, err
	}

	drawn, err := e.ledger.Draw(reserve.Asset, e.spokeID, amount)
	if err != nil {
		return nil, err
	}
	if drawn.Cmp(shares) != 0 {
		return nil, ErrSharesUnderflow
	}
	if err := e.putUser(user, id, pos, status); err != nil {
		return nil, err
	}
	if err := e.propagatePremium(user, status, overlay); err != nil {
		return nil, err
	}
	e.emitPosition(TypeBorrowed, id, user, amount, drawn)
	e.flush()
	return drawn, nil
}

// Repay settles the user's debt, premium first, then drawn principal.
// Returns the amount actually applied.
func (e *Engine) Repay(user uuid.UUID, id ReserveID, amount *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	reserve, err := e.requireReserve(id)
	if err != nil {
		return nil, err
	}
	if reserve.Paused {
		return nil, ErrReservePaused
	}
	pos, status, err := e.loadUser(user, id)
	if err != nil {
		return nil, err
	}
	if !status.IsBorrowing(uint16(id)) {
		return nil, ErrNoDebt
	}

	index, err := e.ledger.GetDrawnIndex(reserve.Asset)
	if err != nil {
		return nil, err
	}
	owedDrawn, owedPremium, err := owedAmounts(pos, index)
	if err != nil {
		return nil, err
	}
	payPremium := minInt(amount, owedPremium)
	payDrawn := minInt(new(big.Int).Sub(amount, payPremium), owedDrawn)
	if payPremium.Sign() == 0 && payDrawn.Sign() == 0 {
		return nil, ErrNoDebt
	}

	delta, err := settleDelta(&pos.Premium, index, payPremium)
	if err != nil {
		return nil, err
	}
	burned, err := e.ledger.Restore(reserve.Asset, e.spokeID, payDrawn, payPremium, delta)
	if err != nil {
		return nil, err
	}
	if burned.Cmp(pos.DrawnShares) > 0 {
		burned = new(big.Int).Set(pos.DrawnShares)
	}
	pos.DrawnShares = new(big.Int).Sub(pos.DrawnShares, burned)
	pos.ConfigKey = reserve.ConfigKey
	if pos.DrawnShares.Sign() == 0 && pos.Premium.GhostShares.Sign() == 0 && pos.Premium.Realized.Sign() == 0 {
		status.SetBorrowing(uint16(id), false)
	}
	if err := e.putUser(user, id, pos, status); err != nil {
		return nil, err
	}
	if err := e.propagatePremium(user, status, userOverlay{id: pos}); err != nil {
		return nil, err
	}
	paid := new(big.Int).Add(payDrawn, payPremium)
	e.emitPosition(TypeRepaid, id, user, paid, burned)
	e.flush()
	return paid, nil
}

// SetUsingAsCollateral toggles the collateral flag. Disabling is validated
// against the resulting health factor.
func (e *Engine) SetUsingAsCollateral(user uuid.UUID, id ReserveID, on bool) error {
	e.begin()
	defer e.end()
	reserve, err := e.requireReserve(id)
	if err != nil {
		return err
	}
	if reserve.Paused {
		return ErrReservePaused
	}
	pos, status, err := e.loadUser(user, id)
	if err != nil {
		return err
	}
	if on {
		if reserve.Frozen {
			return ErrReserveFrozen
		}
		if pos.AddedShares.Sign() == 0 {
			return ErrInsufficientCollateral
		}
	}
	if status.IsUsingAsCollateral(uint16(id)) == on {
		return nil
	}
	status.SetUsingAsCollateral(uint16(id), on)
	pos.ConfigKey = reserve.ConfigKey
	overlay := userOverlay{id: pos}
	if !on {
		if err := e.requireHealthy(user, status, overlay); err != nil {
			return err
		}
	}
	if err := e.putUser(user, id, pos, status); err != nil {
		return err
	}
	if !on {
		if err := e.propagatePremium(user, status, overlay); err != nil {
			return err
		}
	}
	e.emitFlag(TypeCollateralToggled, id, user, on)
	e.flush()
	return nil
}

// RefreshUserPremium recomputes the user's weighted risk premium and rebases
// every borrowed reserve at the hub. Total owed premium is unchanged.
func (e *Engine) RefreshUserPremium(user uuid.UUID) error {
	e.begin()
	defer e.end()
	status, err := e.state.GetStatus(user)
	if err != nil {
		return err
	}
	if err := e.propagatePremium(user, status, nil); err != nil {
		return err
	}
	e.flush()
	return nil
}

// HealthFactor returns the user's current Wad health factor without mutating
// any state or config key.
func (e *Engine) HealthFactor(user uuid.UUID) (*big.Int, error) {
	e.begin()
	defer e.end()
	status, err := e.state.GetStatus(user)
	if err != nil {
		return nil, err
	}
	data, err := e.accountData(user, status, nil, false)
	if err != nil {
		return nil, err
	}
	return data.healthFactor()
}

// GetPosition returns a copy of the user's position for one reserve.
func (e *Engine) GetPosition(user uuid.UUID, id ReserveID) (*UserPosition, error) {
	e.begin()
	defer e.end()
	pos, _, err := e.loadUser(user, id)
	if err != nil {
		return nil, err
	}
	return pos, nil
}

// --- helpers ---

// userOverlay carries in-flight position mutations so health and premium
// passes observe the operation's effects before they are persisted.
type userOverlay map[ReserveID]*UserPosition

func (e *Engine) requireReserve(id ReserveID) (*Reserve, error) {
	reserve, err := e.state.GetReserve(id)
	if err != nil {
		return nil, err
	}
	if reserve == nil {
		return nil, ErrReserveNotListed
	}
	return reserve, nil
}

func (e *Engine) loadUser(user uuid.UUID, id ReserveID) (*UserPosition, *positions.Map, error) {
	pos, err := e.state.GetPosition(user, id)
	if err != nil {
		return nil, nil, err
	}
	if pos == nil {
		pos = &UserPosition{}
	}
	pos.ensure()
	status, err := e.state.GetStatus(user)
	if err != nil {
		return nil, nil, err
	}
	return pos, status, nil
}

func (e *Engine) loadPosition(user uuid.UUID, id ReserveID, overlay userOverlay) (*UserPosition, error) {
	if overlay != nil {
		if pos, ok := overlay[id]; ok {
			return pos, nil
		}
	}
	pos, err := e.state.GetPosition(user, id)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &UserPosition{}
	}
	pos.ensure()
	return pos, nil
}

func (e *Engine) putUser(user uuid.UUID, id ReserveID, pos *UserPosition, status *positions.Map) error {
	if err := e.state.PutPosition(user, id, pos); err != nil {
		return err
	}
	return e.state.PutStatus(user, status)
}

// requireHealthy rejects when the post-operation health factor falls below
// the liquidation threshold.
func (e *Engine) requireHealthy(user uuid.UUID, status *positions.Map, overlay userOverlay) error {
	data, err := e.accountData(user, status, overlay, false)
	if err != nil {
		return err
	}
	hf, err := data.healthFactor()
	if err != nil {
		return err
	}
	if hf.Cmp(fixmath.Wad) < 0 {
		return ErrHealthFactorTooLow
	}
	return nil
}

func owedAmounts(pos *UserPosition, index *big.Int) (drawn, premium *big.Int, err error) {
	drawn, err = fixmath.RayMulUp(pos.DrawnShares, index)
	if err != nil {
		return nil, nil, err
	}
	premium, err = owedPremium(&pos.Premium, index)
	if err != nil {
		return nil, nil, err
	}
	return drawn, premium, nil
}

func owedPremium(p *hub.Premium, index *big.Int) (*big.Int, error) {
	ensurePremium(p)
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

func minInt(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
