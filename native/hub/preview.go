package hub

import (
	"math/big"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/fixmath"
)

// Preview and view methods simulate accrual on a working copy of the asset
// record and never write state. Buffered events from the simulated accrual are
// discarded, not flushed.

// projected loads the asset and advances its copy to the current time.
func (e *Engine) projected(id AssetID) (*Asset, error) {
	asset, err := e.requireAsset(id)
	if err != nil {
		return nil, err
	}
	if _, err := e.accrue(id, asset, uuid.Nil, nil); err != nil {
		return nil, err
	}
	return asset, nil
}

// PreviewAdd returns the supply shares a deposit of the given size would mint.
func (e *Engine) PreviewAdd(id AssetID, amount *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.projected(id)
	if err != nil {
		return nil, err
	}
	return e.toAddedSharesDown(asset, amount)
}

// PreviewRemove returns the supply shares a withdrawal of the given size
// would burn.
func (e *Engine) PreviewRemove(id AssetID, amount *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.projected(id)
	if err != nil {
		return nil, err
	}
	return e.toAddedSharesUp(asset, amount)
}

// PreviewAddByShares returns the asset value of minting the given supply
// shares, rounded against the depositor.
func (e *Engine) PreviewAddByShares(id AssetID, shares *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if shares == nil || shares.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.projected(id)
	if err != nil {
		return nil, err
	}
	return e.toAddedAssetsUp(asset, shares)
}

// PreviewRemoveByShares returns the asset value released by burning the given
// supply shares, rounded against the withdrawer.
func (e *Engine) PreviewRemoveByShares(id AssetID, shares *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if shares == nil || shares.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.projected(id)
	if err != nil {
		return nil, err
	}
	return e.toAddedAssetsDown(asset, shares)
}

// PreviewDraw returns the drawn shares a borrow of the given size would mint.
func (e *Engine) PreviewDraw(id AssetID, amount *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.projected(id)
	if err != nil {
		return nil, err
	}
	return fixmath.RayDivUp(amount, asset.DrawnIndex)
}

// PreviewRestore returns the drawn shares a repayment of the given size would
// burn.
func (e *Engine) PreviewRestore(id AssetID, amount *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.projected(id)
	if err != nil {
		return nil, err
	}
	return fixmath.RayDivDown(amount, asset.DrawnIndex)
}

// PreviewDrawByShares returns the asset value owed for minting the given
// drawn shares.
func (e *Engine) PreviewDrawByShares(id AssetID, shares *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if shares == nil || shares.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.projected(id)
	if err != nil {
		return nil, err
	}
	return fixmath.RayMulUp(shares, asset.DrawnIndex)
}

// PreviewRestoreByShares returns the asset value that burning the given drawn
// shares repays.
func (e *Engine) PreviewRestoreByShares(id AssetID, shares *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if shares == nil || shares.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	asset, err := e.projected(id)
	if err != nil {
		return nil, err
	}
	return fixmath.RayMulUp(shares, asset.DrawnIndex)
}

// SpokeOwed is a spoke's projected debt against one asset, split by kind.
type SpokeOwed struct {
	Drawn   *big.Int
	Premium *big.Int
}

// GetOwed returns the spoke's projected drawn and premium debt.
func (e *Engine) GetOwed(id AssetID, spoke uuid.UUID) (*SpokeOwed, error) {
	e.begin()
	defer e.end()
	asset, err := e.projected(id)
	if err != nil {
		return nil, err
	}
	sub, err := e.state.GetSubledger(id, spoke)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSpokeNotRegistered
	}
	sub.ensure()
	drawn, err := fixmath.RayMulUp(sub.DrawnShares, asset.DrawnIndex)
	if err != nil {
		return nil, err
	}
	premium, err := premiumOwed(&sub.Premium, asset.DrawnIndex)
	if err != nil {
		return nil, err
	}
	return &SpokeOwed{Drawn: drawn, Premium: premium}, nil
}

// GetAddedAssets returns the projected asset value of the spoke's supply
// shares, rounded down.
func (e *Engine) GetAddedAssets(id AssetID, spoke uuid.UUID) (*big.Int, error) {
	e.begin()
	defer e.end()
	asset, err := e.projected(id)
	if err != nil {
		return nil, err
	}
	sub, err := e.state.GetSubledger(id, spoke)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSpokeNotRegistered
	}
	sub.ensure()
	return e.toAddedAssetsDown(asset, sub.AddedShares)
}

// GetAddedShares returns the spoke's raw supply share balance.
func (e *Engine) GetAddedShares(id AssetID, spoke uuid.UUID) (*big.Int, error) {
	e.begin()
	defer e.end()
	sub, err := e.state.GetSubledger(id, spoke)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSpokeNotRegistered
	}
	sub.ensure()
	return sub.AddedShares, nil
}

// GetDrawnIndex returns the projected drawn index.
func (e *Engine) GetDrawnIndex(id AssetID) (*big.Int, error) {
	e.begin()
	defer e.end()
	asset, err := e.projected(id)
	if err != nil {
		return nil, err
	}
	return asset.DrawnIndex, nil
}

// GetDrawnRate returns the current per-second drawn rate.
func (e *Engine) GetDrawnRate(id AssetID) (*big.Int, error) {
	e.begin()
	defer e.end()
	asset, err := e.requireAsset(id)
	if err != nil {
		return nil, err
	}
	return asset.DrawnRate, nil
}

// GetLiquidity returns the asset's idle pooled liquidity.
func (e *Engine) GetLiquidity(id AssetID) (*big.Int, error) {
	e.begin()
	defer e.end()
	asset, err := e.requireAsset(id)
	if err != nil {
		return nil, err
	}
	return asset.Liquidity, nil
}

// GetDeficit returns the spoke's recorded deficit.
func (e *Engine) GetDeficit(id AssetID, spoke uuid.UUID) (*big.Int, error) {
	e.begin()
	defer e.end()
	sub, err := e.state.GetSubledger(id, spoke)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSpokeNotRegistered
	}
	sub.ensure()
	return sub.Deficit, nil
}

// GetUnderlying returns the underlying token identity and its decimals.
func (e *Engine) GetUnderlying(id AssetID) (uuid.UUID, uint8, error) {
	e.begin()
	defer e.end()
	asset, err := e.requireAsset(id)
	if err != nil {
		return uuid.Nil, 0, err
	}
	return asset.Underlying, asset.Decimals, nil
}

// GetAsset returns a copy of the full asset record.
func (e *Engine) GetAsset(id AssetID) (*Asset, error) {
	e.begin()
	defer e.end()
	return e.requireAsset(id)
}

// GetSubledger returns a copy of the spoke's sub-ledger record.
func (e *Engine) GetSubledger(id AssetID, spoke uuid.UUID) (*SpokeSubledger, error) {
	e.begin()
	defer e.end()
	sub, err := e.state.GetSubledger(id, spoke)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSpokeNotRegistered
	}
	sub.ensure()
	return sub, nil
}
