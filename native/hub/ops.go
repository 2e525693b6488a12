package hub

import (
	"math/big"
	"strconv"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/fixmath"
)

// Add deposits pooled liquidity on behalf of the spoke and mints supply
// shares, rounded down so minting never favours the depositor.
func (e *Engine) Add(id AssetID, spoke uuid.UUID, amount *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset, sub, err := e.requireActivePair(id, spoke)
	if err != nil {
		return nil, err
	}
	fee, err := e.accrue(id, asset, spoke, sub)
	if err != nil {
		return nil, err
	}

	shares, err := e.toAddedSharesDown(asset, amount)
	if err != nil {
		return nil, err
	}
	if shares.Sign() == 0 {
		return nil, ErrZeroShares
	}
	if sub.AddCap != CapUnlimited {
		held := new(big.Int).Add(sub.AddedShares, shares)
		assetsAfter, err := e.toAddedAssetsUp(asset, held)
		if err != nil {
			return nil, err
		}
		if assetsAfter.Cmp(capAssets(sub.AddCap, asset.Decimals)) > 0 {
			return nil, ErrSupplyCapExceeded
		}
	}

	asset.Liquidity = new(big.Int).Add(asset.Liquidity, amount)
	asset.AddedShares = new(big.Int).Add(asset.AddedShares, shares)
	sub.AddedShares = new(big.Int).Add(sub.AddedShares, shares)

	if err := e.commit(id, spoke, asset, sub, fee); err != nil {
		return nil, err
	}
	e.emitMovement(TypeAdded, id, spoke, amount, shares)
	e.flush()
	return shares, nil
}

// Remove withdraws pooled liquidity, burning shares rounded up so the caller
// never leaves with more value than the burned claim.
func (e *Engine) Remove(id AssetID, spoke uuid.UUID, amount *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset, sub, err := e.requireActivePair(id, spoke)
	if err != nil {
		return nil, err
	}
	fee, err := e.accrue(id, asset, spoke, sub)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(asset.Liquidity) > 0 {
		return nil, ErrInsufficientLiquidity
	}
	withdrawable, err := e.toAddedAssetsDown(asset, sub.AddedShares)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(withdrawable) > 0 {
		return nil, ErrInsufficientBalance
	}
	shares, err := e.toAddedSharesUp(asset, amount)
	if err != nil {
		return nil, err
	}

	asset.Liquidity = new(big.Int).Sub(asset.Liquidity, amount)
	asset.AddedShares = new(big.Int).Sub(asset.AddedShares, shares)
	sub.AddedShares = new(big.Int).Sub(sub.AddedShares, shares)

	if err := e.commit(id, spoke, asset, sub, fee); err != nil {
		return nil, err
	}
	e.emitMovement(TypeRemoved, id, spoke, amount, shares)
	e.flush()
	return shares, nil
}

// Draw lends pooled liquidity to the spoke, minting drawn shares rounded up
// so debt is never understated.
func (e *Engine) Draw(id AssetID, spoke uuid.UUID, amount *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset, sub, err := e.requireActivePair(id, spoke)
	if err != nil {
		return nil, err
	}
	fee, err := e.accrue(id, asset, spoke, sub)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(asset.Liquidity) > 0 {
		return nil, ErrInsufficientLiquidity
	}
	if sub.DrawCap != CapUnlimited {
		drawn, err := fixmath.RayMulUp(sub.DrawnShares, asset.DrawnIndex)
		if err != nil {
			return nil, err
		}
		premium, err := premiumOwed(&sub.Premium, asset.DrawnIndex)
		if err != nil {
			return nil, err
		}
		exposure := new(big.Int).Add(drawn, premium)
		exposure.Add(exposure, amount)
		exposure.Add(exposure, sub.Deficit)
		if exposure.Cmp(capAssets(sub.DrawCap, asset.Decimals)) > 0 {
			return nil, ErrDrawCapExceeded
		}
	}

	shares, err := fixmath.RayDivUp(amount, asset.DrawnIndex)
	if err != nil {
		return nil, err
	}
	asset.Liquidity = new(big.Int).Sub(asset.Liquidity, amount)
	asset.DrawnShares = new(big.Int).Add(asset.DrawnShares, shares)
	sub.DrawnShares = new(big.Int).Add(sub.DrawnShares, shares)

	if err := e.commit(id, spoke, asset, sub, fee); err != nil {
		return nil, err
	}
	e.emitMovement(TypeDrawn, id, spoke, amount, shares)
	e.flush()
	return shares, nil
}

// Restore repays drawn principal and premium, applying the caller-supplied
// premium delta. Returns the drawn shares burned.
func (e *Engine) Restore(id AssetID, spoke uuid.UUID, drawnAmount, premiumAmount *big.Int, delta PremiumDelta) (*big.Int, error) {
	e.begin()
	defer e.end()
	return e.settle(id, spoke, drawnAmount, premiumAmount, delta, false)
}

// ReportDeficit has the same accounting shape as Restore but moves the amount
// into the deficit account instead of returning liquidity. Used when a risk
// engine determines a position cannot be made whole.
func (e *Engine) ReportDeficit(id AssetID, spoke uuid.UUID, drawnAmount, premiumAmount *big.Int, delta PremiumDelta) (*big.Int, error) {
	e.begin()
	defer e.end()
	return e.settle(id, spoke, drawnAmount, premiumAmount, delta, true)
}

func (e *Engine) settle(id AssetID, spoke uuid.UUID, drawnAmount, premiumAmount *big.Int, delta PremiumDelta, toDeficit bool) (*big.Int, error) {
	if drawnAmount == nil || premiumAmount == nil || drawnAmount.Sign() < 0 || premiumAmount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if drawnAmount.Sign() == 0 && premiumAmount.Sign() == 0 {
		return nil, ErrInvalidAmount
	}
	asset, sub, err := e.requireActivePair(id, spoke)
	if err != nil {
		return nil, err
	}
	fee, err := e.accrue(id, asset, spoke, sub)
	if err != nil {
		return nil, err
	}

	owedDrawn, err := fixmath.RayMulUp(sub.DrawnShares, asset.DrawnIndex)
	if err != nil {
		return nil, err
	}
	if drawnAmount.Cmp(owedDrawn) > 0 {
		return nil, ErrAmountExceedsOwed
	}
	owedPremium, err := premiumOwed(&sub.Premium, asset.DrawnIndex)
	if err != nil {
		return nil, err
	}
	if premiumAmount.Cmp(owedPremium) > 0 {
		return nil, ErrAmountExceedsOwed
	}

	burned, err := fixmath.RayDivDown(drawnAmount, asset.DrawnIndex)
	if err != nil {
		return nil, err
	}
	if burned.Cmp(sub.DrawnShares) > 0 || burned.Cmp(asset.DrawnShares) > 0 {
		return nil, ErrDrawnSharesUnderflow
	}
	// Full repayment burns any residual share so positions settle to zero.
	if drawnAmount.Cmp(owedDrawn) == 0 {
		burned = new(big.Int).Set(sub.DrawnShares)
	}

	settled := new(big.Int).Add(drawnAmount, premiumAmount)
	asset.DrawnShares = new(big.Int).Sub(asset.DrawnShares, burned)
	sub.DrawnShares = new(big.Int).Sub(sub.DrawnShares, burned)
	if toDeficit {
		asset.Deficit = new(big.Int).Add(asset.Deficit, settled)
		sub.Deficit = new(big.Int).Add(sub.Deficit, settled)
	} else {
		asset.Liquidity = new(big.Int).Add(asset.Liquidity, settled)
	}

	if err := e.applyPremiumDelta(asset, sub, delta, premiumAmount); err != nil {
		return nil, err
	}

	if err := e.commit(id, spoke, asset, sub, fee); err != nil {
		return nil, err
	}
	eventType := TypeRestored
	if toDeficit {
		eventType = TypeDeficitReported
	}
	e.emitMovement(eventType, id, spoke, settled, burned)
	e.emitPremium(TypePremiumRefreshed, id, spoke, delta.ensure())
	e.flush()
	return burned, nil
}

// RefreshPremium applies a premium-only rebase. The delta must leave total
// owed premium unchanged within the rounding tolerance.
func (e *Engine) RefreshPremium(id AssetID, spoke uuid.UUID, delta PremiumDelta) error {
	e.begin()
	defer e.end()
	asset, sub, err := e.requireActivePair(id, spoke)
	if err != nil {
		return err
	}
	fee, err := e.accrue(id, asset, spoke, sub)
	if err != nil {
		return err
	}
	if err := e.applyPremiumDelta(asset, sub, delta, big.NewInt(0)); err != nil {
		return err
	}
	if err := e.commit(id, spoke, asset, sub, fee); err != nil {
		return err
	}
	e.emitPremium(TypePremiumRefreshed, id, spoke, delta.ensure())
	e.flush()
	return nil
}

// applyPremiumDelta applies the signed delta identically to the asset-level
// and sub-ledger-level triples, then checks that total owed premium moved by
// exactly the settled amount within a 2-unit rounding tolerance. A larger move
// means the caller rebased debt it does not own; that is fatal.
func (e *Engine) applyPremiumDelta(asset *Asset, sub *SpokeSubledger, delta PremiumDelta, settledPremium *big.Int) error {
	delta = delta.ensure()
	before, err := premiumOwed(&sub.Premium, asset.DrawnIndex)
	if err != nil {
		return err
	}
	if err := shiftPremium(&asset.Premium, delta); err != nil {
		return err
	}
	if err := shiftPremium(&sub.Premium, delta); err != nil {
		return err
	}
	after, err := premiumOwed(&sub.Premium, asset.DrawnIndex)
	if err != nil {
		return err
	}
	// after must equal before minus the settled amount, within tolerance.
	drift := new(big.Int).Sub(before, settledPremium)
	drift.Sub(drift, after)
	if drift.CmpAbs(two) > 0 {
		return ErrPremiumInvariant
	}
	return nil
}

func shiftPremium(p *Premium, delta PremiumDelta) error {
	p.ensure()
	ghost := new(big.Int).Add(p.GhostShares, delta.Shares)
	offset := new(big.Int).Add(p.Offset, delta.Offset)
	realized := new(big.Int).Add(p.Realized, delta.Realized)
	if ghost.Sign() < 0 || offset.Sign() < 0 || realized.Sign() < 0 {
		return ErrPremiumInvariant
	}
	p.GhostShares = ghost
	p.Offset = offset
	p.Realized = realized
	return nil
}

// EliminateDeficit burns the caller's supply shares to offset another spoke's
// recorded deficit.
func (e *Engine) EliminateDeficit(id AssetID, spoke uuid.UUID, amount *big.Int, coveredSpoke uuid.UUID) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	asset, sub, err := e.requireActivePair(id, spoke)
	if err != nil {
		return nil, err
	}
	fee, err := e.accrue(id, asset, spoke, sub)
	if err != nil {
		return nil, err
	}

	covered := sub
	if coveredSpoke != spoke {
		covered = fee.subFor(coveredSpoke)
		if covered == nil {
			covered, err = e.state.GetSubledger(id, coveredSpoke)
			if err != nil {
				return nil, err
			}
			if covered == nil {
				return nil, ErrSpokeNotRegistered
			}
			covered.ensure()
		}
	}
	if amount.Cmp(covered.Deficit) > 0 {
		return nil, ErrAmountExceedsDeficit
	}
	shares, err := e.toAddedSharesUp(asset, amount)
	if err != nil {
		return nil, err
	}
	if shares.Cmp(sub.AddedShares) > 0 {
		return nil, ErrInsufficientBalance
	}

	asset.AddedShares = new(big.Int).Sub(asset.AddedShares, shares)
	sub.AddedShares = new(big.Int).Sub(sub.AddedShares, shares)
	asset.Deficit = new(big.Int).Sub(asset.Deficit, amount)
	covered.Deficit = new(big.Int).Sub(covered.Deficit, amount)

	if covered != sub {
		if err := e.state.PutSubledger(id, coveredSpoke, covered); err != nil {
			return nil, err
		}
	}
	if err := e.commit(id, spoke, asset, sub, fee); err != nil {
		return nil, err
	}
	e.emit(TypeDeficitEliminated, map[string]string{
		"asset":   strconv.FormatUint(uint64(id), 10),
		"actor":   spoke.String(),
		"covered": coveredSpoke.String(),
		"assets":  amount.String(),
		"shares":  shares.String(),
	})
	e.flush()
	return shares, nil
}

// TransferShares moves supply shares between sub-ledgers, subject to the
// receiver's supply cap.
func (e *Engine) TransferShares(id AssetID, spoke uuid.UUID, amount *big.Int, toSpoke uuid.UUID) error {
	e.begin()
	defer e.end()
	if err := e.transferShares(id, spoke, amount, toSpoke); err != nil {
		return err
	}
	e.flush()
	return nil
}

func (e *Engine) transferShares(id AssetID, spoke uuid.UUID, amount *big.Int, toSpoke uuid.UUID) error {
	if amount == nil || amount.Sign() <= 0 || toSpoke == spoke {
		return ErrInvalidAmount
	}
	asset, sub, err := e.requireActivePair(id, spoke)
	if err != nil {
		return err
	}
	fee, err := e.accrue(id, asset, spoke, sub)
	if err != nil {
		return err
	}
	if amount.Cmp(sub.AddedShares) > 0 {
		return ErrInsufficientBalance
	}

	receiver := fee.subFor(toSpoke)
	if receiver == nil {
		receiver, err = e.state.GetSubledger(id, toSpoke)
		if err != nil {
			return err
		}
		if receiver == nil {
			return ErrSpokeNotRegistered
		}
		receiver.ensure()
	}
	if receiver.AddCap != CapUnlimited {
		held := new(big.Int).Add(receiver.AddedShares, amount)
		assetsAfter, err := e.toAddedAssetsUp(asset, held)
		if err != nil {
			return err
		}
		if assetsAfter.Cmp(capAssets(receiver.AddCap, asset.Decimals)) > 0 {
			return ErrSupplyCapExceeded
		}
	}

	sub.AddedShares = new(big.Int).Sub(sub.AddedShares, amount)
	receiver.AddedShares = new(big.Int).Add(receiver.AddedShares, amount)

	if fee.subFor(toSpoke) == nil {
		if err := e.state.PutSubledger(id, toSpoke, receiver); err != nil {
			return err
		}
	}
	if err := e.commit(id, spoke, asset, sub, fee); err != nil {
		return err
	}
	e.emit(TypeSharesTransferred, map[string]string{
		"asset":  strconv.FormatUint(uint64(id), 10),
		"actor":  spoke.String(),
		"to":     toSpoke.String(),
		"shares": amount.String(),
	})
	return nil
}

// PayFeeShares moves supply shares from the caller to the fee receiver.
func (e *Engine) PayFeeShares(id AssetID, spoke uuid.UUID, amount *big.Int) error {
	e.begin()
	defer e.end()
	asset, err := e.requireAsset(id)
	if err != nil {
		return err
	}
	if err := e.transferShares(id, spoke, amount, asset.FeeReceiver); err != nil {
		return err
	}
	e.emit(TypeFeeSharesPaid, map[string]string{
		"asset":  strconv.FormatUint(uint64(id), 10),
		"actor":  spoke.String(),
		"shares": amount.String(),
	})
	e.flush()
	return nil
}

// Sweep moves idle liquidity to the external reinvestment collaborator.
// Restricted to the configured controller identity.
func (e *Engine) Sweep(id AssetID, caller uuid.UUID, amount *big.Int) error {
	e.begin()
	defer e.end()
	return e.reinvest(id, caller, amount, true)
}

// Reclaim returns previously swept liquidity to the pool.
func (e *Engine) Reclaim(id AssetID, caller uuid.UUID, amount *big.Int) error {
	e.begin()
	defer e.end()
	return e.reinvest(id, caller, amount, false)
}

func (e *Engine) reinvest(id AssetID, caller uuid.UUID, amount *big.Int, out bool) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	asset, err := e.requireAsset(id)
	if err != nil {
		return err
	}
	if caller != asset.Controller {
		return ErrNotController
	}
	fee, err := e.accrue(id, asset, uuid.Nil, nil)
	if err != nil {
		return err
	}
	eventType := TypeSwept
	if out {
		if amount.Cmp(asset.Liquidity) > 0 {
			return ErrInsufficientLiquidity
		}
		asset.Liquidity = new(big.Int).Sub(asset.Liquidity, amount)
		asset.Swept = new(big.Int).Add(asset.Swept, amount)
	} else {
		if amount.Cmp(asset.Swept) > 0 {
			return ErrAmountExceedsSwept
		}
		asset.Swept = new(big.Int).Sub(asset.Swept, amount)
		asset.Liquidity = new(big.Int).Add(asset.Liquidity, amount)
		eventType = TypeReclaimed
	}
	if err := e.persist(id, asset, nil); err != nil {
		return err
	}
	if err := fee.persist(e, id); err != nil {
		return err
	}
	e.emit(eventType, map[string]string{
		"asset":  strconv.FormatUint(uint64(id), 10),
		"actor":  caller.String(),
		"assets": amount.String(),
	})
	e.flush()
	return nil
}

// Accrue advances the asset's index and refreshes its rate without any other
// effect. Exposed so operators can checkpoint interest explicitly.
func (e *Engine) Accrue(id AssetID) error {
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
	if err := e.persist(id, asset, nil); err != nil {
		return err
	}
	if err := fee.persist(e, id); err != nil {
		return err
	}
	e.flush()
	return nil
}

// commit refreshes the rate, persists the asset, the caller sub-ledger and
// any pending fee-receiver write, in that order.
func (e *Engine) commit(id AssetID, spoke uuid.UUID, asset *Asset, sub *SpokeSubledger, fee *pendingFee) error {
	if err := e.persist(id, asset, func() error {
		return e.state.PutSubledger(id, spoke, sub)
	}); err != nil {
		return err
	}
	return fee.persist(e, id)
}

// subFor returns the pending fee sub-ledger when it is the requested spoke,
// so an operation never holds two divergent copies of one record.
func (f *pendingFee) subFor(spoke uuid.UUID) *SpokeSubledger {
	if f == nil || f.spoke != spoke {
		return nil
	}
	return f.sub
}

// VerifyConservation checks the ledger conservation invariant for an asset:
// every sub-ledger field sums to the corresponding asset-level field.
func (e *Engine) VerifyConservation(id AssetID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	asset, err := e.requireAsset(id)
	if err != nil {
		return err
	}
	spokes, err := e.state.Subledgers(id)
	if err != nil {
		return err
	}
	added := big.NewInt(0)
	drawn := big.NewInt(0)
	ghost := big.NewInt(0)
	offset := big.NewInt(0)
	realized := big.NewInt(0)
	deficit := big.NewInt(0)
	for _, spoke := range spokes {
		sub, err := e.state.GetSubledger(id, spoke)
		if err != nil {
			return err
		}
		sub.ensure()
		added.Add(added, sub.AddedShares)
		drawn.Add(drawn, sub.DrawnShares)
		ghost.Add(ghost, sub.Premium.GhostShares)
		offset.Add(offset, sub.Premium.Offset)
		realized.Add(realized, sub.Premium.Realized)
		deficit.Add(deficit, sub.Deficit)
	}
	if added.Cmp(asset.AddedShares) != 0 || drawn.Cmp(asset.DrawnShares) != 0 ||
		ghost.Cmp(asset.Premium.GhostShares) != 0 || offset.Cmp(asset.Premium.Offset) != 0 ||
		realized.Cmp(asset.Premium.Realized) != 0 || deficit.Cmp(asset.Deficit) != 0 {
		return ErrConservation
	}
	return nil
}
