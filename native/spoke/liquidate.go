package spoke

import (
	"math/big"
	"strconv"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/fixmath"
	"github.com/Tilt-github/aave-v4-sub006/native/positions"
)

// Liquidate seizes collateral from an unhealthy position and cancels debt.
// The liquidator pays up to amount of the debt reserve's underlying, receives
// the seized collateral shares minus the protocol fee on the bonus portion,
// and debt is settled premium first through the ledger's restore path.
func (e *Engine) Liquidate(liquidator, user uuid.UUID, collateralID, debtID ReserveID, amount *big.Int) (*big.Int, error) {
	e.begin()
	defer e.end()
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if liquidator == user {
		return nil, ErrSelfLiquidation
	}
	collateralReserve, err := e.requireReserve(collateralID)
	if err != nil {
		return nil, err
	}
	debtReserve, err := e.requireReserve(debtID)
	if err != nil {
		return nil, err
	}
	if collateralReserve.Paused || debtReserve.Paused {
		return nil, ErrReservePaused
	}
	status, err := e.state.GetStatus(user)
	if err != nil {
		return nil, err
	}
	if !status.IsUsingAsCollateral(uint16(collateralID)) {
		return nil, ErrNotCollateral
	}
	collateralPos, err := e.loadPosition(user, collateralID, nil)
	if err != nil {
		return nil, err
	}
	debtPos, err := e.loadPosition(user, debtID, nil)
	if err != nil {
		return nil, err
	}
	cfg := collateralReserve.Config(collateralPos.ConfigKey)
	if cfg.CollateralFactorBps == 0 {
		return nil, ErrNotCollateral
	}

	data, err := e.accountData(user, status, nil, false)
	if err != nil {
		return nil, err
	}
	hf, err := data.healthFactor()
	if err != nil {
		return nil, err
	}
	if hf.Cmp(fixmath.Wad) >= 0 {
		return nil, ErrHealthyPosition
	}
	bonusBps, err := e.liquidationBonus(hf, cfg.MaxLiquidationBonusBps)
	if err != nil {
		return nil, err
	}

	index, err := e.ledger.GetDrawnIndex(debtReserve.Asset)
	if err != nil {
		return nil, err
	}
	owedDrawn, owedPrem, err := owedAmounts(debtPos, index)
	if err != nil {
		return nil, err
	}
	owedTotal := new(big.Int).Add(owedDrawn, owedPrem)
	if owedTotal.Sign() == 0 {
		return nil, ErrNoDebt
	}

	debtPrice, err := e.prices.GetPrice(debtID)
	if err != nil {
		return nil, err
	}
	collateralPrice, err := e.prices.GetPrice(collateralID)
	if err != nil {
		return nil, err
	}
	debtUnit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(debtReserve.Decimals)), nil)
	collateralUnit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(collateralReserve.Decimals)), nil)

	restoreUnits, err := e.restoreToTarget(data, cfg.CollateralFactorBps, bonusBps, debtPrice, debtUnit)
	if err != nil {
		return nil, err
	}
	debtToCover := minInt(minInt(amount, owedTotal), restoreUnits)
	if debtToCover.Sign() <= 0 {
		return nil, ErrHealthyPosition
	}

	// A partial liquidation must not strand a below-dust remainder; either the
	// caller covers the full debt or the call rejects.
	if debtToCover.Cmp(owedTotal) < 0 {
		remaining := new(big.Int).Sub(owedTotal, debtToCover)
		remainingValue, err := fixmath.MulDivDown(remaining, debtPrice, debtUnit)
		if err != nil {
			return nil, err
		}
		if remainingValue.Cmp(e.liq.DustThreshold) < 0 {
			if amount.Cmp(owedTotal) >= 0 {
				debtToCover = new(big.Int).Set(owedTotal)
			} else {
				return nil, ErrDustDebt
			}
		}
	}

	// Convert debt to collateral at the bonus rate, clamp to the position's
	// balance, and recompute debt from the clamp so the liquidator never
	// receives more than available.
	seize, err := convertDebtToCollateral(debtToCover, debtPrice, debtUnit, collateralPrice, collateralUnit, bonusBps)
	if err != nil {
		return nil, err
	}
	balance, err := e.ledger.PreviewRemoveByShares(collateralReserve.Asset, collateralPos.AddedShares)
	if err != nil {
		return nil, err
	}
	if seize.Cmp(balance) > 0 {
		seize = new(big.Int).Set(balance)
		debtToCover, err = convertCollateralToDebt(seize, debtPrice, debtUnit, collateralPrice, collateralUnit, bonusBps)
		if err != nil {
			return nil, err
		}
		if debtToCover.Sign() <= 0 {
			return nil, ErrInvalidAmount
		}
	}

	// Fee applies to the bonus portion of the seized collateral only.
	baseSeize, err := fixmath.MulDivDown(seize, fixmath.PercentageFactor, new(big.Int).SetUint64(10_000+bonusBps))
	if err != nil {
		return nil, err
	}
	bonusPortion := new(big.Int).Sub(seize, baseSeize)
	feeAssets, err := fixmath.PercentMulDown(bonusPortion, cfg.LiquidationFeeBps)
	if err != nil {
		return nil, err
	}

	seizeShares, err := e.ledger.PreviewRemove(collateralReserve.Asset, seize)
	if err != nil {
		return nil, err
	}
	if seizeShares.Cmp(collateralPos.AddedShares) > 0 {
		seizeShares = new(big.Int).Set(collateralPos.AddedShares)
	}
	feeShares, err := e.ledger.PreviewAdd(collateralReserve.Asset, feeAssets)
	if err != nil {
		return nil, err
	}
	if feeShares.Cmp(seizeShares) > 0 {
		feeShares = new(big.Int).Set(seizeShares)
	}

	payPremium := minInt(debtToCover, owedPrem)
	payDrawn := minInt(new(big.Int).Sub(debtToCover, payPremium), owedDrawn)

	delta, err := settleDelta(&debtPos.Premium, index, payPremium)
	if err != nil {
		return nil, err
	}
	burned, err := e.ledger.Restore(debtReserve.Asset, e.spokeID, payDrawn, payPremium, delta)
	if err != nil {
		return nil, err
	}
	if burned.Cmp(debtPos.DrawnShares) > 0 {
		burned = new(big.Int).Set(debtPos.DrawnShares)
	}
	debtPos.DrawnShares = new(big.Int).Sub(debtPos.DrawnShares, burned)

	// Move seized collateral shares from the target to the liquidator; the
	// fee portion goes to the hub's fee receiver.
	collateralPos.AddedShares = new(big.Int).Sub(collateralPos.AddedShares, seizeShares)
	if collateralPos.AddedShares.Sign() < 0 {
		return nil, ErrSharesUnderflow
	}
	liquidatorShares := new(big.Int).Sub(seizeShares, feeShares)
	if feeShares.Sign() > 0 {
		if err := e.ledger.PayFeeShares(collateralReserve.Asset, e.spokeID, feeShares); err != nil {
			return nil, err
		}
	}
	liqPos, liqStatus, err := e.loadUser(liquidator, collateralID)
	if err != nil {
		return nil, err
	}
	if liquidatorShares.Sign() > 0 {
		liqPos.AddedShares = new(big.Int).Add(liqPos.AddedShares, liquidatorShares)
		liqStatus.SetUsingAsCollateral(uint16(collateralID), true)
		if err := e.putUser(liquidator, collateralID, liqPos, liqStatus); err != nil {
			return nil, err
		}
	}

	if collateralPos.AddedShares.Sign() == 0 {
		status.SetUsingAsCollateral(uint16(collateralID), false)
	}
	if debtPos.DrawnShares.Sign() == 0 && debtPos.Premium.GhostShares.Sign() == 0 && debtPos.Premium.Realized.Sign() == 0 {
		status.SetBorrowing(uint16(debtID), false)
	}
	if err := e.state.PutPosition(user, collateralID, collateralPos); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(user, debtID, debtPos); err != nil {
		return nil, err
	}
	if err := e.state.PutStatus(user, status); err != nil {
		return nil, err
	}

	// A position with no collateral left anywhere cannot be made whole;
	// write off the remaining debt so it does not linger unliquidatable.
	count, err := e.state.ReserveCount()
	if err != nil {
		return nil, err
	}
	if status.CollateralCount(count) == 0 {
		if err := e.writeOff(user, status, count); err != nil {
			return nil, err
		}
	} else if err := e.propagatePremium(user, status, nil); err != nil {
		return nil, err
	}

	e.emit(TypeLiquidated, map[string]string{
		"user":               user.String(),
		"liquidator":         liquidator.String(),
		"collateral_reserve": strconv.FormatUint(uint64(collateralID), 10),
		"debt_reserve":       strconv.FormatUint(uint64(debtID), 10),
		"debt_covered":       debtToCover.String(),
		"collateral_seized":  seize.String(),
		"bonus_bps":          strconv.FormatUint(bonusBps, 10),
	})
	e.flush()
	return debtToCover, nil
}

// liquidationBonus interpolates linearly between the minimum bonus and the
// reserve maximum based on how far the health factor sits below one,
// saturating at the maximum once it reaches the configured floor.
func (e *Engine) liquidationBonus(hf *big.Int, maxBonusBps uint64) (uint64, error) {
	if hf.Cmp(e.liq.MaxBonusHealthFactor) <= 0 {
		return maxBonusBps, nil
	}
	minBonus, err := fixmath.PercentMulDown(new(big.Int).SetUint64(maxBonusBps), e.liq.BonusFactorBps)
	if err != nil {
		return 0, err
	}
	spread := new(big.Int).Sub(new(big.Int).SetUint64(maxBonusBps), minBonus)
	shortfall := new(big.Int).Sub(fixmath.Wad, hf)
	window := new(big.Int).Sub(fixmath.Wad, e.liq.MaxBonusHealthFactor)
	scaled, err := fixmath.MulDivDown(spread, shortfall, window)
	if err != nil {
		return 0, err
	}
	return minBonus.Uint64() + scaled.Uint64(), nil
}

// restoreToTarget computes, in debt-asset units, the amount of debt whose
// repayment lifts the health factor back to the configured target:
// d = (target*debt - weightedCollateral) / (target - cf*(1+bonus)).
// A non-positive denominator means no partial amount can restore the target,
// so the whole debt is liquidatable.
func (e *Engine) restoreToTarget(data *accountData, collateralFactorBps, bonusBps uint64, debtPrice, debtUnit *big.Int) (*big.Int, error) {
	target := e.liq.TargetHealthFactor
	num, err := fixmath.WadMulDown(target, data.totalDebt)
	if err != nil {
		return nil, err
	}
	num.Sub(num, data.weightedCollateral)
	if num.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	// cf*(1+bonus) in Wad: bps*bps scaled by 1e10.
	cfBonus := new(big.Int).SetUint64(collateralFactorBps)
	cfBonus.Mul(cfBonus, new(big.Int).SetUint64(10_000+bonusBps))
	cfBonus.Mul(cfBonus, big.NewInt(10_000_000_000))
	denom := new(big.Int).Sub(target, cfBonus)
	if denom.Sign() <= 0 {
		return fixmath.MulDivDown(data.totalDebt, debtUnit, debtPrice)
	}
	restoreBase, err := fixmath.WadDivDown(num, denom)
	if err != nil {
		return nil, err
	}
	return fixmath.MulDivDown(restoreBase, debtUnit, debtPrice)
}

func convertDebtToCollateral(debt, debtPrice, debtUnit, collateralPrice, collateralUnit *big.Int, bonusBps uint64) (*big.Int, error) {
	value, err := fixmath.MulDivDown(debt, debtPrice, debtUnit)
	if err != nil {
		return nil, err
	}
	value, err = fixmath.MulDivDown(value, new(big.Int).SetUint64(10_000+bonusBps), fixmath.PercentageFactor)
	if err != nil {
		return nil, err
	}
	return fixmath.MulDivDown(value, collateralUnit, collateralPrice)
}

func convertCollateralToDebt(collateral, debtPrice, debtUnit, collateralPrice, collateralUnit *big.Int, bonusBps uint64) (*big.Int, error) {
	value, err := fixmath.MulDivDown(collateral, collateralPrice, collateralUnit)
	if err != nil {
		return nil, err
	}
	value, err = fixmath.MulDivDown(value, fixmath.PercentageFactor, new(big.Int).SetUint64(10_000+bonusBps))
	if err != nil {
		return nil, err
	}
	return fixmath.MulDivDown(value, debtUnit, debtPrice)
}

// writeOff reports every remaining borrowed reserve as deficit and clears the
// position. Used when liquidation leaves no collateral behind the debt.
func (e *Engine) writeOff(user uuid.UUID, status *positions.Map, count uint16) error {
	bound := count
	for {
		idx, ok := status.NextBorrowing(bound)
		if !ok {
			break
		}
		bound = idx
		id := ReserveID(idx)
		reserve, err := e.requireReserve(id)
		if err != nil {
			return err
		}
		pos, err := e.loadPosition(user, id, nil)
		if err != nil {
			return err
		}
		index, err := e.ledger.GetDrawnIndex(reserve.Asset)
		if err != nil {
			return err
		}
		owedDrawn, owedPrem, err := owedAmounts(pos, index)
		if err != nil {
			return err
		}
		if owedDrawn.Sign() == 0 && owedPrem.Sign() == 0 {
			status.SetBorrowing(idx, false)
			continue
		}
		delta, err := settleDelta(&pos.Premium, index, owedPrem)
		if err != nil {
			return err
		}
		if _, err := e.ledger.ReportDeficit(reserve.Asset, e.spokeID, owedDrawn, owedPrem, delta); err != nil {
			return err
		}
		pos.DrawnShares = big.NewInt(0)
		status.SetBorrowing(idx, false)
		if err := e.state.PutPosition(user, id, pos); err != nil {
			return err
		}
		e.emit(TypeWrittenOff, map[string]string{
			"user":    user.String(),
			"reserve": strconv.FormatUint(uint64(id), 10),
			"drawn":   owedDrawn.String(),
			"premium": owedPrem.String(),
		})
	}
	return e.state.PutStatus(user, status)
}
