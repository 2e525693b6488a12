package spoke

import (
	"math/big"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/fixmath"
	"github.com/Tilt-github/aave-v4-sub006/native/positions"
	"github.com/Tilt-github/aave-v4-sub006/native/priolist"
)

// accountData is the result of one backward bitmap pass over a user's
// positions, everything in Wad base currency.
type accountData struct {
	totalCollateral *big.Int
	// weightedCollateral is collateral value scaled by each reserve's
	// collateral factor; the health-factor numerator.
	weightedCollateral *big.Int
	totalDebt          *big.Int
	collateralCount    int
	// entries orders collateral by risk tier for the weighted-premium walk;
	// populated only when requested.
	entries *priolist.List
}

func (d *accountData) healthFactor() (*big.Int, error) {
	if d.totalDebt.Sign() == 0 {
		return new(big.Int).Set(fixmath.MaxWad), nil
	}
	return fixmath.WadDivDown(d.weightedCollateral, d.totalDebt)
}

// accountData walks the bitmap newest reserve to oldest, accumulating
// collateral and debt values. Prices are fetched once per touched reserve.
// Positions supplied via the overlay stand in for their stored counterparts.
func (e *Engine) accountData(user uuid.UUID, status *positions.Map, overlay userOverlay, buildList bool) (*accountData, error) {
	if e.prices == nil {
		return nil, ErrNilPriceSource
	}
	count, err := e.state.ReserveCount()
	if err != nil {
		return nil, err
	}
	data := &accountData{
		totalCollateral:    big.NewInt(0),
		weightedCollateral: big.NewInt(0),
		totalDebt:          big.NewInt(0),
	}
	if buildList {
		data.entries = priolist.New(status.CollateralCount(count))
	}

	slot := 0
	bound := count
	for {
		idx, ok := status.Next(bound)
		if !ok {
			break
		}
		bound = idx

		reserve, err := e.requireReserve(ReserveID(idx))
		if err != nil {
			return nil, err
		}
		pos, err := e.loadPosition(user, ReserveID(idx), overlay)
		if err != nil {
			return nil, err
		}
		price, err := e.prices.GetPrice(ReserveID(idx))
		if err != nil {
			return nil, err
		}
		unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(reserve.Decimals)), nil)

		if status.IsUsingAsCollateral(idx) {
			cfg := reserve.Config(pos.ConfigKey)
			assets, err := e.ledger.PreviewRemoveByShares(reserve.Asset, pos.AddedShares)
			if err != nil {
				return nil, err
			}
			value, err := fixmath.MulDivDown(assets, price, unit)
			if err != nil {
				return nil, err
			}
			if cfg.CollateralFactorBps > 0 {
				data.totalCollateral.Add(data.totalCollateral, value)
				weighted, err := fixmath.PercentMulDown(value, cfg.CollateralFactorBps)
				if err != nil {
					return nil, err
				}
				data.weightedCollateral.Add(data.weightedCollateral, weighted)
				data.collateralCount++
				if data.entries != nil {
					if err := data.entries.Set(slot, uint16(reserve.RiskTierBps), value); err != nil {
						return nil, err
					}
					slot++
				}
			}
		}

		if status.IsBorrowing(idx) {
			index, err := e.ledger.GetDrawnIndex(reserve.Asset)
			if err != nil {
				return nil, err
			}
			owedDrawn, owedPrem, err := owedAmounts(pos, index)
			if err != nil {
				return nil, err
			}
			owed := new(big.Int).Add(owedDrawn, owedPrem)
			debt, err := fixmath.MulDivUp(owed, price, unit)
			if err != nil {
				return nil, err
			}
			data.totalDebt.Add(data.totalDebt, debt)
		}
	}
	return data, nil
}

// weightedPremium walks the sorted collateral list ascending by risk tier,
// consuming a running debt counter, and returns the basis-point premium
// reflecting only the collateral actually needed to cover the debt.
func weightedPremium(data *accountData) (uint64, error) {
	if data.entries == nil || data.totalDebt.Sign() == 0 {
		return 0, nil
	}
	data.entries.Sort()
	remaining := new(big.Int).Set(data.totalDebt)
	sum := big.NewInt(0)
	consumed := big.NewInt(0)
	for i := 0; i < data.entries.Len() && remaining.Sign() > 0; i++ {
		tier, value, ok := data.entries.Get(i)
		if !ok {
			break
		}
		take := minInt(value, remaining)
		sum.Add(sum, new(big.Int).Mul(take, new(big.Int).SetUint64(uint64(tier))))
		consumed.Add(consumed, take)
		remaining.Sub(remaining, take)
	}
	if consumed.Sign() == 0 {
		return 0, nil
	}
	return new(big.Int).Quo(sum, consumed).Uint64(), nil
}
