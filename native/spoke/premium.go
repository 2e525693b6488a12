package spoke

import (
	"math/big"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/fixmath"
	"github.com/Tilt-github/aave-v4-sub006/native/hub"
	"github.com/Tilt-github/aave-v4-sub006/native/positions"
)

// settleDelta reduces the position's owed premium by the paid amount and
// returns the delta to push through the ledger alongside the payment. Full
// payment zeroes the triple; partial payment crystallises the accrued part
// into realized so it stops tracking the index until the next rebase.
func settleDelta(p *hub.Premium, index, paid *big.Int) (hub.PremiumDelta, error) {
	ensurePremium(p)
	owed, err := owedPremium(p, index)
	if err != nil {
		return hub.PremiumDelta{}, err
	}
	if paid.Cmp(owed) == 0 {
		delta := hub.PremiumDelta{
			Shares:   new(big.Int).Neg(p.GhostShares),
			Offset:   new(big.Int).Neg(p.Offset),
			Realized: new(big.Int).Neg(p.Realized),
		}
		p.GhostShares = big.NewInt(0)
		p.Offset = big.NewInt(0)
		p.Realized = big.NewInt(0)
		return delta, nil
	}
	offset, err := fixmath.RayMulUp(p.GhostShares, index)
	if err != nil {
		return hub.PremiumDelta{}, err
	}
	realized := new(big.Int).Sub(owed, paid)
	delta := hub.PremiumDelta{
		Shares:   big.NewInt(0),
		Offset:   new(big.Int).Sub(offset, p.Offset),
		Realized: new(big.Int).Sub(realized, p.Realized),
	}
	p.Offset = offset
	p.Realized = realized
	return delta, nil
}

// rebaseDelta re-bases the position's premium to the given basis-point rate
// over its current drawn shares, realizing the premium accrued so far. Owed
// premium is unchanged, so the delta is neutral at the ledger.
func rebaseDelta(p *hub.Premium, drawnShares *big.Int, premiumBps uint64, index *big.Int) (hub.PremiumDelta, error) {
	ensurePremium(p)
	owed, err := owedPremium(p, index)
	if err != nil {
		return hub.PremiumDelta{}, err
	}
	ghost, err := fixmath.PercentMulUp(drawnShares, premiumBps)
	if err != nil {
		return hub.PremiumDelta{}, err
	}
	offset, err := fixmath.RayMulUp(ghost, index)
	if err != nil {
		return hub.PremiumDelta{}, err
	}
	delta := hub.PremiumDelta{
		Shares:   new(big.Int).Sub(ghost, p.GhostShares),
		Offset:   new(big.Int).Sub(offset, p.Offset),
		Realized: new(big.Int).Sub(owed, p.Realized),
	}
	p.GhostShares = ghost
	p.Offset = offset
	p.Realized = owed
	return delta, nil
}

// propagatePremium recomputes the user's weighted risk premium and rebases
// the premium triple of every reserve the user is borrowing, pushing each
// neutral delta into the ledger. O(borrowed reserves).
func (e *Engine) propagatePremium(user uuid.UUID, status *positions.Map, overlay userOverlay) error {
	data, err := e.accountData(user, status, overlay, true)
	if err != nil {
		return err
	}
	if data.totalDebt.Sign() == 0 {
		return nil
	}
	premiumBps, err := weightedPremium(data)
	if err != nil {
		return err
	}

	count, err := e.state.ReserveCount()
	if err != nil {
		return err
	}
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
		pos, err := e.loadPosition(user, id, overlay)
		if err != nil {
			return err
		}
		index, err := e.ledger.GetDrawnIndex(reserve.Asset)
		if err != nil {
			return err
		}
		delta, err := rebaseDelta(&pos.Premium, pos.DrawnShares, premiumBps, index)
		if err != nil {
			return err
		}
		if delta.Shares.Sign() == 0 && delta.Offset.Sign() == 0 && delta.Realized.Sign() == 0 {
			continue
		}
		if err := e.ledger.RefreshPremium(reserve.Asset, e.spokeID, delta); err != nil {
			return err
		}
		if err := e.state.PutPosition(user, id, pos); err != nil {
			return err
		}
	}
	if e.logger != nil {
		e.logger.Debug("premium propagated", "user", user.String(), "premium_bps", premiumBps)
	}
	e.emitPremium(user, premiumBps)
	return nil
}
