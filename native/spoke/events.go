package spoke

import (
	"math/big"
	"strconv"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/events"
)

// Event types emitted by the risk engine.
const (
	TypeReserveListed     = "spoke.reserve_listed"
	TypeReserveConfigured = "spoke.reserve_configured"
	TypeSupplied          = "spoke.supplied"
	TypeWithdrawn         = "spoke.withdrawn"
	TypeBorrowed          = "spoke.borrowed"
	TypeRepaid            = "spoke.repaid"
	TypeCollateralToggled = "spoke.collateral_toggled"
	TypeLiquidated        = "spoke.liquidated"
	TypeWrittenOff        = "spoke.written_off"
	TypePremiumRebased    = "spoke.premium_rebased"
)

func (e *Engine) emit(eventType string, attrs map[string]string) {
	if e.emitter == nil {
		return
	}
	e.pending = append(e.pending, events.Event{Type: eventType, Attributes: attrs})
}

func (e *Engine) emitReserve(eventType string, id ReserveID, reserve *Reserve) {
	e.emit(eventType, map[string]string{
		"reserve":    strconv.FormatUint(uint64(id), 10),
		"asset":      strconv.FormatUint(uint64(reserve.Asset), 10),
		"config_key": strconv.FormatUint(uint64(reserve.ConfigKey), 10),
	})
}

func (e *Engine) emitPosition(eventType string, id ReserveID, user uuid.UUID, assets, shares *big.Int) {
	e.emit(eventType, map[string]string{
		"reserve": strconv.FormatUint(uint64(id), 10),
		"user":    user.String(),
		"assets":  assets.String(),
		"shares":  shares.String(),
	})
}

func (e *Engine) emitFlag(eventType string, id ReserveID, user uuid.UUID, on bool) {
	e.emit(eventType, map[string]string{
		"reserve": strconv.FormatUint(uint64(id), 10),
		"user":    user.String(),
		"enabled": strconv.FormatBool(on),
	})
}

func (e *Engine) emitPremium(user uuid.UUID, premiumBps uint64) {
	e.emit(TypePremiumRebased, map[string]string{
		"user":        user.String(),
		"premium_bps": strconv.FormatUint(premiumBps, 10),
	})
}
