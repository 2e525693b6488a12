package hub

import (
	"math/big"
	"strconv"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/events"
)

// Event types emitted by the ledger, one per state transition.
const (
	TypeAssetListed       = "hub.asset_listed"
	TypeAssetUpdated      = "hub.asset_updated"
	TypeSpokeRegistered   = "hub.spoke_registered"
	TypeSpokeUpdated      = "hub.spoke_updated"
	TypeIndexUpdated      = "hub.index_updated"
	TypeFeesAccrued       = "hub.fees_accrued"
	TypeAdded             = "hub.added"
	TypeRemoved           = "hub.removed"
	TypeDrawn             = "hub.drawn"
	TypeRestored          = "hub.restored"
	TypeDeficitReported   = "hub.deficit_reported"
	TypeDeficitEliminated = "hub.deficit_eliminated"
	TypeSharesTransferred = "hub.shares_transferred"
	TypeFeeSharesPaid     = "hub.fee_shares_paid"
	TypeSwept             = "hub.swept"
	TypeReclaimed         = "hub.reclaimed"
	TypePremiumRefreshed  = "hub.premium_refreshed"
)

func (e *Engine) emit(eventType string, attrs map[string]string) {
	if e.emitter == nil {
		return
	}
	e.pending = append(e.pending, events.Event{Type: eventType, Attributes: attrs})
}

func (e *Engine) emitMovement(eventType string, id AssetID, actor uuid.UUID, assets, shares *big.Int) {
	e.emit(eventType, map[string]string{
		"asset":  strconv.FormatUint(uint64(id), 10),
		"actor":  actor.String(),
		"assets": assets.String(),
		"shares": shares.String(),
	})
}

func (e *Engine) emitPremium(eventType string, id AssetID, actor uuid.UUID, delta PremiumDelta) {
	e.emit(eventType, map[string]string{
		"asset":          strconv.FormatUint(uint64(id), 10),
		"actor":          actor.String(),
		"shares_delta":   delta.Shares.String(),
		"offset_delta":   delta.Offset.String(),
		"realized_delta": delta.Realized.String(),
	})
}
