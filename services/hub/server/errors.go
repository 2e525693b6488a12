package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Tilt-github/aave-v4-sub006/native/common"
	"github.com/Tilt-github/aave-v4-sub006/native/hub"
	"github.com/Tilt-github/aave-v4-sub006/native/spoke"
)

// notFoundErrors surface as 404: the addressed record does not exist.
var notFoundErrors = []error{
	hub.ErrAssetNotListed,
	hub.ErrSpokeNotRegistered,
	spoke.ErrReserveNotListed,
	ErrPriceUnset,
}

// conflictErrors surface as 409: valid requests rejected by ledger policy.
var conflictErrors = []error{
	hub.ErrSupplyCapExceeded,
	hub.ErrDrawCapExceeded,
	hub.ErrInsufficientLiquidity,
	hub.ErrInsufficientBalance,
	hub.ErrNotController,
	hub.ErrAssetInactive,
	hub.ErrSpokeInactive,
	spoke.ErrReservePaused,
	spoke.ErrReserveFrozen,
	spoke.ErrNotBorrowable,
	spoke.ErrHealthFactorTooLow,
	spoke.ErrHealthyPosition,
	spoke.ErrDustDebt,
	spoke.ErrSelfLiquidation,
}

// internalErrors surface as 500: invariant violations.
var internalErrors = []error{
	hub.ErrPremiumInvariant,
	hub.ErrConservation,
	hub.ErrDrawnSharesUnderflow,
	hub.ErrNilState,
	hub.ErrNoRateStrategy,
	spoke.ErrNilLedger,
	spoke.ErrNilPriceSource,
	spoke.ErrSharesUnderflow,
	spoke.ErrRiskTierOverflow,
}

func statusFor(err error) int {
	if errors.Is(err, common.ErrModulePaused) {
		return http.StatusServiceUnavailable
	}
	for _, candidate := range notFoundErrors {
		if errors.Is(err, candidate) {
			return http.StatusNotFound
		}
	}
	for _, candidate := range conflictErrors {
		if errors.Is(err, candidate) {
			return http.StatusConflict
		}
	}
	for _, candidate := range internalErrors {
		if errors.Is(err, candidate) {
			return http.StatusInternalServerError
		}
	}
	return http.StatusBadRequest
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
