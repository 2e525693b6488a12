package spoke

import "errors"

// Precondition violations, rejected with no partial effect.
var (
	ErrInvalidAmount          = errors.New("risk engine: amount must be positive")
	ErrReserveNotListed       = errors.New("risk engine: reserve not listed")
	ErrReserveExists          = errors.New("risk engine: reserve already listed")
	ErrReservePaused          = errors.New("risk engine: reserve paused")
	ErrReserveFrozen          = errors.New("risk engine: reserve frozen")
	ErrNotBorrowable          = errors.New("risk engine: reserve not borrowable")
	ErrNotCollateral          = errors.New("risk engine: reserve not enabled as collateral")
	ErrInsufficientCollateral = errors.New("risk engine: insufficient position balance")
	ErrNoDebt                 = errors.New("risk engine: position has no debt")
)

// Policy rejections, expected and recoverable by the caller.
var (
	ErrHealthFactorTooLow = errors.New("risk engine: operation would leave position unhealthy")
	ErrHealthyPosition    = errors.New("risk engine: position above liquidation threshold")
	ErrDustDebt           = errors.New("risk engine: partial liquidation would leave dust debt")
	ErrSelfLiquidation    = errors.New("risk engine: cannot liquidate own position")
)

// Invariant violations, fatal.
var (
	ErrNilLedger        = errors.New("risk engine: ledger not configured")
	ErrNilPriceSource   = errors.New("risk engine: price source not configured")
	ErrSharesUnderflow  = errors.New("risk engine: position shares underflow")
	ErrRiskTierOverflow = errors.New("risk engine: risk tier exceeds key space")
)
