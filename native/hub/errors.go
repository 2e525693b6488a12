package hub

import "errors"

// Precondition violations. The whole operation rejects with no partial effect;
// the caller may retry with corrected input.
var (
	ErrInvalidAmount         = errors.New("hub engine: amount must be positive")
	ErrAssetNotListed        = errors.New("hub engine: asset not listed")
	ErrAssetInactive         = errors.New("hub engine: asset not active")
	ErrAssetExists           = errors.New("hub engine: asset already listed")
	ErrSpokeNotRegistered    = errors.New("hub engine: spoke not registered")
	ErrSpokeInactive         = errors.New("hub engine: spoke not active")
	ErrSupplyCapExceeded     = errors.New("hub engine: supply cap exceeded")
	ErrDrawCapExceeded       = errors.New("hub engine: draw cap exceeded")
	ErrInsufficientLiquidity = errors.New("hub engine: insufficient liquidity")
	ErrInsufficientBalance   = errors.New("hub engine: insufficient balance")
	ErrAmountExceedsOwed     = errors.New("hub engine: amount exceeds owed balance")
	ErrAmountExceedsDeficit  = errors.New("hub engine: amount exceeds recorded deficit")
	ErrAmountExceedsSwept    = errors.New("hub engine: amount exceeds swept balance")
	ErrZeroShares            = errors.New("hub engine: amount converts to zero shares")
)

// Policy rejections. Expected, recoverable by the caller.
var (
	ErrNotController = errors.New("hub engine: caller is not the reinvestment controller")
)

// Invariant violations. These indicate a caller contract bug or an exploited
// accounting edge case and always reject.
var (
	ErrPremiumInvariant     = errors.New("hub engine: premium delta breaks total owed invariant")
	ErrConservation         = errors.New("hub engine: sub-ledger totals diverge from asset totals")
	ErrDrawnSharesUnderflow = errors.New("hub engine: drawn shares underflow")
	ErrNilState             = errors.New("hub engine: state not configured")
	ErrNoRateStrategy       = errors.New("hub engine: rate strategy not configured")
)
