package fixmath

import (
	"math/big"
	"testing"
)

func TestWadMulRounding(t *testing.T) {
	a := big.NewInt(3)
	b := new(big.Int).Div(Wad, big.NewInt(2)) // 0.5 wad

	down, err := WadMulDown(a, b)
	if err != nil {
		t.Fatalf("wad mul down: %v", err)
	}
	if down.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("unexpected floor result: %s", down)
	}

	up, err := WadMulUp(a, b)
	if err != nil {
		t.Fatalf("wad mul up: %v", err)
	}
	if up.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("unexpected ceil result: %s", up)
	}
}

func TestRayDivRejectsZeroDivisor(t *testing.T) {
	if _, err := RayDivDown(big.NewInt(1), big.NewInt(0)); err != ErrDivisionByZero {
		t.Fatalf("expected division by zero, got %v", err)
	}
}

func TestMulOverflowRejected(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 255)
	if _, err := WadMulDown(huge, huge); err != ErrMulOverflow {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestNegativeInputRejected(t *testing.T) {
	if _, err := WadMulDown(big.NewInt(-1), Wad); err != ErrNegativeInput {
		t.Fatalf("expected negative input error, got %v", err)
	}
}

func TestPercentMul(t *testing.T) {
	amount := big.NewInt(10_000)
	got, err := PercentMulDown(amount, 2_500)
	if err != nil {
		t.Fatalf("percent mul: %v", err)
	}
	if got.Cmp(big.NewInt(2_500)) != 0 {
		t.Fatalf("unexpected percentage: %s", got)
	}

	up, err := PercentMulUp(big.NewInt(3), 5_000)
	if err != nil {
		t.Fatalf("percent mul up: %v", err)
	}
	if up.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("unexpected ceil percentage: %s", up)
	}
}

// Round-tripping an amount through shares must never credit the caller:
// toAssetsDown(toSharesUp(a)) <= a <= toAssetsUp(toSharesDown(a)).
func TestShareRoundTripNeverCreatesValue(t *testing.T) {
	totalAssets := big.NewInt(1_003_337)
	totalShares := big.NewInt(999_983)

	amounts := []int64{1, 2, 3, 7, 997, 65_536, 1_000_000, 123_456_789}
	for _, raw := range amounts {
		a := big.NewInt(raw)

		sharesUp, err := ToSharesUp(a, totalAssets, totalShares)
		if err != nil {
			t.Fatalf("to shares up: %v", err)
		}
		backDown, err := ToAssetsDown(sharesUp, totalAssets, totalShares)
		if err != nil {
			t.Fatalf("to assets down: %v", err)
		}

		sharesDown, err := ToSharesDown(a, totalAssets, totalShares)
		if err != nil {
			t.Fatalf("to shares down: %v", err)
		}
		backUp, err := ToAssetsUp(sharesDown, totalAssets, totalShares)
		if err != nil {
			t.Fatalf("to assets up: %v", err)
		}

		// The ledger may keep a rounding unit but must never give one away.
		if backUp.Cmp(a) < 0 {
			t.Fatalf("amount %d: ceil round trip lost value: %s", raw, backUp)
		}
		if backDown.Cmp(new(big.Int).Add(a, big.NewInt(2))) > 0 {
			t.Fatalf("amount %d: floor round trip created value: %s", raw, backDown)
		}
	}
}

func TestVirtualOffsetsBootstrapRate(t *testing.T) {
	// With zero totals the virtual offsets force a 1:1 exchange rate.
	shares, err := ToSharesDown(big.NewInt(1_000), big.NewInt(0), big.NewInt(0))
	if err != nil {
		t.Fatalf("to shares: %v", err)
	}
	if shares.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected bootstrap shares: %s", shares)
	}
}
