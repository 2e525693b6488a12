package positions

import "testing"

func TestSetAndQueryFlags(t *testing.T) {
	m := &Map{}

	m.SetBorrowing(3, true)
	m.SetUsingAsCollateral(3, true)
	m.SetUsingAsCollateral(130, true)

	if !m.IsBorrowing(3) || !m.IsUsingAsCollateral(3) || !m.IsUsingEither(3) {
		t.Fatalf("expected reserve 3 flags to be set")
	}
	if m.IsBorrowing(130) {
		t.Fatalf("reserve 130 should not be borrowing")
	}
	if !m.IsUsingAsCollateral(130) {
		t.Fatalf("reserve 130 should be collateral")
	}

	m.SetBorrowing(3, false)
	if m.IsBorrowing(3) {
		t.Fatalf("borrow flag should clear")
	}
	if !m.IsUsingAsCollateral(3) {
		t.Fatalf("collateral flag must survive clearing the borrow flag")
	}

	// Idempotent set.
	m.SetUsingAsCollateral(130, true)
	if !m.IsUsingAsCollateral(130) {
		t.Fatalf("idempotent set lost the flag")
	}
}

func TestBackwardIteration(t *testing.T) {
	m := &Map{}
	m.SetUsingAsCollateral(0, true)
	m.SetBorrowing(5, true)
	m.SetUsingAsCollateral(5, true)
	m.SetUsingAsCollateral(200, true)

	idx, ok := m.NextCollateral(201)
	if !ok || idx != 200 {
		t.Fatalf("expected 200, got %d ok=%v", idx, ok)
	}
	idx, ok = m.NextCollateral(200)
	if !ok || idx != 5 {
		t.Fatalf("expected 5, got %d ok=%v", idx, ok)
	}
	idx, ok = m.NextCollateral(5)
	if !ok || idx != 0 {
		t.Fatalf("expected 0, got %d ok=%v", idx, ok)
	}
	if _, ok = m.NextCollateral(0); ok {
		t.Fatalf("no collateral strictly below 0")
	}

	idx, ok = m.NextBorrowing(300)
	if !ok || idx != 5 {
		t.Fatalf("expected borrowing at 5, got %d ok=%v", idx, ok)
	}
	if _, ok = m.NextBorrowing(5); ok {
		t.Fatalf("no borrowing strictly below 5")
	}

	idx, ok = m.Next(6)
	if !ok || idx != 5 {
		t.Fatalf("expected either-flag hit at 5, got %d ok=%v", idx, ok)
	}
}

func TestBoundMasksStaleBits(t *testing.T) {
	m := &Map{}
	// Flags past the live reserve count must be invisible to bounded scans.
	m.SetUsingAsCollateral(10, true)
	m.SetBorrowing(10, true)
	m.SetUsingAsCollateral(2, true)

	idx, ok := m.NextCollateral(10)
	if !ok || idx != 2 {
		t.Fatalf("bounded scan leaked index 10: got %d ok=%v", idx, ok)
	}
	if got := m.CollateralCount(10); got != 1 {
		t.Fatalf("bounded count leaked: got %d", got)
	}
}

func TestCollateralCountAcrossWords(t *testing.T) {
	m := &Map{}
	for _, i := range []uint16{1, 64, 127, 128, 129, 255, 256} {
		m.SetUsingAsCollateral(i, true)
	}
	if got := m.CollateralCount(257); got != 7 {
		t.Fatalf("expected 7 collateral flags, got %d", got)
	}
	if got := m.CollateralCount(128); got != 3 {
		t.Fatalf("expected 3 collateral flags below 128, got %d", got)
	}
	if got := m.CollateralCount(0); got != 0 {
		t.Fatalf("expected empty count, got %d", got)
	}
}

func TestIsEmptyAndClone(t *testing.T) {
	m := &Map{}
	if !m.IsEmpty() {
		t.Fatalf("fresh map should be empty")
	}
	m.SetBorrowing(42, true)
	clone := m.Clone()
	m.SetBorrowing(42, false)
	if !m.IsEmpty() {
		t.Fatalf("cleared map should be empty")
	}
	if !clone.IsBorrowing(42) {
		t.Fatalf("clone must not alias the original words")
	}
}
