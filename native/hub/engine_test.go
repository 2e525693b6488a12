package hub

import (
	"errors"
	"math/big"
	"testing"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/events"
	"github.com/Tilt-github/aave-v4-sub006/native/fixmath"
)

type fixedRate struct {
	rate *big.Int
}

func (f *fixedRate) CalculateInterestRate(AssetID, *big.Int, *big.Int, *big.Int, *big.Int) (*big.Int, error) {
	return new(big.Int).Set(f.rate), nil
}

func (f *fixedRate) SetInterestRateData(AssetID, []byte) error { return nil }

const yearSeconds = 31_536_000

var (
	assetOne  = AssetID(1)
	spokeA    = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	spokeB    = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	feeRecv   = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	treasurer = uuid.MustParse("44444444-4444-4444-4444-444444444444")
)

// tenPercentPerSecond is a 10% simple annual rate expressed per second in Ray.
func tenPercentPerSecond() *big.Int {
	annual, _ := new(big.Int).SetString("100000000000000000000000000", 10)
	return annual.Div(annual, big.NewInt(yearSeconds))
}

func wad(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fixmath.Wad)
}

type fixture struct {
	engine   *Engine
	state    *MemoryState
	recorder *events.Recorder
	clock    int64
}

func newFixture(t *testing.T, feeRateBps uint64, rate *big.Int) *fixture {
	t.Helper()
	f := &fixture{state: NewMemoryState(), recorder: &events.Recorder{}}
	f.engine = NewEngine(f.state)
	f.engine.SetEmitter(f.recorder)
	f.engine.SetTimeSource(func() int64 { return f.clock })
	if err := f.engine.ListAsset(assetOne, uuid.New(), 18, feeRateBps, feeRecv, treasurer, &fixedRate{rate: rate}); err != nil {
		t.Fatalf("list asset: %v", err)
	}
	if err := f.engine.RegisterSpoke(assetOne, spokeA, CapUnlimited, CapUnlimited); err != nil {
		t.Fatalf("register spoke A: %v", err)
	}
	if err := f.engine.RegisterSpoke(assetOne, spokeB, CapUnlimited, CapUnlimited); err != nil {
		t.Fatalf("register spoke B: %v", err)
	}
	return f
}

func (f *fixture) advance(seconds int64) { f.clock += seconds }

func assertClose(t *testing.T, got, want, tolerance *big.Int, label string) {
	t.Helper()
	diff := new(big.Int).Sub(got, want)
	if diff.CmpAbs(tolerance) > 0 {
		t.Fatalf("%s: got %s want %s (tolerance %s)", label, got, want, tolerance)
	}
}

func TestAddDrawAccrueRestoreLifecycle(t *testing.T) {
	f := newFixture(t, 0, tenPercentPerSecond())

	shares, err := f.engine.Add(assetOne, spokeA, wad(1000))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if shares.Cmp(wad(1000)) != 0 {
		t.Fatalf("first deposit shares = %s, want %s", shares, wad(1000))
	}

	drawnShares, err := f.engine.Draw(assetOne, spokeA, wad(500))
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if drawnShares.Cmp(wad(500)) != 0 {
		t.Fatalf("drawn shares = %s, want %s", drawnShares, wad(500))
	}

	f.advance(yearSeconds)

	tolerance := big.NewInt(1_000_000_000_000)
	owed, err := f.engine.GetOwed(assetOne, spokeA)
	if err != nil {
		t.Fatalf("get owed: %v", err)
	}
	assertClose(t, owed.Drawn, wad(550), tolerance, "owed after one year at 10%")

	index, err := f.engine.GetDrawnIndex(assetOne)
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	wantIndex, _ := new(big.Int).SetString("1100000000000000000000000000", 10)
	assertClose(t, index, wantIndex, big.NewInt(100_000_000), "drawn index after one year")

	burned, err := f.engine.Restore(assetOne, spokeA, owed.Drawn, big.NewInt(0), PremiumDelta{})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if burned.Cmp(wad(500)) != 0 {
		t.Fatalf("full restore burned %s shares, want %s", burned, wad(500))
	}

	after, err := f.engine.GetOwed(assetOne, spokeA)
	if err != nil {
		t.Fatalf("get owed after restore: %v", err)
	}
	if after.Drawn.Sign() != 0 || after.Premium.Sign() != 0 {
		t.Fatalf("debt should be zero after full restore, got drawn=%s premium=%s", after.Drawn, after.Premium)
	}

	value, err := f.engine.GetAddedAssets(assetOne, spokeA)
	if err != nil {
		t.Fatalf("get added assets: %v", err)
	}
	assertClose(t, value, wad(1050), tolerance, "supplier value captured the interest")

	if err := f.engine.VerifyConservation(assetOne); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestFeeSharesAccrueToReceiver(t *testing.T) {
	f := newFixture(t, 1000, tenPercentPerSecond())

	if _, err := f.engine.Add(assetOne, spokeA, wad(1000)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.engine.Draw(assetOne, spokeA, wad(500)); err != nil {
		t.Fatalf("draw: %v", err)
	}

	f.advance(yearSeconds)
	if err := f.engine.Accrue(assetOne); err != nil {
		t.Fatalf("accrue: %v", err)
	}

	tolerance := big.NewInt(1_000_000_000_000)
	feeValue, err := f.engine.GetAddedAssets(assetOne, feeRecv)
	if err != nil {
		t.Fatalf("fee receiver value: %v", err)
	}
	assertClose(t, feeValue, wad(5), tolerance, "10% fee on 50 interest")

	supplierValue, err := f.engine.GetAddedAssets(assetOne, spokeA)
	if err != nil {
		t.Fatalf("supplier value: %v", err)
	}
	assertClose(t, supplierValue, wad(1045), tolerance, "supplier keeps interest net of fee")

	if err := f.engine.VerifyConservation(assetOne); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestFeeSharesAccrueAcrossSpokes(t *testing.T) {
	f := newFixture(t, 1000, tenPercentPerSecond())

	if _, err := f.engine.Add(assetOne, spokeA, wad(1000)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.engine.Draw(assetOne, spokeA, wad(500)); err != nil {
		t.Fatalf("draw A: %v", err)
	}
	// A dust-sized drawer rides the same index as the large one.
	if _, err := f.engine.Draw(assetOne, spokeB, big.NewInt(1)); err != nil {
		t.Fatalf("draw B: %v", err)
	}

	f.advance(yearSeconds)
	if err := f.engine.Accrue(assetOne); err != nil {
		t.Fatalf("accrue: %v", err)
	}

	tolerance := big.NewInt(1_000_000_000_000)
	feeValue, err := f.engine.GetAddedAssets(assetOne, feeRecv)
	if err != nil {
		t.Fatalf("fee receiver value: %v", err)
	}
	assertClose(t, feeValue, wad(5), tolerance, "10% fee on pooled interest")

	owedB, err := f.engine.GetOwed(assetOne, spokeB)
	if err != nil {
		t.Fatalf("dust drawer owed: %v", err)
	}
	if owedB.Drawn.Cmp(big.NewInt(1)) < 0 || owedB.Drawn.Cmp(big.NewInt(2)) > 0 {
		t.Fatalf("dust drawer owes %s, want 1 or 2 units", owedB.Drawn)
	}
	// Full settlement of the dust debt burns its single drawn share.
	burned, err := f.engine.Restore(assetOne, spokeB, owedB.Drawn, big.NewInt(0), PremiumDelta{})
	if err != nil {
		t.Fatalf("restore dust: %v", err)
	}
	if burned.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("dust restore burned %s shares, want 1", burned)
	}

	supplierValue, err := f.engine.GetAddedAssets(assetOne, spokeA)
	if err != nil {
		t.Fatalf("supplier value: %v", err)
	}
	assertClose(t, supplierValue, wad(1045), tolerance, "supplier keeps interest net of fee")

	if err := f.engine.VerifyConservation(assetOne); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestIndexMonotoneAcrossAccruals(t *testing.T) {
	f := newFixture(t, 0, tenPercentPerSecond())
	if _, err := f.engine.Add(assetOne, spokeA, wad(100)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.engine.Draw(assetOne, spokeA, wad(60)); err != nil {
		t.Fatalf("draw: %v", err)
	}

	last := new(big.Int).Set(ray)
	for i := 0; i < 10; i++ {
		f.advance(3600)
		if err := f.engine.Accrue(assetOne); err != nil {
			t.Fatalf("accrue %d: %v", i, err)
		}
		index, err := f.engine.GetDrawnIndex(assetOne)
		if err != nil {
			t.Fatalf("get index %d: %v", i, err)
		}
		if index.Cmp(last) < 0 {
			t.Fatalf("index regressed from %s to %s", last, index)
		}
		last = index
	}
}

func TestSupplyCapEnforced(t *testing.T) {
	f := newFixture(t, 0, big.NewInt(0))
	if err := f.engine.RegisterSpoke(assetOne, spokeB, 100, CapUnlimited); err != nil {
		t.Fatalf("register capped spoke: %v", err)
	}
	if _, err := f.engine.Add(assetOne, spokeB, wad(90)); err != nil {
		t.Fatalf("add under cap: %v", err)
	}
	if _, err := f.engine.Add(assetOne, spokeB, wad(20)); !errors.Is(err, ErrSupplyCapExceeded) {
		t.Fatalf("add over cap: got %v, want ErrSupplyCapExceeded", err)
	}
}

func TestDrawCapCountsDeficit(t *testing.T) {
	f := newFixture(t, 0, big.NewInt(0))
	if _, err := f.engine.Add(assetOne, spokeA, wad(1000)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.engine.RegisterSpoke(assetOne, spokeB, CapUnlimited, 100); err != nil {
		t.Fatalf("register capped spoke: %v", err)
	}
	if _, err := f.engine.Draw(assetOne, spokeB, wad(60)); err != nil {
		t.Fatalf("draw under cap: %v", err)
	}
	if _, err := f.engine.ReportDeficit(assetOne, spokeB, wad(60), big.NewInt(0), PremiumDelta{}); err != nil {
		t.Fatalf("report deficit: %v", err)
	}
	// 60 of recorded deficit still counts against the 100 cap.
	if _, err := f.engine.Draw(assetOne, spokeB, wad(50)); !errors.Is(err, ErrDrawCapExceeded) {
		t.Fatalf("draw over cap with deficit: got %v, want ErrDrawCapExceeded", err)
	}
	if _, err := f.engine.Draw(assetOne, spokeB, wad(30)); err != nil {
		t.Fatalf("draw within remaining cap: %v", err)
	}
}

func TestLiquidityBounds(t *testing.T) {
	f := newFixture(t, 0, big.NewInt(0))
	if _, err := f.engine.Add(assetOne, spokeA, wad(100)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.engine.Draw(assetOne, spokeA, wad(200)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientLiquidity", err)
	}
	if _, err := f.engine.Add(assetOne, spokeB, wad(100)); err != nil {
		t.Fatalf("add B: %v", err)
	}
	// Spoke A cannot withdraw spoke B's claim even though liquidity covers it.
	if _, err := f.engine.Remove(assetOne, spokeA, wad(150)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overwithdraw: got %v, want ErrInsufficientBalance", err)
	}
}

func TestPremiumDeltaNeutrality(t *testing.T) {
	f := newFixture(t, 0, tenPercentPerSecond())
	if _, err := f.engine.Add(assetOne, spokeA, wad(1000)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.engine.Draw(assetOne, spokeA, wad(500)); err != nil {
		t.Fatalf("draw: %v", err)
	}

	index, err := f.engine.GetDrawnIndex(assetOne)
	if err != nil {
		t.Fatalf("get index: %v", err)
	}

	// A rebase that adds ghost shares with a matching offset leaves total owed
	// premium unchanged and must be accepted.
	ghost := wad(50)
	offset, err := fixmath.RayMulUp(ghost, index)
	if err != nil {
		t.Fatalf("offset: %v", err)
	}
	delta := PremiumDelta{Shares: ghost, Offset: offset}
	if err := f.engine.RefreshPremium(assetOne, spokeA, delta); err != nil {
		t.Fatalf("neutral refresh rejected: %v", err)
	}

	// Premium now grows with the index while drawn principal grows alongside.
	f.advance(yearSeconds)
	owed, err := f.engine.GetOwed(assetOne, spokeA)
	if err != nil {
		t.Fatalf("get owed: %v", err)
	}
	tolerance := big.NewInt(1_000_000_000_000)
	assertClose(t, owed.Premium, wad(5), tolerance, "premium accrued on 50 ghost shares at 10%")

	// A delta that silently erases owed premium must be rejected.
	bad := PremiumDelta{Offset: wad(5)}
	if err := f.engine.RefreshPremium(assetOne, spokeA, bad); !errors.Is(err, ErrPremiumInvariant) {
		t.Fatalf("lossy refresh: got %v, want ErrPremiumInvariant", err)
	}
	if err := f.engine.VerifyConservation(assetOne); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestPremiumRestoreSettlesRealized(t *testing.T) {
	f := newFixture(t, 0, tenPercentPerSecond())
	if _, err := f.engine.Add(assetOne, spokeA, wad(1000)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.engine.Draw(assetOne, spokeA, wad(500)); err != nil {
		t.Fatalf("draw: %v", err)
	}
	ghost := wad(100)
	index, err := f.engine.GetDrawnIndex(assetOne)
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	offset, err := fixmath.RayMulUp(ghost, index)
	if err != nil {
		t.Fatalf("offset: %v", err)
	}
	if err := f.engine.RefreshPremium(assetOne, spokeA, PremiumDelta{Shares: ghost, Offset: offset}); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	f.advance(yearSeconds)
	owed, err := f.engine.GetOwed(assetOne, spokeA)
	if err != nil {
		t.Fatalf("get owed: %v", err)
	}
	if owed.Premium.Sign() <= 0 {
		t.Fatalf("expected accrued premium, got %s", owed.Premium)
	}

	// Pay the premium in full. The delta removes the ghost shares and offset
	// so remaining owed premium is zero.
	delta := PremiumDelta{
		Shares: new(big.Int).Neg(ghost),
		Offset: new(big.Int).Neg(offset),
	}
	if _, err := f.engine.Restore(assetOne, spokeA, big.NewInt(0), owed.Premium, delta); err != nil {
		t.Fatalf("restore premium: %v", err)
	}
	after, err := f.engine.GetOwed(assetOne, spokeA)
	if err != nil {
		t.Fatalf("get owed after: %v", err)
	}
	if after.Premium.CmpAbs(two) > 0 {
		t.Fatalf("premium should settle to zero, got %s", after.Premium)
	}
	if err := f.engine.VerifyConservation(assetOne); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestDeficitReportAndElimination(t *testing.T) {
	f := newFixture(t, 0, big.NewInt(0))
	if _, err := f.engine.Add(assetOne, spokeA, wad(1000)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.engine.Draw(assetOne, spokeB, wad(400)); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if _, err := f.engine.ReportDeficit(assetOne, spokeB, wad(400), big.NewInt(0), PremiumDelta{}); err != nil {
		t.Fatalf("report deficit: %v", err)
	}

	deficit, err := f.engine.GetDeficit(assetOne, spokeB)
	if err != nil {
		t.Fatalf("get deficit: %v", err)
	}
	if deficit.Cmp(wad(400)) != 0 {
		t.Fatalf("deficit = %s, want %s", deficit, wad(400))
	}
	// Deficit still backs supply shares, so supplier value is unchanged.
	value, err := f.engine.GetAddedAssets(assetOne, spokeA)
	if err != nil {
		t.Fatalf("supplier value: %v", err)
	}
	assertClose(t, value, wad(1000), big.NewInt(10), "deficit keeps shares whole")

	if _, err := f.engine.EliminateDeficit(assetOne, spokeA, wad(500), spokeB); !errors.Is(err, ErrAmountExceedsDeficit) {
		t.Fatalf("over-eliminate: got %v, want ErrAmountExceedsDeficit", err)
	}
	if _, err := f.engine.EliminateDeficit(assetOne, spokeA, wad(400), spokeB); err != nil {
		t.Fatalf("eliminate: %v", err)
	}

	deficit, err = f.engine.GetDeficit(assetOne, spokeB)
	if err != nil {
		t.Fatalf("get deficit after: %v", err)
	}
	if deficit.Sign() != 0 {
		t.Fatalf("deficit should be cleared, got %s", deficit)
	}
	value, err = f.engine.GetAddedAssets(assetOne, spokeA)
	if err != nil {
		t.Fatalf("supplier value after: %v", err)
	}
	assertClose(t, value, wad(600), big.NewInt(10), "supplier absorbed the loss")
	if err := f.engine.VerifyConservation(assetOne); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestTransferSharesRespectsReceiverCap(t *testing.T) {
	f := newFixture(t, 0, big.NewInt(0))
	if _, err := f.engine.Add(assetOne, spokeA, wad(500)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.engine.RegisterSpoke(assetOne, spokeB, 100, CapUnlimited); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := f.engine.TransferShares(assetOne, spokeA, wad(200), spokeB); !errors.Is(err, ErrSupplyCapExceeded) {
		t.Fatalf("transfer over cap: got %v, want ErrSupplyCapExceeded", err)
	}
	if err := f.engine.TransferShares(assetOne, spokeA, wad(100), spokeA); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("self transfer: got %v, want ErrInvalidAmount", err)
	}
	if err := f.engine.TransferShares(assetOne, spokeA, wad(80), spokeB); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	got, err := f.engine.GetAddedShares(assetOne, spokeB)
	if err != nil {
		t.Fatalf("get shares: %v", err)
	}
	if got.Cmp(wad(80)) != 0 {
		t.Fatalf("receiver shares = %s, want %s", got, wad(80))
	}
	if err := f.engine.VerifyConservation(assetOne); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestSweepAndReclaim(t *testing.T) {
	f := newFixture(t, 0, big.NewInt(0))
	if _, err := f.engine.Add(assetOne, spokeA, wad(300)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.engine.Sweep(assetOne, spokeA, wad(100)); !errors.Is(err, ErrNotController) {
		t.Fatalf("sweep by non-controller: got %v, want ErrNotController", err)
	}
	if err := f.engine.Sweep(assetOne, treasurer, wad(100)); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	liquidity, err := f.engine.GetLiquidity(assetOne)
	if err != nil {
		t.Fatalf("get liquidity: %v", err)
	}
	if liquidity.Cmp(wad(200)) != 0 {
		t.Fatalf("liquidity after sweep = %s, want %s", liquidity, wad(200))
	}
	// Swept balance still backs supply shares.
	value, err := f.engine.GetAddedAssets(assetOne, spokeA)
	if err != nil {
		t.Fatalf("supplier value: %v", err)
	}
	assertClose(t, value, wad(300), big.NewInt(10), "swept amount keeps backing shares")

	if err := f.engine.Reclaim(assetOne, treasurer, wad(150)); !errors.Is(err, ErrAmountExceedsSwept) {
		t.Fatalf("over-reclaim: got %v, want ErrAmountExceedsSwept", err)
	}
	if err := f.engine.Reclaim(assetOne, treasurer, wad(100)); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	liquidity, err = f.engine.GetLiquidity(assetOne)
	if err != nil {
		t.Fatalf("get liquidity after reclaim: %v", err)
	}
	if liquidity.Cmp(wad(300)) != 0 {
		t.Fatalf("liquidity after reclaim = %s, want %s", liquidity, wad(300))
	}
}

func TestInactiveGates(t *testing.T) {
	f := newFixture(t, 0, big.NewInt(0))
	if err := f.engine.SetSpokeActive(assetOne, spokeA, false); err != nil {
		t.Fatalf("deactivate spoke: %v", err)
	}
	if _, err := f.engine.Add(assetOne, spokeA, wad(1)); !errors.Is(err, ErrSpokeInactive) {
		t.Fatalf("inactive spoke add: got %v, want ErrSpokeInactive", err)
	}
	if err := f.engine.SetAssetActive(assetOne, false); err != nil {
		t.Fatalf("deactivate asset: %v", err)
	}
	if _, err := f.engine.Add(assetOne, spokeB, wad(1)); !errors.Is(err, ErrAssetInactive) {
		t.Fatalf("inactive asset add: got %v, want ErrAssetInactive", err)
	}
	if _, err := f.engine.Add(AssetID(9), spokeA, wad(1)); !errors.Is(err, ErrAssetNotListed) {
		t.Fatalf("unlisted asset: got %v, want ErrAssetNotListed", err)
	}
}

func TestFailedOperationLeavesNoTrace(t *testing.T) {
	f := newFixture(t, 1000, tenPercentPerSecond())
	if _, err := f.engine.Add(assetOne, spokeA, wad(1000)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := f.engine.Draw(assetOne, spokeA, wad(500)); err != nil {
		t.Fatalf("draw: %v", err)
	}
	before := f.state.Snapshot()
	emitted := f.recorder.Len()

	// A year of interest is pending, but the failing draw must not accrue it.
	f.advance(yearSeconds)
	if _, err := f.engine.Draw(assetOne, spokeA, wad(10_000)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("draw: got %v, want ErrInsufficientLiquidity", err)
	}

	if f.recorder.Len() != emitted {
		t.Fatalf("failed operation emitted events")
	}
	asset, err := f.state.GetAsset(assetOne)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	prior, err := before.GetAsset(assetOne)
	if err != nil {
		t.Fatalf("get prior asset: %v", err)
	}
	if asset.DrawnIndex.Cmp(prior.DrawnIndex) != 0 || asset.AddedShares.Cmp(prior.AddedShares) != 0 {
		t.Fatalf("failed operation mutated state: index %s->%s shares %s->%s",
			prior.DrawnIndex, asset.DrawnIndex, prior.AddedShares, asset.AddedShares)
	}
}

func TestEventsFlushOnSuccess(t *testing.T) {
	f := newFixture(t, 0, big.NewInt(0))
	if _, err := f.engine.Add(assetOne, spokeA, wad(5)); err != nil {
		t.Fatalf("add: %v", err)
	}
	last := f.recorder.Last(TypeAdded)
	if last == nil {
		t.Fatalf("expected %s event", TypeAdded)
	}
	if last.Attributes["assets"] != wad(5).String() {
		t.Fatalf("event assets = %s", last.Attributes["assets"])
	}
}
