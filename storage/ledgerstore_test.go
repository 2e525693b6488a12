package storage

import (
	"math/big"
	"testing"

	"github.com/google/uuid"

	"github.com/Tilt-github/aave-v4-sub006/native/hub"
	"github.com/Tilt-github/aave-v4-sub006/native/spoke"
)

func TestHubStoreAssetRoundTrip(t *testing.T) {
	store := NewHubStore(NewMemDB())

	missing, err := store.GetAsset(7)
	if err != nil {
		t.Fatalf("get missing asset: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing asset not nil: %+v", missing)
	}

	asset := &hub.Asset{
		Underlying:  uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Liquidity:   big.NewInt(1_000_000),
		AddedShares: big.NewInt(999_000),
		DrawnShares: big.NewInt(500_000),
		DrawnIndex:  new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil),
		DrawnRate:   big.NewInt(3_170_979_198),
		Premium: hub.Premium{
			GhostShares: big.NewInt(5_000),
			Offset:      big.NewInt(5_000),
			Realized:    big.NewInt(12),
		},
		Deficit:     big.NewInt(42),
		Swept:       big.NewInt(7),
		FeeRateBps:  1000,
		FeeReceiver: uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		Controller:  uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		LastUpdate:  1_700_000_000,
		Decimals:    6,
		Active:      true,
	}
	if err := store.PutAsset(7, asset); err != nil {
		t.Fatalf("put asset: %v", err)
	}
	got, err := store.GetAsset(7)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if got.Underlying != asset.Underlying {
		t.Fatalf("underlying = %s, want %s", got.Underlying, asset.Underlying)
	}
	if got.Liquidity.Cmp(asset.Liquidity) != 0 {
		t.Fatalf("liquidity = %s, want %s", got.Liquidity, asset.Liquidity)
	}
	if got.DrawnIndex.Cmp(asset.DrawnIndex) != 0 {
		t.Fatalf("drawn index = %s, want %s", got.DrawnIndex, asset.DrawnIndex)
	}
	if got.Premium.GhostShares.Cmp(asset.Premium.GhostShares) != 0 {
		t.Fatalf("ghost shares = %s, want %s", got.Premium.GhostShares, asset.Premium.GhostShares)
	}
	if got.Premium.Realized.Cmp(asset.Premium.Realized) != 0 {
		t.Fatalf("realized = %s, want %s", got.Premium.Realized, asset.Premium.Realized)
	}
	if got.FeeRateBps != 1000 || got.FeeReceiver != asset.FeeReceiver || got.Controller != asset.Controller {
		t.Fatalf("fee wiring mismatch: %+v", got)
	}
	if got.LastUpdate != asset.LastUpdate || got.Decimals != 6 || !got.Active {
		t.Fatalf("scalar fields mismatch: %+v", got)
	}
}

func TestHubStoreNilAmountsDecodeAsZero(t *testing.T) {
	store := NewHubStore(NewMemDB())
	if err := store.PutAsset(1, &hub.Asset{Decimals: 18}); err != nil {
		t.Fatalf("put asset: %v", err)
	}
	got, err := store.GetAsset(1)
	if err != nil {
		t.Fatalf("get asset: %v", err)
	}
	if got.Liquidity == nil || got.Liquidity.Sign() != 0 {
		t.Fatalf("liquidity = %v, want zero", got.Liquidity)
	}
	if got.Premium.GhostShares == nil || got.Premium.GhostShares.Sign() != 0 {
		t.Fatalf("ghost shares = %v, want zero", got.Premium.GhostShares)
	}
}

func TestHubStoreSubledgerIndex(t *testing.T) {
	store := NewHubStore(NewMemDB())
	spokeB := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")
	spokeA := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")

	sub := &hub.SpokeSubledger{
		AddedShares: big.NewInt(250),
		DrawnShares: big.NewInt(100),
		Deficit:     big.NewInt(0),
		AddCap:      1_000_000,
		DrawCap:     hub.CapUnlimited,
		Active:      true,
	}
	if err := store.PutSubledger(3, spokeB, sub); err != nil {
		t.Fatalf("put subledger b: %v", err)
	}
	if err := store.PutSubledger(3, spokeA, sub); err != nil {
		t.Fatalf("put subledger a: %v", err)
	}
	// Rewrites must not duplicate the index entry.
	if err := store.PutSubledger(3, spokeB, sub); err != nil {
		t.Fatalf("rewrite subledger b: %v", err)
	}

	spokes, err := store.Subledgers(3)
	if err != nil {
		t.Fatalf("subledgers: %v", err)
	}
	if len(spokes) != 2 || spokes[0] != spokeA || spokes[1] != spokeB {
		t.Fatalf("spoke index = %v, want [%s %s]", spokes, spokeA, spokeB)
	}

	got, err := store.GetSubledger(3, spokeA)
	if err != nil {
		t.Fatalf("get subledger: %v", err)
	}
	if got.AddedShares.Cmp(sub.AddedShares) != 0 || got.DrawCap != hub.CapUnlimited || !got.Active {
		t.Fatalf("subledger mismatch: %+v", got)
	}

	other, err := store.GetSubledger(9, spokeA)
	if err != nil {
		t.Fatalf("get subledger other asset: %v", err)
	}
	if other != nil {
		t.Fatalf("subledger leaked across assets: %+v", other)
	}
}

func TestRiskStoreReserveRoundTrip(t *testing.T) {
	store := NewRiskStore(NewMemDB())

	count, err := store.ReserveCount()
	if err != nil {
		t.Fatalf("reserve count: %v", err)
	}
	if count != 0 {
		t.Fatalf("fresh count = %d, want 0", count)
	}
	if err := store.SetReserveCount(2); err != nil {
		t.Fatalf("set count: %v", err)
	}

	reserve := &spoke.Reserve{
		Asset:       4,
		Decimals:    18,
		RiskTierBps: 150,
		Frozen:      true,
		Borrowable:  true,
		ConfigKey:   2,
		Configs: map[uint16]spoke.DynamicReserveConfig{
			1: {CollateralFactorBps: 8000, MaxLiquidationBonusBps: 500, LiquidationFeeBps: 1000},
			2: {CollateralFactorBps: 7500, MaxLiquidationBonusBps: 800, LiquidationFeeBps: 1000},
		},
	}
	if err := store.PutReserve(1, reserve); err != nil {
		t.Fatalf("put reserve: %v", err)
	}
	got, err := store.GetReserve(1)
	if err != nil {
		t.Fatalf("get reserve: %v", err)
	}
	if got.Asset != 4 || got.RiskTierBps != 150 || !got.Frozen || got.Paused {
		t.Fatalf("reserve mismatch: %+v", got)
	}
	if got.Config(1).CollateralFactorBps != 8000 {
		t.Fatalf("retained config lost: %+v", got.Configs)
	}
	if got.Config(got.ConfigKey).CollateralFactorBps != 7500 {
		t.Fatalf("current config = %+v", got.Config(got.ConfigKey))
	}

	count, err = store.ReserveCount()
	if err != nil {
		t.Fatalf("reserve count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestRiskStorePositionAndStatus(t *testing.T) {
	store := NewRiskStore(NewMemDB())
	user := uuid.MustParse("44444444-4444-4444-4444-444444444444")

	missing, err := store.GetPosition(user, 0)
	if err != nil {
		t.Fatalf("get missing position: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing position not nil: %+v", missing)
	}

	pos := &spoke.UserPosition{
		AddedShares: big.NewInt(1_000),
		DrawnShares: big.NewInt(400),
		Premium: hub.Premium{
			GhostShares: big.NewInt(4),
			Offset:      big.NewInt(4),
			Realized:    big.NewInt(0),
		},
		ConfigKey: 3,
	}
	if err := store.PutPosition(user, 0, pos); err != nil {
		t.Fatalf("put position: %v", err)
	}
	got, err := store.GetPosition(user, 0)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if got.AddedShares.Cmp(pos.AddedShares) != 0 || got.DrawnShares.Cmp(pos.DrawnShares) != 0 {
		t.Fatalf("position shares mismatch: %+v", got)
	}
	if got.Premium.GhostShares.Cmp(pos.Premium.GhostShares) != 0 || got.ConfigKey != 3 {
		t.Fatalf("position mismatch: %+v", got)
	}

	status, err := store.GetStatus(user)
	if err != nil {
		t.Fatalf("get fresh status: %v", err)
	}
	if !status.IsEmpty() {
		t.Fatalf("fresh status not empty")
	}
	status.SetUsingAsCollateral(0, true)
	status.SetBorrowing(130, true)
	if err := store.PutStatus(user, status); err != nil {
		t.Fatalf("put status: %v", err)
	}
	loaded, err := store.GetStatus(user)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if !loaded.IsUsingAsCollateral(0) || !loaded.IsBorrowing(130) || loaded.IsBorrowing(0) {
		t.Fatalf("status flags lost after round trip")
	}
}

func TestStagedBuffersUntilCommit(t *testing.T) {
	base := NewMemDB()
	staged := NewStaged(base)

	store := NewRiskStore(staged)
	if err := store.SetReserveCount(3); err != nil {
		t.Fatalf("set count: %v", err)
	}
	count, err := store.ReserveCount()
	if err != nil {
		t.Fatalf("staged count: %v", err)
	}
	if count != 3 {
		t.Fatalf("staged count = %d, want 3", count)
	}
	if before, err := NewRiskStore(base).ReserveCount(); err != nil || before != 0 {
		t.Fatalf("base count = %d (%v), want 0 before commit", before, err)
	}

	if err := staged.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	committed, err := NewRiskStore(base).ReserveCount()
	if err != nil {
		t.Fatalf("committed count: %v", err)
	}
	if committed != 3 {
		t.Fatalf("committed count = %d, want 3", committed)
	}
}

func TestStagedDiscardDropsWrites(t *testing.T) {
	base := NewMemDB()
	staged := NewStaged(base)
	store := NewRiskStore(staged)
	if err := store.SetReserveCount(5); err != nil {
		t.Fatalf("set count: %v", err)
	}
	staged.Discard()
	count, err := store.ReserveCount()
	if err != nil {
		t.Fatalf("count after discard: %v", err)
	}
	if count != 0 {
		t.Fatalf("count after discard = %d, want 0", count)
	}
}
