package rates

import (
	"math/big"
	"testing"

	"github.com/Tilt-github/aave-v4-sub006/native/fixmath"
)

func ray(rat *big.Rat) *big.Int {
	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(fixmath.Ray))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}

func annualised(perSecond *big.Int) *big.Int {
	return new(big.Int).Mul(perSecond, secondsPerYear)
}

func TestParamsParseDecimalExact(t *testing.T) {
	model, err := NewKinkedModel(DefaultParams)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	if model.fallback.base.Cmp(big.NewRat(2, 100)) != 0 {
		t.Fatalf("base rate = %s, want exactly 2/100", model.fallback.base)
	}
	if model.fallback.kink.Cmp(big.NewRat(8, 10)) != 0 {
		t.Fatalf("kink = %s, want exactly 8/10", model.fallback.kink)
	}
}

func TestZeroUtilisationReturnsBaseRate(t *testing.T) {
	model, err := NewKinkedModel(DefaultParams)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	rate, err := model.CalculateInterestRate(1, big.NewInt(1000), big.NewInt(0), big.NewInt(0), big.NewInt(0))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	want := ray(big.NewRat(2, 100))
	got := annualised(rate)
	diff := new(big.Int).Sub(got, want)
	if diff.CmpAbs(secondsPerYear) > 0 {
		t.Fatalf("annualised base rate = %s, want ≈%s", got, want)
	}
}

func TestRateSteepensPastKink(t *testing.T) {
	model, err := NewKinkedModel(DefaultParams)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	// 50% utilisation sits below the 80% kink.
	below, err := model.CalculateInterestRate(1, big.NewInt(500), big.NewInt(500), big.NewInt(0), big.NewInt(0))
	if err != nil {
		t.Fatalf("below kink: %v", err)
	}
	// 90% utilisation sits beyond it.
	above, err := model.CalculateInterestRate(1, big.NewInt(100), big.NewInt(900), big.NewInt(0), big.NewInt(0))
	if err != nil {
		t.Fatalf("above kink: %v", err)
	}
	if above.Cmp(below) <= 0 {
		t.Fatalf("rate beyond kink (%s) not above rate below kink (%s)", above, below)
	}
	// Beyond the kink: 0.02 + 0.15*0.8 + 0.6*0.1 = 0.2.
	want := ray(big.NewRat(20, 100))
	got := annualised(above)
	diff := new(big.Int).Sub(got, want)
	if diff.CmpAbs(secondsPerYear) > 0 {
		t.Fatalf("annualised kinked rate = %s, want ≈%s", got, want)
	}
}

func TestSetInterestRateData(t *testing.T) {
	model, err := NewKinkedModel(DefaultParams)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	if err := model.SetInterestRateData(1, []byte(`{"base_rate":0.1,"slope1":0,"slope2":0,"kink":0.8}`)); err != nil {
		t.Fatalf("set data: %v", err)
	}
	rate, err := model.CalculateInterestRate(1, big.NewInt(1000), big.NewInt(0), big.NewInt(0), big.NewInt(0))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	want := ray(big.NewRat(10, 100))
	got := annualised(rate)
	diff := new(big.Int).Sub(got, want)
	if diff.CmpAbs(secondsPerYear) > 0 {
		t.Fatalf("annualised custom rate = %s, want ≈%s", got, want)
	}
	if err := model.SetInterestRateData(1, []byte(`{"kink":1.5}`)); err == nil {
		t.Fatalf("invalid params accepted")
	}
}
