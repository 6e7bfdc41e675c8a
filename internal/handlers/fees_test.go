package handlers

import (
	"testing"

	"tipcast/pkg/models"
)

func TestCalculateFeePixScenario(t *testing.T) {
	old := feeRatesBp[models.MethodPix]
	feeRatesBp[models.MethodPix] = 300 // 3%
	t.Cleanup(func() { feeRatesBp[models.MethodPix] = old })

	got := CalculateFee(5000, models.MethodPix)
	if got.GrossCents != 5000 {
		t.Errorf("gross: expected 5000, got %d", got.GrossCents)
	}
	if got.FeeCents != 150 {
		t.Errorf("fee: expected 150, got %d", got.FeeCents)
	}
	if got.NetCents != 4850 {
		t.Errorf("net: expected 4850, got %d", got.NetCents)
	}
}

func TestCalculateFeeRoundHalfUp(t *testing.T) {
	old := feeRatesBp[models.MethodCard]
	feeRatesBp[models.MethodCard] = 50 // 0.5%
	t.Cleanup(func() { feeRatesBp[models.MethodCard] = old })

	// 100 * 0.5% = 0.5, rounds up to 1
	if got := CalculateFee(100, models.MethodCard); got.FeeCents != 1 {
		t.Errorf("expected fee 1, got %d", got.FeeCents)
	}
	// 99 * 0.5% = 0.495, rounds down to 0
	if got := CalculateFee(99, models.MethodCard); got.FeeCents != 0 {
		t.Errorf("expected fee 0, got %d", got.FeeCents)
	}
}

func TestCalculateFeeDeterministic(t *testing.T) {
	first := CalculateFee(12345, models.MethodLightning)
	for i := 0; i < 10; i++ {
		if got := CalculateFee(12345, models.MethodLightning); got != first {
			t.Fatalf("fee calculation not deterministic: %+v vs %+v", got, first)
		}
	}
	if first.NetCents+first.FeeCents != first.GrossCents {
		t.Errorf("net + fee != gross: %+v", first)
	}
}

func TestCalculateFeeCryptoUsesLightningRate(t *testing.T) {
	crypto := CalculateFee(10000, models.MethodCrypto)
	lightning := CalculateFee(10000, models.MethodLightning)
	if crypto != lightning {
		t.Errorf("crypto should use the lightning rate: %+v vs %+v", crypto, lightning)
	}
}
