package handlers

import (
	"tipcast/pkg/config"
	"tipcast/pkg/models"
)

// Fee rates in basis points per method class. Loaded from env at Init;
// defaults reflect the production rails (pix 1%, card 5%, lightning 1.5%).
var feeRatesBp = map[models.PaymentMethod]int64{
	models.MethodPix:       100,
	models.MethodCard:      500,
	models.MethodLightning: 150,
}

func loadFeeRates() {
	feeRatesBp[models.MethodPix] = config.GetEnvInt64("PIX_FEE_BP", 100)
	feeRatesBp[models.MethodCard] = config.GetEnvInt64("CARD_FEE_BP", 500)
	feeRatesBp[models.MethodLightning] = config.GetEnvInt64("LIGHTNING_FEE_BP", 150)
}

// FeeBreakdown is the fee split for one gross amount.
type FeeBreakdown struct {
	GrossCents int64 `json:"gross_cents"`
	FeeCents   int64 `json:"fee_cents"`
	NetCents   int64 `json:"net_cents"`
}

// CalculateFee computes the fee split for a gross amount on a method class.
// The fee is the method's basis-point rate applied to gross, rounded
// half-up to the minor currency unit. Deterministic and side-effect free.
func CalculateFee(grossCents int64, method models.PaymentMethod) FeeBreakdown {
	rate := feeRatesBp[models.NormalizeMethod(method)]
	fee := (grossCents*rate + 5000) / 10000
	return FeeBreakdown{
		GrossCents: grossCents,
		FeeCents:   fee,
		NetCents:   grossCents - fee,
	}
}
