package margin

import (
	"fmt"

	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

// MarginRequirement (保證金要求) holds the notional-scaled ratios of a swap.
type MarginRequirement struct {
	InitialMarginRate     wad.Num // 初始保證金率, posted by each party at init
	MaintenanceMarginRate wad.Num // 維持保證金率, below this a party can be liquidated
	LiquidationFeeRate    wad.Num // paid to the liquidator out of the pool
}

// DefaultRequirement returns the reference ratios: 10% initial, 7% maintenance, 0.5% fee.
func DefaultRequirement() *MarginRequirement {
	return &MarginRequirement{
		InitialMarginRate:     wad.MustParse("0.10"),
		MaintenanceMarginRate: wad.MustParse("0.07"),
		LiquidationFeeRate:    wad.MustParse("0.005"),
	}
}

// Validate checks the ratios are usable: fee < maintenance <= initial <= 1.
func (r *MarginRequirement) Validate() error {
	if r.InitialMarginRate.IsZero() || r.InitialMarginRate.GT(wad.One()) {
		return fmt.Errorf("initial margin rate %s out of range (0, 1]", r.InitialMarginRate)
	}
	if r.MaintenanceMarginRate.GT(r.InitialMarginRate) {
		return fmt.Errorf("maintenance margin rate %s above initial margin rate %s",
			r.MaintenanceMarginRate, r.InitialMarginRate)
	}
	if r.LiquidationFeeRate.GTE(r.MaintenanceMarginRate) {
		return fmt.Errorf("liquidation fee rate %s must be below maintenance margin rate %s",
			r.LiquidationFeeRate, r.MaintenanceMarginRate)
	}
	return nil
}

// InitialMargin is the amount each party posts at init.
func (r *MarginRequirement) InitialMargin(notional wad.Num) (wad.Num, error) {
	return wad.Mul(r.InitialMarginRate, notional)
}

// Threshold is the margin a party must keep to stay out of liquidation.
func (r *MarginRequirement) Threshold(notional wad.Num) (wad.Num, error) {
	return wad.Mul(r.MaintenanceMarginRate, notional)
}

// LiquidationFee is what a liquidator earns for a successful liquidation.
func (r *MarginRequirement) LiquidationFee(notional wad.Num) (wad.Num, error) {
	return wad.Mul(r.LiquidationFeeRate, notional)
}
