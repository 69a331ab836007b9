package journal

import (
	"time"

	"gorm.io/gorm"
)

// SettlementRecord is one applied settlement. Amounts are stored as exact decimal strings.
type SettlementRecord struct {
	gorm.Model     `json:"-"`
	SettlementID   string    `gorm:"uniqueIndex" json:"settlement_id"`
	SwapID         string    `gorm:"index" json:"swap_id"`
	WindowStart    time.Time `json:"window_start"`
	AsOf           time.Time `json:"as_of"`
	VariableRate   string    `json:"variable_rate"`
	FixedRate      string    `json:"fixed_rate"`
	Payer          string    `json:"payer"` // fixed_payer, floating_payer or none
	Amount         string    `json:"amount"`
	Final          bool      `json:"final"`
	FixedPayout    string    `json:"fixed_payout"`    // released margin + residual share
	FloatingPayout string    `json:"floating_payout"` // released margin + residual share
	LiquidationID  string    `gorm:"index" json:"liquidation_id,omitempty"`
}

// LiquidationRecord is one successful liquidation.
type LiquidationRecord struct {
	gorm.Model    `json:"-"`
	LiquidationID string    `gorm:"uniqueIndex" json:"liquidation_id"`
	SwapID        string    `gorm:"index" json:"swap_id"`
	Liquidator    string    `json:"liquidator"`
	Breaching     string    `json:"breaching"` // comma separated sides
	Threshold     string    `json:"threshold"`
	Fee           string    `json:"fee"`
	FeePaid       string    `json:"fee_paid"`
	Shortfall     string    `json:"shortfall"`
	SettlementID  string    `json:"settlement_id"`
	LiquidatedAt  time.Time `json:"liquidated_at"`
}
