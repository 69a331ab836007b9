package margin

import (
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

// PartyAccount (保證金帳戶) is one counterparty's position in the swap pool.
type PartyAccount struct {
	Side    common.Side
	Address common.Address

	Margin  wad.Num // posted collateral, never negative
	Payable wad.Num // owed to the party outside the pool, waiting to be withdrawn

	UpdatedAt time.Time
}

func newPartyAccount(side common.Side, addr common.Address) *PartyAccount {
	return &PartyAccount{
		Side:      side,
		Address:   addr,
		UpdatedAt: time.Now(),
	}
}

// GetSummary returns a display map of the account.
func (a PartyAccount) GetSummary() map[string]interface{} {
	return map[string]interface{}{
		"side":       a.Side.String(),
		"address":    a.Address.Hex(),
		"margin":     a.Margin.String(),
		"payable":    a.Payable.String(),
		"updated_at": a.UpdatedAt,
	}
}
